package tod

import (
	"fmt"
	"math"
)

// AccumBatch carries one tod2map accumulation call: flat (npairs × nsamples)
// pointing and angle buffers, the pair-interleaved detector timestreams, the
// per-pair noise weights and the sample mask, plus the destination arrays of
// the sky-map accumulator. All destination arrays share length NpixSky.
type AccumBatch struct {
	NPairs   int
	NSamples int
	NpixSky  int

	Pixels []int32   // local pixel per (pair, sample), Outside allowed
	Angles []float64 // composed polarization angle per (pair, sample)
	// TS holds the detector timestreams flattened as (2*NPairs rows of
	// NSamples): rows 2p and 2p+1 are the even/odd detectors of pair p.
	TS []float64
	// Mask marks usable samples per (pair, sample); zero entries are
	// excluded from accumulation.
	Mask []uint8

	SumWeight  []float64 // per-pair weight of the sum timestream
	DiffWeight []float64 // per-pair weight of the difference timestream

	// Destination accumulator arrays.
	D, W, Dc, Ds, Cc, Cs, Ss []float64
	Nhit                     []int64
}

// validate enforces the kernel's shape contract.
func (b *AccumBatch) validate() error {
	np, ns := b.NPairs, b.NSamples
	if np <= 0 || ns <= 0 {
		return fmt.Errorf("tod: kernel batch wants positive dimensions, got %d×%d", np, ns)
	}
	if len(b.Pixels) != np*ns || len(b.Angles) != np*ns || len(b.Mask) != np*ns {
		return fmt.Errorf("tod: kernel batch buffers disagree with %d×%d: pixels=%d angles=%d mask=%d",
			np, ns, len(b.Pixels), len(b.Angles), len(b.Mask))
	}
	if len(b.TS) != 2*np*ns {
		return fmt.Errorf("tod: kernel batch wants %d timestream samples, got %d", 2*np*ns, len(b.TS))
	}
	if len(b.SumWeight) != np || len(b.DiffWeight) != np {
		return fmt.Errorf("tod: kernel batch wants %d pair weights, got sum=%d diff=%d",
			np, len(b.SumWeight), len(b.DiffWeight))
	}
	for _, arr := range [][]float64{b.D, b.W, b.Dc, b.Ds, b.Cc, b.Cs, b.Ss} {
		if len(arr) != b.NpixSky {
			return fmt.Errorf("tod: kernel destination arrays must all have length %d", b.NpixSky)
		}
	}
	if len(b.Nhit) != b.NpixSky {
		return fmt.Errorf("tod: kernel hit-count array must have length %d", b.NpixSky)
	}
	return nil
}

// Kernel is the contract of the accumulation routine, the dominant cost of
// the pipeline. For every unmasked sample with a non-sentinel pixel k it
// must add, with s and q the half-sum and half-difference of the pair's two
// detector samples and (c, n) = (cos 2ψ, sin 2ψ):
//
//	d[k]  += ws·s    w[k]  += ws
//	dc[k] += wd·q·c  ds[k] += wd·q·n
//	cc[k] += wd·c·c  cs[k] += wd·c·n  ss[k] += wd·n·n
//	nhit[k]++
//
// Accumulation across repeated calls is additive and order-independent, so
// any numerically equivalent implementation (vectorized, threaded, or
// offloaded) can be substituted.
type Kernel interface {
	Accumulate(b *AccumBatch) error
}

// ReferenceKernel is the portable scalar implementation of the accumulation
// contract.
type ReferenceKernel struct{}

// Accumulate folds the batch into the destination arrays sample by sample.
func (ReferenceKernel) Accumulate(b *AccumBatch) error {
	if err := b.validate(); err != nil {
		return err
	}
	ns := b.NSamples
	for p := 0; p < b.NPairs; p++ {
		ws := b.SumWeight[p]
		wd := b.DiffWeight[p]
		top := b.TS[(2*p)*ns : (2*p+1)*ns]
		bot := b.TS[(2*p+1)*ns : (2*p+2)*ns]
		row := p * ns

		for t := 0; t < ns; t++ {
			if b.Mask[row+t] == 0 {
				continue
			}
			k := b.Pixels[row+t]
			if k < 0 {
				continue
			}
			if int(k) >= b.NpixSky {
				return fmt.Errorf("tod: pixel index %d at pair %d sample %d exceeds map size %d",
					k, p, t, b.NpixSky)
			}

			s := 0.5 * (top[t] + bot[t])
			q := 0.5 * (top[t] - bot[t])
			n, c := math.Sincos(2 * b.Angles[row+t])

			b.D[k] += ws * s
			b.W[k] += ws
			b.Dc[k] += wd * q * c
			b.Ds[k] += wd * q * n
			b.Cc[k] += wd * c * c
			b.Cs[k] += wd * c * n
			b.Ss[k] += wd * n * n
			b.Nhit[k]++
		}
	}
	return nil
}
