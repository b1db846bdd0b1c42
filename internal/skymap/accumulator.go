package skymap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/skysim/tod/internal/healpix"
	"github.com/skysim/tod/internal/reduce"
)

// Projection selects the sky projection of an output map.
type Projection string

const (
	ProjHealpix Projection = "healpix"
	ProjFlat    Projection = "flat"
)

// DefaultCoaddArrays names every accumulator array, the default set for
// local and collective coadds.
var DefaultCoaddArrays = []string{"d", "dc", "ds", "w", "cc", "cs", "ss", "nhit"}

// Accumulator holds the per-pixel normal-equation terms built up from
// noise-weighted timestreams: the right-hand sides d/dc/ds, the weights
// w/cc/cs/ss, and the hit counts. All arrays share one length and local
// indexing. An Accumulator is owned by a single logical worker until an
// explicit coadd.
type Accumulator struct {
	Projection Projection
	// Nside is set for the healpix projection, PixelSize (radians) for
	// both (the tessellation resolution for healpix, the grid pixel side
	// for flat).
	Nside     int
	PixelSize float64
	// ObsPix is the sorted observed-pixel set (healpix projection only).
	ObsPix []int64
	// NpixSky is the common length of all arrays.
	NpixSky int

	D, Dc, Ds  []float64 // A^T N^-1 d
	W          []float64 // A^T N^-1 A, intensity block
	Cc, Cs, Ss []float64 // A^T N^-1 A, polarization block
	Nhit       []int64
}

// NewHealpixAccumulator creates an empty accumulator over the observed-pixel
// set at resolution nside.
func NewHealpixAccumulator(nside int, obspix []int64) (*Accumulator, error) {
	if !healpix.ValidNside(nside) {
		return nil, fmt.Errorf("skymap: invalid nside %d", nside)
	}
	if len(obspix) == 0 {
		return nil, fmt.Errorf("skymap: healpix accumulator needs an observed-pixel set")
	}
	a := &Accumulator{
		Projection: ProjHealpix,
		Nside:      nside,
		PixelSize:  healpix.Resol(nside),
		ObsPix:     obspix,
		NpixSky:    len(obspix),
	}
	a.alloc()
	return a, nil
}

// NewFlatAccumulator creates an empty accumulator over npixsky planar grid
// pixels of side pixelSize (radians).
func NewFlatAccumulator(npixsky int, pixelSize float64) (*Accumulator, error) {
	if npixsky <= 0 {
		return nil, fmt.Errorf("skymap: flat accumulator needs a positive pixel count, got %d", npixsky)
	}
	if pixelSize <= 0 {
		return nil, fmt.Errorf("skymap: flat accumulator needs a positive pixel size, got %v", pixelSize)
	}
	a := &Accumulator{
		Projection: ProjFlat,
		PixelSize:  pixelSize,
		NpixSky:    npixsky,
	}
	a.alloc()
	return a, nil
}

func (a *Accumulator) alloc() {
	n := a.NpixSky
	a.D = make([]float64, n)
	a.Dc = make([]float64, n)
	a.Ds = make([]float64, n)
	a.W = make([]float64, n)
	a.Cc = make([]float64, n)
	a.Cs = make([]float64, n)
	a.Ss = make([]float64, n)
	a.Nhit = make([]int64, n)
}

// SolveI recovers the intensity map: I = d/w where w > 0, zero for
// unconstrained pixels. The accumulator is not mutated.
func (a *Accumulator) SolveI() []float64 {
	out := make([]float64, a.NpixSky)
	for i, w := range a.W {
		if w > 0 {
			out[i] = a.D[i] / w
		}
	}
	return out
}

// polSingularThreshold is the determinant magnitude below which the 2×2
// polarization system is treated as singular (single-precision epsilon).
var polSingularThreshold = float64(math.Nextafter32(1, 2) - 1)

// SolveQU recovers the Stokes Q/U maps by inverting the per-pixel system
// [[cc cs] [cs ss]]·[Q U] = [dc ds]. Pixels whose determinant is NaN or
// below the singularity threshold degrade to Q = U = 0.
func (a *Accumulator) SolveQU() (q, u []float64) {
	q = make([]float64, a.NpixSky)
	u = make([]float64, a.NpixSky)
	for i := 0; i < a.NpixSky; i++ {
		det := a.Cc[i]*a.Ss[i] - a.Cs[i]*a.Cs[i]
		if math.IsNaN(det) || math.Abs(det) < polSingularThreshold {
			continue
		}
		idet := 1 / det
		q[i] = idet * (a.Ss[i]*a.Dc[i] - a.Cs[i]*a.Ds[i])
		u[i] = idet * (-a.Cs[i]*a.Dc[i] + a.Cc[i]*a.Ds[i])
	}
	return q, u
}

// SolveIQU solves the block-diagonal per-pixel system for intensity and
// polarization together.
func (a *Accumulator) SolveIQU() (i, q, u []float64) {
	i = a.SolveI()
	q, u = a.SolveQU()
	return i, q, u
}

// PolWeight returns the minimum-eigenvalue proxy for the polarization weight
// of each pixel: the smaller eigenvalue of the 2×2 block, zeroed where it
// falls below epsilon times the larger one. epsilon must lie in [0, 1/4).
func (a *Accumulator) PolWeight(epsilon float64) ([]float64, error) {
	if epsilon < 0 || epsilon >= 0.25 {
		return nil, fmt.Errorf("skymap: epsilon must be in [0, 1/4), got %v", epsilon)
	}
	out := make([]float64, a.NpixSky)
	for i := 0; i < a.NpixSky; i++ {
		tr := a.Cc[i] + a.Ss[i]
		delta := math.Hypot(a.Cc[i]-a.Ss[i], 2*a.Cs[i])
		lmin := 0.5 * (tr - delta)
		lmax := 0.5 * (tr + delta)
		if lmax <= 0 || lmin <= epsilon*lmax {
			continue
		}
		out[i] = lmin
	}
	return out, nil
}

func (a *Accumulator) floatArray(name string) []float64 {
	switch name {
	case "d":
		return a.D
	case "dc":
		return a.Dc
	case "ds":
		return a.Ds
	case "w":
		return a.W
	case "cc":
		return a.Cc
	case "cs":
		return a.Cs
	case "ss":
		return a.Ss
	}
	return nil
}

// congruent reports whether two accumulators share the same observed-pixel
// layout.
func (a *Accumulator) congruent(other *Accumulator) error {
	if a.Projection != other.Projection {
		return fmt.Errorf("skymap: cannot coadd %s map with %s map", a.Projection, other.Projection)
	}
	if a.NpixSky != other.NpixSky {
		return fmt.Errorf("skymap: accumulator sizes differ: %d vs %d", a.NpixSky, other.NpixSky)
	}
	if len(a.ObsPix) != len(other.ObsPix) {
		return fmt.Errorf("skymap: observed-pixel sets differ in length")
	}
	for i := range a.ObsPix {
		if a.ObsPix[i] != other.ObsPix[i] {
			return fmt.Errorf("skymap: observed-pixel sets differ at position %d", i)
		}
	}
	return nil
}

// Coadd adds the named arrays of other into a, element-wise. With no names
// every array is coadded. The two accumulators must hold identical
// observed-pixel layouts.
func (a *Accumulator) Coadd(other *Accumulator, arrays ...string) error {
	if err := a.congruent(other); err != nil {
		return err
	}
	if len(arrays) == 0 {
		arrays = DefaultCoaddArrays
	}
	for _, name := range arrays {
		if name == "nhit" {
			for i, v := range other.Nhit {
				a.Nhit[i] += v
			}
			continue
		}
		dst := a.floatArray(name)
		src := other.floatArray(name)
		if dst == nil || src == nil {
			return fmt.Errorf("skymap: unknown accumulator array %q", name)
		}
		floats.Add(dst, src)
	}
	return nil
}

// CoaddCollective replaces the named arrays with their element-wise sum
// across all workers of the reduction group. All workers must hold
// congruent accumulators and call with the same array names; a failed
// collective is fatal to the run.
func (a *Accumulator) CoaddCollective(r reduce.Reducer, arrays ...string) error {
	if len(arrays) == 0 {
		arrays = DefaultCoaddArrays
	}
	for _, name := range arrays {
		if name == "nhit" {
			sum, err := r.AllSumInt64(a.Nhit)
			if err != nil {
				return fmt.Errorf("skymap: collective coadd of %q: %w", name, err)
			}
			a.Nhit = sum
			continue
		}
		arr := a.floatArray(name)
		if arr == nil {
			return fmt.Errorf("skymap: unknown accumulator array %q", name)
		}
		sum, err := r.AllSumFloat64(arr)
		if err != nil {
			return fmt.Errorf("skymap: collective coadd of %q: %w", name, err)
		}
		copy(arr, sum)
	}
	return nil
}

// PartialToFull scatters patch-local values into a zero-filled full-sky
// array at the observed-pixel positions.
func PartialToFull(partial []float64, obspix []int64, nside int) ([]float64, error) {
	if len(partial) != len(obspix) {
		return nil, fmt.Errorf("skymap: %d values for %d observed pixels", len(partial), len(obspix))
	}
	full := make([]float64, healpix.Npix(nside))
	for i, p := range obspix {
		if p < 0 || int(p) >= len(full) {
			return nil, fmt.Errorf("skymap: observed pixel %d out of range for nside %d", p, nside)
		}
		full[p] = partial[i]
	}
	return full, nil
}
