package tod

import (
	"fmt"

	"github.com/skysim/tod/internal/skymap"
)

// PairArena owns the pointing-matrix and polarization-angle records shared
// by the two detectors of each pair, as flat (npairs × nsamples) buffers.
//
// Single-writer convention: row p is written exactly once, by the even
// channel 2p, when its timestream is projected. The odd partner shares the
// same geometric pointing by construction and never rewrites the row.
type PairArena struct {
	NPairs   int
	NSamples int

	// Pixels holds the local pixel index of each (pair, sample), or
	// skymap.Outside for samples off the observed patch.
	Pixels []int32
	// Angles holds the composed polarization angle in radians.
	Angles []float64

	written []bool
}

// NewPairArena allocates an arena with every pixel index set to the sentinel
// and every angle zero.
func NewPairArena(npairs, nsamples int) (*PairArena, error) {
	if npairs <= 0 || nsamples <= 0 {
		return nil, fmt.Errorf("tod: arena wants positive dimensions, got %d×%d", npairs, nsamples)
	}
	a := &PairArena{
		NPairs:   npairs,
		NSamples: nsamples,
		Pixels:   make([]int32, npairs*nsamples),
		Angles:   make([]float64, npairs*nsamples),
		written:  make([]bool, npairs),
	}
	for i := range a.Pixels {
		a.Pixels[i] = skymap.Outside
	}
	return a, nil
}

// Idx flattens (pair, sample) into the backing arrays.
func (a *PairArena) Idx(pair, sample int) int { return pair*a.NSamples + sample }

// SetRow records the pixel indices and polarization angles of one pair.
func (a *PairArena) SetRow(pair int, pixels []int32, angles []float64) error {
	if pair < 0 || pair >= a.NPairs {
		return fmt.Errorf("tod: pair %d out of range [0,%d)", pair, a.NPairs)
	}
	if len(pixels) != a.NSamples {
		return fmt.Errorf("tod: pair %d row wants %d pixels, got %d", pair, a.NSamples, len(pixels))
	}
	if angles != nil && len(angles) != a.NSamples {
		return fmt.Errorf("tod: pair %d row wants %d angles, got %d", pair, a.NSamples, len(angles))
	}
	copy(a.Pixels[a.Idx(pair, 0):a.Idx(pair+1, 0)], pixels)
	if angles != nil {
		copy(a.Angles[a.Idx(pair, 0):a.Idx(pair+1, 0)], angles)
	}
	a.written[pair] = true
	return nil
}

// Written reports whether a pair's row has been populated.
func (a *PairArena) Written(pair int) bool {
	return pair >= 0 && pair < a.NPairs && a.written[pair]
}

// PixelRow returns the pixel indices of one pair, aliasing the arena buffer.
func (a *PairArena) PixelRow(pair int) []int32 {
	return a.Pixels[a.Idx(pair, 0):a.Idx(pair+1, 0)]
}

// AngleRow returns the polarization angles of one pair, aliasing the arena
// buffer.
func (a *PairArena) AngleRow(pair int) []float64 {
	return a.Angles[a.Idx(pair, 0):a.Idx(pair+1, 0)]
}
