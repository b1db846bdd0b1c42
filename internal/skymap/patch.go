package skymap

import (
	"fmt"
	"math"

	"github.com/skysim/tod/internal/healpix"
	"github.com/skysim/tod/internal/units"
)

// PatchBounds delimits the observed sky patch in equatorial coordinates,
// radians. A patch crossing ra = 0 has RaMin > RaMax.
type PatchBounds struct {
	RaMin, RaMax   float64
	DecMin, DecMax float64
}

// NewPatchBounds derives the patch rectangle from its center (degrees) and a
// width specification: one value for a symmetric patch of that total width,
// or four values (xmin, xmax, ymin, ymax half-extents in degrees). The
// four-value form mirrors the historical interface and is carried as-is; only
// the symmetric form is exercised by the simulation paths.
func NewPatchBounds(raSrcDeg, decSrcDeg float64, widthDeg ...float64) (PatchBounds, error) {
	var xmin, xmax, ymin, ymax float64
	switch len(widthDeg) {
	case 1:
		half := widthDeg[0] * units.DegToRad / 2
		xmin, xmax, ymin, ymax = half, half, half, half
	case 4:
		xmin = widthDeg[0] * units.DegToRad
		xmax = widthDeg[1] * units.DegToRad
		ymin = widthDeg[2] * units.DegToRad
		ymax = widthDeg[3] * units.DegToRad
	default:
		return PatchBounds{}, fmt.Errorf("skymap: width wants 1 or 4 values, got %d", len(widthDeg))
	}

	raSrc := raSrcDeg * units.DegToRad
	decSrc := decSrcDeg * units.DegToRad

	// Keep the ra bounds monotonic in [−π, π] when the patch crosses zero.
	raMin := raSrc - xmin
	var raMax float64
	if raSrc+xmax >= 2*math.Pi {
		raMax = math.Mod(raSrc+xmax, 2*math.Pi)
		if raMin > math.Pi {
			raMin -= 2 * math.Pi
		}
	} else {
		raMax = raSrc + xmax
	}

	return PatchBounds{
		RaMin:  raMin,
		RaMax:  raMax,
		DecMin: math.Max(decSrc-ymin, -math.Pi/2),
		DecMax: math.Min(decSrc+ymax, math.Pi/2),
	}, nil
}

// ObsPix resolves the bounds to the sorted set of observed pixel identifiers
// at the given tessellation resolution.
func (b PatchBounds) ObsPix(nside int) ([]int64, error) {
	return healpix.PatchPixels(nside, b.RaMin, b.RaMax, b.DecMin, b.DecMax)
}

// FlatGridSize returns the side length, in pixels, of the square planar grid
// covering the bounds at the given pixel size (radians).
func (b PatchBounds) FlatGridSize(pixelSize float64) (int, error) {
	if pixelSize <= 0 {
		return 0, fmt.Errorf("skymap: pixel size must be positive, got %v", pixelSize)
	}
	width := b.RaMax - b.RaMin
	if width < 0 {
		width += 2 * math.Pi
	}
	n := int(math.Round((width + pixelSize) / pixelSize))
	if n <= 0 {
		return 0, fmt.Errorf("skymap: degenerate flat grid for width %v", width)
	}
	return n, nil
}
