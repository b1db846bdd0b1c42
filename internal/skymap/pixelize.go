// Package skymap maps celestial coordinates to sky pixels and accumulates
// noise-weighted timestream products into per-pixel normal equations.
package skymap

import (
	"fmt"
	"math"
	"sort"

	"github.com/skysim/tod/internal/healpix"
)

// Outside is the sentinel local index assigned to samples falling outside
// the observed patch. It must never be dereferenced into map arrays.
const Outside int32 = -1

// SphericalIndexer resolves coordinates to pixels of the full-sky
// tessellation, and optionally to positions inside a restricted
// observed-pixel set.
type SphericalIndexer struct {
	// Nside fixes the tessellation resolution.
	Nside int
	// ObsPix is the sorted observed-pixel set; nil disables local
	// resolution entirely.
	ObsPix []int64
	// CutOutliers masks samples outside ObsPix with the Outside sentinel.
	// When false such a sample is a configuration error: the patch was
	// declared too small for the scan.
	CutOutliers bool
	// GalacticRotation rotates coordinates from the equatorial to the
	// galactic frame before indexing.
	GalacticRotation bool
}

// Resolve maps per-sample (ra, dec), radians, to global pixel identifiers
// and, when an observed-pixel set is active, to local indices into that set.
// local is nil when no set is active.
func (ix *SphericalIndexer) Resolve(ra, dec []float64) (global []int64, local []int32, err error) {
	if len(ra) != len(dec) {
		return nil, nil, fmt.Errorf("skymap: ra/dec lengths differ: %d vs %d", len(ra), len(dec))
	}
	if !healpix.ValidNside(ix.Nside) {
		return nil, nil, fmt.Errorf("skymap: invalid nside %d", ix.Nside)
	}

	global = make([]int64, len(ra))
	for i := range ra {
		theta, phi := healpix.RaDec2ThetaPhi(ra[i], dec[i])
		if ix.GalacticRotation {
			theta, phi = healpix.EquatorialToGalactic(theta, phi)
		}
		global[i] = int64(healpix.Ang2Pix(ix.Nside, theta, phi))
	}

	if ix.ObsPix == nil {
		return global, nil, nil
	}

	local = make([]int32, len(global))
	for i, g := range global {
		j := sort.Search(len(ix.ObsPix), func(k int) bool { return ix.ObsPix[k] >= g })
		if j < len(ix.ObsPix) && ix.ObsPix[j] == g {
			local[i] = int32(j)
			continue
		}
		if !ix.CutOutliers {
			return nil, nil, fmt.Errorf(
				"skymap: pixel %d at sample %d outside patch boundaries; patch width insufficient", g, i)
		}
		local[i] = Outside
	}
	return global, local, nil
}

// FlatIndexer quantizes tangent-plane coordinates onto a square grid of
// NpixPerRow × NpixPerRow pixels. XMin/YMin locate the lower corner of the
// grid (radians, before the half-pixel shift); PixelSize is the pixel side.
type FlatIndexer struct {
	XMin, YMin float64
	PixelSize  float64
	NpixPerRow int
}

// Project applies the Lambert cylindrical equal-area projection: x is the
// right ascension wrapped to (−π, π], y the sine of declination.
func (FlatIndexer) Project(ra, dec float64) (x, y float64) {
	x = ra
	if x > math.Pi {
		x -= 2 * math.Pi
	}
	return x, math.Sin(dec)
}

// Resolve maps per-sample coordinates to local grid indices; samples outside
// the grid extent get the Outside sentinel.
func (ix *FlatIndexer) Resolve(ra, dec []float64) ([]int32, error) {
	if len(ra) != len(dec) {
		return nil, fmt.Errorf("skymap: ra/dec lengths differ: %d vs %d", len(ra), len(dec))
	}
	if ix.PixelSize <= 0 || ix.NpixPerRow <= 0 {
		return nil, fmt.Errorf("skymap: flat grid misconfigured: pixel=%v nrow=%d",
			ix.PixelSize, ix.NpixPerRow)
	}

	xMinMap := ix.XMin - ix.PixelSize/2
	yMinMap := ix.YMin - ix.PixelSize/2

	local := make([]int32, len(ra))
	for i := range ra {
		x, y := ix.Project(ra[i], dec[i])
		gx := int(math.Floor((x - xMinMap) / ix.PixelSize))
		gy := int(math.Floor((y - yMinMap) / ix.PixelSize))
		if gx < 0 || gx >= ix.NpixPerRow || gy < 0 || gy >= ix.NpixPerRow {
			local[i] = Outside
			continue
		}
		local[i] = int32(gx*ix.NpixPerRow + gy)
	}
	return local, nil
}
