// Package healpix implements the RING-ordered equal-area sphere tessellation
// used to address sky pixels.
//
// Angles follow the usual spherical convention: theta is the colatitude in
// [0, π] measured from the north pole, phi the longitude in [0, 2π). The
// indexing matches the standard RING scheme, so pixel identifiers computed
// here agree with other HEALPix implementations at the same nside.
package healpix

import (
	"fmt"
	"math"

	"github.com/skysim/tod/internal/units"
)

// Npix returns the number of pixels of a full-sky map at resolution nside.
func Npix(nside int) int { return 12 * nside * nside }

// Resol returns the mean angular spacing between pixel centers in radians.
func Resol(nside int) float64 {
	return math.Sqrt(math.Pi/3.0) / float64(nside)
}

// ValidNside reports whether nside is a positive power of two.
func ValidNside(nside int) bool {
	return nside > 0 && nside&(nside-1) == 0
}

// Ang2Pix returns the RING-ordered pixel identifier containing the direction
// (theta, phi) at resolution nside.
func Ang2Pix(nside int, theta, phi float64) int {
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := units.WrapTwoPi(phi) / (math.Pi / 2) // in [0,4)

	if za <= 2.0/3.0 {
		// equatorial belt
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int(math.Floor(temp1 - temp2))
		jm := int(math.Floor(temp1 + temp2))

		ir := nside + 1 + jp - jm
		kshift := 1 - ir&1
		nl4 := 4 * nside

		ip := (jp + jm - nside + kshift + 1) / 2
		ip = ip % nl4
		if ip < 0 {
			ip += nl4
		}
		return 2*nside*(nside-1) + (ir-1)*nl4 + ip
	}

	// polar caps
	tp := tt - math.Floor(tt)
	tmp := float64(nside) * math.Sqrt(3.0*(1.0-za))
	jp := int(math.Floor(tp * tmp))
	jm := int(math.Floor((1.0 - tp) * tmp))

	ir := jp + jm + 1
	ip := int(math.Floor(tt * float64(ir)))
	ip = ip % (4 * ir)
	if ip < 0 {
		ip += 4 * ir
	}
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return 12*nside*nside - 2*ir*(ir+1) + ip
}

// Pix2Ang returns the (theta, phi) center of RING-ordered pixel ipix at
// resolution nside.
func Pix2Ang(nside, ipix int) (theta, phi float64) {
	npix := Npix(nside)
	ncap := 2 * nside * (nside - 1)

	switch {
	case ipix < ncap:
		// north polar cap
		ph := float64(ipix+1) / 2.0
		i := int(math.Floor(math.Sqrt(ph-math.Sqrt(math.Floor(ph))))) + 1
		j := ipix + 1 - 2*i*(i-1)
		theta = math.Acos(1.0 - float64(i*i)/(3.0*float64(nside*nside)))
		phi = (float64(j) - 0.5) * math.Pi / (2.0 * float64(i))

	case ipix < npix-ncap:
		// equatorial belt
		ip := ipix - ncap
		nl4 := 4 * nside
		i := ip/nl4 + nside // ring counted from the north pole
		j := ip%nl4 + 1
		fodd := 0.5 * float64(1+(i+nside)&1)
		theta = math.Acos((4.0 - 2.0*float64(i)/float64(nside)) / 3.0)
		phi = (float64(j) - fodd) * math.Pi / (2.0 * float64(nside))

	default:
		// south polar cap
		ip := npix - ipix
		ph := float64(ip) / 2.0
		i := int(math.Floor(math.Sqrt(ph-math.Sqrt(math.Floor(ph))))) + 1
		j := 4*i + 1 - (ip - 2*i*(i-1))
		theta = math.Acos(-1.0 + float64(i*i)/(3.0*float64(nside*nside)))
		phi = (float64(j) - 0.5) * math.Pi / (2.0 * float64(i))
	}
	return theta, phi
}

// RaDec2ThetaPhi converts celestial coordinates in radians to the spherical
// convention used by the tessellation.
func RaDec2ThetaPhi(ra, dec float64) (theta, phi float64) {
	return math.Pi/2.0 - dec, ra
}

// PatchPixels returns the sorted identifiers of every pixel whose center
// falls inside the rectangle [raMin, raMax] × [decMin, decMax] (radians).
// A patch crossing ra = 0 is expressed with raMin > raMax after wrapping;
// the scan over all pixels runs once per simulation so the O(npix) cost is
// acceptable.
func PatchPixels(nside int, raMin, raMax, decMin, decMax float64) ([]int64, error) {
	if !ValidNside(nside) {
		return nil, fmt.Errorf("healpix: invalid nside %d", nside)
	}
	raMin = units.WrapTwoPi(raMin)
	raMax = units.WrapTwoPi(raMax)

	wraps := raMin > raMax
	var pix []int64
	for p := 0; p < Npix(nside); p++ {
		theta, phi := Pix2Ang(nside, p)
		dec := math.Pi/2.0 - theta
		if dec < decMin || dec > decMax {
			continue
		}
		inRa := phi >= raMin && phi <= raMax
		if wraps {
			inRa = phi >= raMin || phi <= raMax
		}
		if inRa {
			pix = append(pix, int64(p))
		}
	}
	return pix, nil
}

// Rotation matrix taking J2000 equatorial cartesian coordinates to galactic
// cartesian coordinates (rows are the galactic basis vectors).
var eqToGal = [3][3]float64{
	{-0.054875539, -0.873437105, -0.483834992},
	{+0.494109454, -0.444829594, +0.746982249},
	{-0.867666136, -0.198076390, +0.455983795},
}

// EquatorialToGalactic rotates a direction given as (theta, phi) in the
// equatorial frame into the galactic frame.
func EquatorialToGalactic(theta, phi float64) (gtheta, gphi float64) {
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	x := st * cp
	y := st * sp
	z := ct

	gx := eqToGal[0][0]*x + eqToGal[0][1]*y + eqToGal[0][2]*z
	gy := eqToGal[1][0]*x + eqToGal[1][1]*y + eqToGal[1][2]*z
	gz := eqToGal[2][0]*x + eqToGal[2][1]*y + eqToGal[2][2]*z

	gtheta = math.Acos(math.Max(-1, math.Min(1, gz)))
	gphi = units.WrapTwoPi(math.Atan2(gy, gx))
	return gtheta, gphi
}
