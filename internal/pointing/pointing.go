// Package pointing converts raw telescope encoder angles into per-detector
// celestial coordinates.
//
// The chain has two stages: a mechanical pointing-model correction applied to
// the encoder azimuth/elevation (Model), and a horizon-to-equatorial
// transform using local sidereal time derived from the UTC timestamps and an
// externally supplied UT1−UTC table (Pointing).
package pointing

import (
	"fmt"
	"math"

	"github.com/skysim/tod/internal/units"
)

// Pointing holds corrected boresight motion for one scan and computes the
// sky coordinates seen by any detector of the focal plane. The transform is
// recomputed per detector; Pointing itself is immutable after construction.
type Pointing struct {
	az, el  []float64 // corrected boresight, radians
	lst     []float64 // local apparent sidereal time per sample, radians
	lat     float64   // radians
	sinLat  float64
	cosLat  float64
	tanLat  float64
	raSrc   float64 // rotation target, radians
	decSrc  float64
	rotates bool
}

// Config collects the inputs of the boresight pointing chain.
type Config struct {
	AzEnc, ElEnc []float64 // raw encoder angles, radians
	TimeMJD      []float64 // UTC timestamps, modified Julian date
	Model        *Model    // nil means no mechanical correction
	DUT1         DUT1Source
	LatDeg       float64
	LonDeg       float64
	// RaSrcDeg/DecSrcDeg name the patch center that should land at the
	// origin of the projected coordinates. Leave both zero to keep
	// absolute equatorial coordinates.
	RaSrcDeg  float64
	DecSrcDeg float64
}

// New applies the pointing model and precomputes the per-sample sidereal
// time. The encoder arrays must share one length.
func New(cfg Config) (*Pointing, error) {
	if cfg.DUT1 == nil {
		cfg.DUT1 = ZeroDUT1{}
	}
	model := cfg.Model
	if model == nil {
		model = &Model{}
	}
	az, el, err := model.Apply(cfg.AzEnc, cfg.ElEnc, cfg.TimeMJD, cfg.LatDeg)
	if err != nil {
		return nil, err
	}

	lon := cfg.LonDeg * units.DegToRad
	lst := make([]float64, len(cfg.TimeMJD))
	for i, mjd := range cfg.TimeMJD {
		lst[i] = LocalSiderealTime(mjd, cfg.DUT1.DUT1(mjd), lon)
	}

	lat := cfg.LatDeg * units.DegToRad
	sinLat, cosLat := math.Sincos(lat)
	return &Pointing{
		az:      az,
		el:      el,
		lst:     lst,
		lat:     lat,
		sinLat:  sinLat,
		cosLat:  cosLat,
		tanLat:  sinLat / cosLat,
		raSrc:   cfg.RaSrcDeg * units.DegToRad,
		decSrc:  cfg.DecSrcDeg * units.DegToRad,
		rotates: cfg.RaSrcDeg != 0 || cfg.DecSrcDeg != 0,
	}, nil
}

// NSamples returns the scan length.
func (p *Pointing) NSamples() int { return len(p.az) }

// Boresight returns the corrected azimuth and elevation arrays.
func (p *Pointing) Boresight() (az, el []float64) { return p.az, p.el }

// OffsetDetector computes right ascension, declination and parallactic angle
// for a detector displaced from the boresight by the focal-plane offsets
// (azOff, elOff), both in radians, azOff measured on the sky circle.
func (p *Pointing) OffsetDetector(azOff, elOff float64) (ra, dec, pa []float64) {
	n := len(p.az)
	ra = make([]float64, n)
	dec = make([]float64, n)
	pa = make([]float64, n)

	for i := 0; i < n; i++ {
		elD := p.el[i] + elOff
		sinEl, cosEl := math.Sincos(elD)
		azD := p.az[i] + azOff/cosEl
		sinAz, cosAz := math.Sincos(azD)

		sinDec := p.sinLat*sinEl + p.cosLat*cosEl*cosAz
		if sinDec > 1 {
			sinDec = 1
		} else if sinDec < -1 {
			sinDec = -1
		}
		decI := math.Asin(sinDec)

		// Hour angle from the same triangle; the shared cos(dec)
		// factor cancels inside atan2.
		sinH := -sinAz * cosEl
		cosH := (sinEl - p.sinLat*sinDec) / p.cosLat
		h := math.Atan2(sinH, cosH)

		raI := units.WrapTwoPi(p.lst[i] - h)

		cosDec := math.Cos(decI)
		pa[i] = math.Atan2(sinH, p.tanLat*cosDec-sinDec*math.Cos(h))

		if p.rotates {
			raI, decI = rotateToOrigin(raI, decI, p.raSrc, p.decSrc)
		}
		ra[i] = raI
		dec[i] = decI
	}
	return ra, dec, pa
}

// rotateToOrigin rotates (ra, dec) so that (raSrc, decSrc) maps to (0, 0):
// a z-rotation by −raSrc followed by a y-rotation by decSrc.
func rotateToOrigin(ra, dec, raSrc, decSrc float64) (float64, float64) {
	sinD, cosD := math.Sincos(dec)
	sinR, cosR := math.Sincos(ra - raSrc)
	x := cosD * cosR
	y := cosD * sinR
	z := sinD

	sinS, cosS := math.Sincos(decSrc)
	x2 := x*cosS + z*sinS
	z2 := -x*sinS + z*cosS

	return units.WrapTwoPi(math.Atan2(y, x2)), math.Asin(math.Max(-1, math.Min(1, z2)))
}

// LocalSiderealTime returns the local apparent sidereal time in radians for
// a UTC modified Julian date, a UT1−UTC correction in seconds, and an east
// longitude in radians. The Greenwich mean sidereal time follows the IAU
// 1982 polynomial.
func LocalSiderealTime(mjdUTC, dut1, lon float64) float64 {
	jd := mjdUTC + dut1/86400.0 + 2400000.5
	d := jd - 2451545.0
	t := d / 36525.0

	gmstDeg := 280.46061837 +
		360.98564736629*d +
		0.000387933*t*t -
		t*t*t/38710000.0

	return units.WrapTwoPi(gmstDeg*units.DegToRad + lon)
}

// EquatorialToHorizon inverts the horizon transform: given (ra, dec), the
// local sidereal time and the site latitude (all radians), it returns the
// azimuth (from north through east) and elevation. Useful for synthesizing
// scans that track a chosen sky patch.
func EquatorialToHorizon(ra, dec, lst, lat float64) (az, el float64) {
	h := lst - ra
	sinH, cosH := math.Sincos(h)
	sinDec, cosDec := math.Sincos(dec)
	sinLat, cosLat := math.Sincos(lat)

	sinEl := sinLat*sinDec + cosLat*cosDec*cosH
	if sinEl > 1 {
		sinEl = 1
	} else if sinEl < -1 {
		sinEl = -1
	}
	el = math.Asin(sinEl)
	az = math.Atan2(-sinH*cosDec, (sinDec-sinLat*sinEl)/cosLat)
	return units.WrapTwoPi(az), el
}

// String implements fmt.Stringer for diagnostics.
func (p *Pointing) String() string {
	return fmt.Sprintf("pointing{nsamples=%d lat=%.4f rot=(%.4f,%.4f)}",
		len(p.az), p.lat, p.raSrc, p.decSrc)
}
