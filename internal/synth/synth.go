// Package synth provides synthetic stand-ins for the external collaborators
// of the simulation: a focal plane of detector pairs, a patch-tracking
// scanning strategy, and a randomized input sky. Real hardware and scan
// generators plug in through the same interfaces.
package synth

import (
	"math"
	"math/rand"

	"github.com/skysim/tod/internal/healpix"
	"github.com/skysim/tod/internal/pointing"
	"github.com/skysim/tod/internal/tod"
	"github.com/skysim/tod/internal/units"
)

// Instrument is a small focal plane of detector pairs spread on a ring
// around the boresight. Channels 2p and 2p+1 share the position of pair p
// and carry orthogonal intrinsic polarization angles.
type Instrument struct {
	Pairs int
	// SpreadDeg is the angular radius of the detector ring; defaults to
	// 0.3 degrees.
	SpreadDeg float64
	// HWPFreqHz is the rotation frequency of the modulation device;
	// defaults to 2 Hz.
	HWPFreqHz float64
	// Model holds the mechanical pointing terms; nil means a perfect
	// mount.
	Model *pointing.Model
}

var _ tod.Instrument = (*Instrument)(nil)

func (in *Instrument) NPairs() int { return in.Pairs }

func (in *Instrument) spread() float64 {
	if in.SpreadDeg > 0 {
		return in.SpreadDeg * units.DegToRad
	}
	return 0.3 * units.DegToRad
}

// FocalPlanePos places pair p at angle 2πp/npairs on the detector ring.
// Both channels of a pair are co-located.
func (in *Instrument) FocalPlanePos(ch int) (x, y float64) {
	pair := ch / 2
	phi := 2 * math.Pi * float64(pair) / float64(in.Pairs)
	r := in.spread()
	return r * math.Cos(phi), r * math.Sin(phi)
}

// PolAngleDeg staggers pair orientations across the focal plane; the odd
// channel is orthogonal to its even partner.
func (in *Instrument) PolAngleDeg(ch int) float64 {
	pair := ch / 2
	base := math.Mod(float64(pair)*22.5, 180)
	if ch%2 == 1 {
		base += 90
	}
	return base
}

// HWPAngles models a continuously rotating half-wave plate starting at zero.
func (in *Instrument) HWPAngles(sampleRate float64, n int) []float64 {
	freq := in.HWPFreqHz
	if freq == 0 {
		freq = 2
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = units.WrapTwoPi(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func (in *Instrument) PointingModel() *pointing.Model {
	if in.Model == nil {
		return &pointing.Model{}
	}
	return in.Model
}

// Strategy generates scans that track the configured sky patch: the
// boresight trajectory is laid out in equatorial coordinates inside the
// patch and converted to encoder angles through the inverse horizon
// transform, so a zero pointing model reproduces the trajectory exactly.
type Strategy struct {
	Scans      int
	Samples    int
	SampleRate float64 // Hz

	LatDeg, LonDeg      float64
	RaMidDeg, DecMidDeg float64
	// AmplitudeDeg sets the half-extent of the raster inside the patch;
	// defaults to 4 degrees.
	AmplitudeDeg float64
	// StartMJD is the UTC start of the first scan; defaults to 56293.
	StartMJD float64

	// Table optionally supplies UT1−UTC corrections; nil means zero.
	Table pointing.DUT1Source
}

var _ tod.ScanningStrategy = (*Strategy)(nil)

func (st *Strategy) NScans() int { return st.Scans }

func (st *Strategy) DUT1() pointing.DUT1Source {
	if st.Table == nil {
		return pointing.ZeroDUT1{}
	}
	return st.Table
}

// Scan synthesizes scan i. Successive scans start one scan-duration apart.
func (st *Strategy) Scan(i int) *tod.Scan {
	n := st.Samples
	amp := st.AmplitudeDeg
	if amp == 0 {
		amp = 4
	}
	amp *= units.DegToRad
	start := st.StartMJD
	if start == 0 {
		start = 56293
	}
	start += float64(i) * float64(n) / st.SampleRate / 86400.0

	lat := st.LatDeg * units.DegToRad
	lon := st.LonDeg * units.DegToRad
	raMid := st.RaMidDeg * units.DegToRad
	decMid := st.DecMidDeg * units.DegToRad

	s := &tod.Scan{
		Azimuth:    make([]float64, n),
		Elevation:  make([]float64, n),
		TimeMJD:    make([]float64, n),
		SampleRate: st.SampleRate,
		LatDeg:     st.LatDeg,
		LonDeg:     st.LonDeg,
		RaMidDeg:   st.RaMidDeg,
		DecMidDeg:  st.DecMidDeg,
	}
	for t := 0; t < n; t++ {
		// Lissajous-style raster over the patch interior.
		frac := float64(t) / float64(n)
		ra := raMid + amp*math.Sin(2*math.Pi*3*frac)
		dec := decMid + 0.75*amp*math.Cos(2*math.Pi*2*frac)

		mjd := start + float64(t)/st.SampleRate/86400.0
		lst := pointing.LocalSiderealTime(mjd, st.DUT1().DUT1(mjd), lon)
		az, el := pointing.EquatorialToHorizon(ra, dec, lst, lat)

		s.Azimuth[t] = az
		s.Elevation[t] = el
		s.TimeMJD[t] = mjd
	}
	return s
}

// Sky is a full-sky Stokes model with seeded random pixel values.
type Sky struct {
	nside    int
	i, q, u  []float64
	hasPol   bool
	galactic bool
}

var _ tod.SkyModel = (*Sky)(nil)

// NewSky draws a random sky at the given resolution: intensity of order
// 100, polarization of order a few.
func NewSky(nside int, seed int64, hasPol bool) *Sky {
	rng := rand.New(rand.NewSource(seed))
	npix := healpix.Npix(nside)
	s := &Sky{
		nside:  nside,
		i:      make([]float64, npix),
		q:      make([]float64, npix),
		u:      make([]float64, npix),
		hasPol: hasPol,
	}
	for p := 0; p < npix; p++ {
		s.i[p] = 200*rng.Float64() - 100
		if hasPol {
			s.q[p] = 8*rng.Float64() - 4
			s.u[p] = 8*rng.Float64() - 4
		}
	}
	return s
}

// NewUniformSky builds a sky with constant Stokes values everywhere,
// useful for projection-independent round trips.
func NewUniformSky(nside int, i, q, u float64, hasPol bool) *Sky {
	npix := healpix.Npix(nside)
	s := &Sky{
		nside:  nside,
		i:      make([]float64, npix),
		q:      make([]float64, npix),
		u:      make([]float64, npix),
		hasPol: hasPol,
	}
	for p := 0; p < npix; p++ {
		s.i[p] = i
		s.q[p] = q
		s.u[p] = u
	}
	return s
}

func (s *Sky) Nside() int          { return s.nside }
func (s *Sky) I() []float64        { return s.i }
func (s *Sky) Q() []float64        { return s.q }
func (s *Sky) U() []float64        { return s.u }
func (s *Sky) HasPol() bool        { return s.hasPol }
func (s *Sky) GalacticFrame() bool { return s.galactic }
