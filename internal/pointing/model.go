package pointing

import (
	"fmt"
	"math"

	"github.com/skysim/tod/internal/units"
)

// Model holds the mechanical pointing-model terms applied to raw encoder
// angles. Every term defaults to zero; only the terms named at construction
// are populated. Harmonic and static terms are in degrees, DT in seconds,
// ELT in degrees per day.
type Model struct {
	AN   float64 // azimuth axis tilt north of vertical
	AW   float64 // azimuth axis tilt west of vertical
	AN2  float64 // 2θ structural warp ("potato chip"), north
	AW2  float64 // 2θ structural warp, west
	AN4  float64 // 4θ harmonic, north
	AW4  float64 // 4θ harmonic, west
	NPAE float64 // non-perpendicularity of azimuth/elevation axes
	CA   float64 // beam-to-boresight collimation in azimuth
	IA   float64 // azimuth encoder zero
	IE   float64 // elevation encoder zero + beam collimation in elevation
	TF   float64 // cosine gravitational flexure
	TFS  float64 // sine gravitational flexure
	Ref  float64 // atmospheric refraction
	DT   float64 // timing error, in seconds
	ELT  float64 // elevation drift linear in time from scan start
	TA1  float64 // linear structural thermal warp, azimuth
	TE1  float64 // linear structural thermal warp, elevation
	SA   float64 // solar radiation warp, azimuth
	SE   float64 // solar radiation warp, elevation
	SA2  float64 // second-order solar warp, azimuth
	SE2  float64 // second-order solar warp, elevation
	STA  float64 // solar thermal warp, azimuth
	STE  float64 // solar thermal warp, elevation
	STA2 float64 // second-order solar thermal warp, azimuth
	STE2 float64 // second-order solar thermal warp, elevation
}

// termSetters is the closed vocabulary of recognised term names.
var termSetters = map[string]func(*Model, float64){
	"an":   func(m *Model, v float64) { m.AN = v },
	"aw":   func(m *Model, v float64) { m.AW = v },
	"an2":  func(m *Model, v float64) { m.AN2 = v },
	"aw2":  func(m *Model, v float64) { m.AW2 = v },
	"an4":  func(m *Model, v float64) { m.AN4 = v },
	"aw4":  func(m *Model, v float64) { m.AW4 = v },
	"npae": func(m *Model, v float64) { m.NPAE = v },
	"ca":   func(m *Model, v float64) { m.CA = v },
	"ia":   func(m *Model, v float64) { m.IA = v },
	"ie":   func(m *Model, v float64) { m.IE = v },
	"tf":   func(m *Model, v float64) { m.TF = v },
	"tfs":  func(m *Model, v float64) { m.TFS = v },
	"ref":  func(m *Model, v float64) { m.Ref = v },
	"dt":   func(m *Model, v float64) { m.DT = v },
	"elt":  func(m *Model, v float64) { m.ELT = v },
	"ta1":  func(m *Model, v float64) { m.TA1 = v },
	"te1":  func(m *Model, v float64) { m.TE1 = v },
	"sa":   func(m *Model, v float64) { m.SA = v },
	"se":   func(m *Model, v float64) { m.SE = v },
	"sa2":  func(m *Model, v float64) { m.SA2 = v },
	"se2":  func(m *Model, v float64) { m.SE2 = v },
	"sta":  func(m *Model, v float64) { m.STA = v },
	"ste":  func(m *Model, v float64) { m.STE = v },
	"sta2": func(m *Model, v float64) { m.STA2 = v },
	"ste2": func(m *Model, v float64) { m.STE2 = v },
}

// NewModel builds a Model from parallel name and value vectors. Unnamed terms
// stay zero. The two vectors must have the same length and every name must
// belong to the recognised vocabulary.
func NewModel(names []string, values []float64) (*Model, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("pointing: %d term names but %d values", len(names), len(values))
	}
	m := &Model{}
	for i, name := range names {
		set, ok := termSetters[name]
		if !ok {
			return nil, fmt.Errorf("pointing: unknown model term %q", name)
		}
		set(m, values[i])
	}
	return m, nil
}

// Apply corrects raw encoder azimuth/elevation (radians) for the mechanical
// terms of the model. timeMJD carries the per-sample UTC timestamps; the
// time-linear term is measured from the scan's own start. latDeg is the
// telescope latitude in degrees. Apply is a pure function of its inputs.
func (m *Model) Apply(azEnc, elEnc, timeMJD []float64, latDeg float64) (az, el []float64, err error) {
	n := len(azEnc)
	if len(elEnc) != n || len(timeMJD) != n {
		return nil, nil, fmt.Errorf("pointing: encoder array lengths differ: az=%d el=%d time=%d",
			n, len(elEnc), len(timeMJD))
	}

	lat := latDeg * units.DegToRad
	sinLat, cosLat := math.Sincos(lat)

	// The timing term converts a clock offset to the equivalent sky
	// rotation in degrees before entering the geometric sum.
	dt := m.DT * units.SecToDeg

	t0 := math.Inf(1)
	for _, t := range timeMJD {
		if t < t0 {
			t0 = t
		}
	}

	az = make([]float64, n)
	el = make([]float64, n)
	for i := 0; i < n; i++ {
		sinAz, cosAz := math.Sincos(azEnc[i])
		sin2Az, cos2Az := math.Sincos(2 * azEnc[i])
		sin4Az, cos4Az := math.Sincos(4 * azEnc[i])
		sinEl, cosEl := math.Sincos(elEnc[i])
		tanEl := sinEl / cosEl

		azd := -m.AN * sinAz * sinEl
		azd -= m.AW * cosAz * sinEl
		azd -= -m.AN2 * sin2Az * sinEl
		azd -= m.AW2 * cos2Az * sinEl
		azd -= -m.AN4 * sin4Az * sinEl
		azd -= m.AW4 * cos4Az * sinEl
		azd += m.NPAE * sinEl
		azd -= m.CA
		azd += m.IA * cosEl
		azd += dt * (-sinLat + cosAz*cosLat*tanEl)

		eld := m.AN * cosAz
		eld -= m.AW * sinAz
		eld -= m.AN2 * cos2Az
		eld -= m.AW2 * sin2Az
		eld -= m.AN4 * cos4Az
		eld -= m.AW4 * sin4Az
		eld -= m.IE
		eld += m.TF * cosEl
		eld += m.TFS * sinEl
		eld -= m.Ref / tanEl
		eld += -dt * cosLat * sinAz
		eld += m.ELT * (timeMJD[i] - t0)

		// Offsets are in arc-minutes; the azimuth offset foreshortens
		// with elevation before it is applied on the sky circle.
		azd *= units.ArcminToRad
		eld *= units.ArcminToRad
		azd /= cosEl

		az[i] = azEnc[i] - azd
		el[i] = elEnc[i] - eld
	}
	return az, el, nil
}
