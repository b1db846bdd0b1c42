package synth

import (
	"math"
	"testing"

	"github.com/skysim/tod/internal/units"
)

func TestInstrumentPairGeometry(t *testing.T) {
	in := &Instrument{Pairs: 4}

	for p := 0; p < in.Pairs; p++ {
		ex, ey := in.FocalPlanePos(2 * p)
		ox, oy := in.FocalPlanePos(2*p + 1)
		if ex != ox || ey != oy {
			t.Errorf("pair %d channels not co-located: (%v,%v) vs (%v,%v)", p, ex, ey, ox, oy)
		}
		r := math.Hypot(ex, ey)
		if math.Abs(r-0.3*units.DegToRad) > 1e-12 {
			t.Errorf("pair %d at radius %v, want default ring", p, r)
		}

		diff := in.PolAngleDeg(2*p+1) - in.PolAngleDeg(2*p)
		if diff != 90 {
			t.Errorf("pair %d orientation split = %v, want 90", p, diff)
		}
	}
}

func TestInstrumentHWPAngles(t *testing.T) {
	in := &Instrument{Pairs: 1, HWPFreqHz: 2}
	angles := in.HWPAngles(20, 40)
	if len(angles) != 40 {
		t.Fatalf("got %d angles, want 40", len(angles))
	}
	if angles[0] != 0 {
		t.Errorf("rotation starts at %v, want 0", angles[0])
	}
	// 2 Hz at 20 samples/s advances a tenth of a turn per sample.
	want := units.WrapTwoPi(2 * math.Pi * 2 * 7.0 / 20.0)
	if math.Abs(angles[7]-want) > 1e-12 {
		t.Errorf("angles[7] = %v, want %v", angles[7], want)
	}
	for _, a := range angles {
		if a < 0 || a >= 2*math.Pi {
			t.Fatalf("angle %v outside [0, 2π)", a)
		}
	}
}

func TestStrategyScansAreValidAndDisjointInTime(t *testing.T) {
	st := &Strategy{
		Scans:      2,
		Samples:    256,
		SampleRate: 20,
		LatDeg:     -22.956,
		LonDeg:     -67.78,
		RaMidDeg:   15,
		DecMidDeg:  -30,
	}

	first := st.Scan(0)
	second := st.Scan(1)
	for i, s := range []interface{ Validate() error }{first, second} {
		if err := s.Validate(); err != nil {
			t.Fatalf("scan %d invalid: %v", i, err)
		}
	}
	if second.TimeMJD[0] <= first.TimeMJD[len(first.TimeMJD)-1] {
		t.Errorf("scan 1 starts at %v before scan 0 ends at %v",
			second.TimeMJD[0], first.TimeMJD[len(first.TimeMJD)-1])
	}
	for i := 1; i < len(first.TimeMJD); i++ {
		if first.TimeMJD[i] <= first.TimeMJD[i-1] {
			t.Fatalf("timestamps not increasing at sample %d", i)
		}
	}
}

func TestNewSkyDeterministicPerSeed(t *testing.T) {
	a := NewSky(8, 7, true)
	b := NewSky(8, 7, true)
	c := NewSky(8, 8, true)

	for p := range a.I() {
		if a.I()[p] != b.I()[p] || a.Q()[p] != b.Q()[p] {
			t.Fatalf("same seed diverged at pixel %d", p)
		}
	}
	same := true
	for p := range a.I() {
		if a.I()[p] != c.I()[p] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical skies")
	}

	for p := range a.I() {
		if v := a.I()[p]; v < -100 || v > 100 {
			t.Fatalf("intensity %v outside [-100, 100]", v)
		}
		if v := a.Q()[p]; v < -4 || v > 4 {
			t.Fatalf("Q %v outside [-4, 4]", v)
		}
	}
}

func TestNewUniformSky(t *testing.T) {
	s := NewUniformSky(8, 10, 2, -1, true)
	for p := range s.I() {
		if s.I()[p] != 10 || s.Q()[p] != 2 || s.U()[p] != -1 {
			t.Fatalf("pixel %d not uniform: %v %v %v", p, s.I()[p], s.Q()[p], s.U()[p])
		}
	}
	flat := NewUniformSky(8, 5, 0, 0, false)
	if flat.HasPol() {
		t.Error("intensity-only sky reports polarization")
	}
}
