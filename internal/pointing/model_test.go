package pointing

import (
	"math"
	"testing"
)

func encoderFixture(n int) (az, el, tm []float64) {
	az = make([]float64, n)
	el = make([]float64, n)
	tm = make([]float64, n)
	for i := 0; i < n; i++ {
		az[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
		el[i] = 0.5
		tm[i] = 56293 + float64(i)/84000
	}
	return az, el, tm
}

func TestNewModelVocabulary(t *testing.T) {
	m, err := NewModel([]string{"ia", "ie", "ca", "an", "aw"},
		[]float64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if m.IA != 1 || m.IE != 2 || m.CA != 3 || m.AN != 4 || m.AW != 5 {
		t.Errorf("named terms not applied: %+v", m)
	}
	if m.NPAE != 0 || m.DT != 0 || m.STE2 != 0 {
		t.Errorf("unnamed terms must stay zero: %+v", m)
	}
}

func TestNewModelErrors(t *testing.T) {
	if _, err := NewModel([]string{"ia", "ie"}, []float64{1}); err == nil {
		t.Error("expected error for mismatched vector lengths")
	}
	if _, err := NewModel([]string{"bogus"}, []float64{1}); err == nil {
		t.Error("expected error for unknown term name")
	}
}

// Reference values for a five-term model on the standard encoder fixture.
func TestApplyFiveParams(t *testing.T) {
	m, err := NewModel([]string{"ia", "ie", "ca", "an", "aw"},
		[]float64{10.28473073, 8.73953334, -15.59771781, -0.50977716, 0.10858016})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	azEnc, elEnc, tm := encoderFixture(100)
	az, _, err := m.Apply(azEnc, elEnc, tm, -22)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []float64{0.11717842, 0.17922137}
	for i, w := range want {
		if got := az[i+2]; math.Abs(got-w) > 1e-7 {
			t.Errorf("az[%d] = %.8f, want %.8f", i+2, got, w)
		}
	}
}

func TestApplyZeroModelIsIdentity(t *testing.T) {
	azEnc, elEnc, tm := encoderFixture(50)
	m := &Model{}
	az, el, err := m.Apply(azEnc, elEnc, tm, -22.956)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range az {
		if az[i] != azEnc[i] || el[i] != elEnc[i] {
			t.Fatalf("sample %d: zero model changed (%v,%v) to (%v,%v)",
				i, azEnc[i], elEnc[i], az[i], el[i])
		}
	}
}

func TestApplyDeterministic(t *testing.T) {
	m, _ := NewModel([]string{"an", "dt", "elt"}, []float64{0.3, 1.5, 0.01})
	azEnc, elEnc, tm := encoderFixture(64)
	az1, el1, _ := m.Apply(azEnc, elEnc, tm, -22.956)
	az2, el2, _ := m.Apply(azEnc, elEnc, tm, -22.956)
	for i := range az1 {
		if az1[i] != az2[i] || el1[i] != el2[i] {
			t.Fatalf("sample %d: repeated Apply disagrees", i)
		}
	}
}

func TestApplyLengthMismatch(t *testing.T) {
	m := &Model{}
	if _, _, err := m.Apply([]float64{1, 2}, []float64{1}, []float64{1, 2}, 0); err == nil {
		t.Error("expected error for mismatched encoder arrays")
	}
}
