package units

import (
	"math"
	"testing"
)

func TestWrapTwoPi(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"negative", -math.Pi / 2, 3 * math.Pi / 2},
		{"above", 5 * math.Pi / 2, math.Pi / 2},
		{"exact turn", 2 * math.Pi, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapTwoPi(tt.in); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("WrapTwoPi(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrapPi(t *testing.T) {
	if got := WrapPi(3 * math.Pi / 2); math.Abs(got+math.Pi/2) > 1e-12 {
		t.Errorf("WrapPi(3π/2) = %v, want −π/2", got)
	}
	if got := WrapPi(math.Pi); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("WrapPi(π) = %v, want π", got)
	}
}

func TestSecToDeg(t *testing.T) {
	// One sidereal-ish day of seconds maps back to a full turn.
	if got := 86400.0 * SecToDeg; got != 360.0 {
		t.Errorf("86400s = %v deg, want 360", got)
	}
}
