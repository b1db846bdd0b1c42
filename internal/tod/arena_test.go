package tod

import (
	"testing"

	"github.com/skysim/tod/internal/skymap"
)

func TestNewPairArenaStartsWithSentinels(t *testing.T) {
	a, err := NewPairArena(2, 3)
	if err != nil {
		t.Fatalf("NewPairArena: %v", err)
	}
	for i, p := range a.Pixels {
		if p != skymap.Outside {
			t.Fatalf("pixel %d initialised to %d, want sentinel", i, p)
		}
	}
	if a.Written(0) || a.Written(1) {
		t.Error("fresh arena reports written rows")
	}
}

func TestPairArenaSetRow(t *testing.T) {
	a, _ := NewPairArena(2, 3)
	pix := []int32{4, skymap.Outside, 5}
	ang := []float64{0.1, 0.2, 0.3}
	if err := a.SetRow(1, pix, ang); err != nil {
		t.Fatalf("SetRow: %v", err)
	}
	if !a.Written(1) {
		t.Error("row 1 not marked written")
	}
	if a.Written(0) {
		t.Error("row 0 spuriously marked written")
	}
	got := a.PixelRow(1)
	for i := range pix {
		if got[i] != pix[i] {
			t.Errorf("pixel[%d] = %d, want %d", i, got[i], pix[i])
		}
	}
	if a.AngleRow(1)[2] != 0.3 {
		t.Errorf("angle[2] = %v, want 0.3", a.AngleRow(1)[2])
	}
	// Row 0 untouched.
	if a.PixelRow(0)[0] != skymap.Outside {
		t.Error("row 0 modified by writing row 1")
	}
}

func TestPairArenaSetRowErrors(t *testing.T) {
	a, _ := NewPairArena(2, 3)
	if err := a.SetRow(2, make([]int32, 3), nil); err == nil {
		t.Error("expected error for pair out of range")
	}
	if err := a.SetRow(0, make([]int32, 2), nil); err == nil {
		t.Error("expected error for short pixel row")
	}
	if err := a.SetRow(0, make([]int32, 3), make([]float64, 1)); err == nil {
		t.Error("expected error for short angle row")
	}
}

func TestNewPairArenaValidation(t *testing.T) {
	if _, err := NewPairArena(0, 5); err == nil {
		t.Error("expected error for zero pairs")
	}
}
