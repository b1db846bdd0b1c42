package mapstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skysim/tod/internal/skymap"
	"github.com/skysim/tod/internal/timeutil"
)

func openTestStore(t *testing.T) *MapStore {
	t.Helper()
	ms, err := Open(filepath.Join(t.TempDir(), "maps.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ms.Close() })
	return ms
}

func fillAccumulator(t *testing.T, acc *skymap.Accumulator) {
	t.Helper()
	for k := 0; k < acc.NpixSky; k++ {
		acc.D[k] = float64(k) + 0.5
		acc.W[k] = 2
		acc.Dc[k] = 0.25
		acc.Ds[k] = -0.125
		acc.Cc[k] = 1.5
		acc.Cs[k] = 0.1
		acc.Ss[k] = 1.25
		acc.Nhit[k] = int64(k + 1)
	}
}

func TestSaveAndLoadHealpixRun(t *testing.T) {
	ms := openTestStore(t)

	obspix := []int64{420, 421, 483, 484}
	acc, err := skymap.NewHealpixAccumulator(16, obspix)
	if err != nil {
		t.Fatalf("NewHealpixAccumulator: %v", err)
	}
	fillAccumulator(t, acc)

	runID, err := ms.SaveRun(&MapRun{ScanIndex: 3, Notes: "first light"}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if runID == "" {
		t.Fatal("SaveRun returned empty run ID")
	}

	run, err := ms.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Projection != skymap.ProjHealpix || run.Nside != 16 || run.NpixSky != len(obspix) {
		t.Errorf("run metadata = %+v", run)
	}
	if run.ScanIndex != 3 || run.Notes != "first light" {
		t.Errorf("run metadata = %+v", run)
	}

	loaded, err := ms.LoadAccumulator(runID)
	if err != nil {
		t.Fatalf("LoadAccumulator: %v", err)
	}
	if diff := cmp.Diff(acc.ObsPix, loaded.ObsPix); diff != "" {
		t.Errorf("obspix mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(acc.D, loaded.D); diff != "" {
		t.Errorf("d mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(acc.Ss, loaded.Ss); diff != "" {
		t.Errorf("ss mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(acc.Nhit, loaded.Nhit); diff != "" {
		t.Errorf("nhit mismatch (-want +got):\n%s", diff)
	}

	// The archived products match a fresh solve of the accumulator.
	wantI := acc.SolveI()
	gotI, err := ms.LoadProduct(runID, "I")
	if err != nil {
		t.Fatalf("LoadProduct: %v", err)
	}
	if diff := cmp.Diff(wantI, gotI); diff != "" {
		t.Errorf("I product mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadFlatRun(t *testing.T) {
	ms := openTestStore(t)

	acc, err := skymap.NewFlatAccumulator(9, 0.002)
	if err != nil {
		t.Fatalf("NewFlatAccumulator: %v", err)
	}
	fillAccumulator(t, acc)

	runID, err := ms.SaveRun(&MapRun{}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	loaded, err := ms.LoadAccumulator(runID)
	if err != nil {
		t.Fatalf("LoadAccumulator: %v", err)
	}
	if loaded.Projection != skymap.ProjFlat || loaded.NpixSky != 9 || loaded.PixelSize != 0.002 {
		t.Errorf("loaded geometry = %q %d %v", loaded.Projection, loaded.NpixSky, loaded.PixelSize)
	}
	if diff := cmp.Diff(acc.W, loaded.W); diff != "" {
		t.Errorf("w mismatch (-want +got):\n%s", diff)
	}

	// A reloaded run can still receive further coadds.
	if err := loaded.Coadd(acc); err != nil {
		t.Fatalf("Coadd after load: %v", err)
	}
	if loaded.Nhit[0] != 2*acc.Nhit[0] {
		t.Errorf("coadded nhit[0] = %d, want %d", loaded.Nhit[0], 2*acc.Nhit[0])
	}
}

func TestListRuns(t *testing.T) {
	ms := openTestStore(t)

	acc, _ := skymap.NewFlatAccumulator(4, 0.001)
	fillAccumulator(t, acc)

	first, err := ms.SaveRun(&MapRun{CreatedAtNs: 100}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	second, err := ms.SaveRun(&MapRun{CreatedAtNs: 200}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := ms.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].RunID != second || runs[1].RunID != first {
		t.Errorf("runs not ordered newest first: %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestSaveRunTimestampsFromClock(t *testing.T) {
	ms := openTestStore(t)
	frozen := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	ms.clock = timeutil.NewMockClock(frozen)

	acc, _ := skymap.NewFlatAccumulator(4, 0.001)
	runID, err := ms.SaveRun(&MapRun{}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	run, err := ms.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.CreatedAtNs != frozen.UnixNano() {
		t.Errorf("CreatedAtNs = %d, want %d", run.CreatedAtNs, frozen.UnixNano())
	}
}

func TestGetRunMissing(t *testing.T) {
	ms := openTestStore(t)
	if _, err := ms.GetRun("no-such-run"); err == nil {
		t.Fatal("expected error for missing run")
	}
	if _, err := ms.LoadAccumulator("no-such-run"); err == nil {
		t.Fatal("expected error for missing run")
	}
	acc, _ := skymap.NewFlatAccumulator(4, 0.001)
	runID, err := ms.SaveRun(&MapRun{}, acc)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := ms.LoadProduct(runID, "texture"); err == nil {
		t.Fatal("expected error for unknown product name")
	}
}
