package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
pairs: 12
projection: flat
dec_mid_deg: -30
pixel_size_arcmin: 6.5
pointing_terms: [ia, ie]
pointing_values: [10.28, 8.73]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetPairs() != 12 {
		t.Errorf("GetPairs = %d, want 12", cfg.GetPairs())
	}
	if cfg.GetProjection() != "flat" {
		t.Errorf("GetProjection = %q, want flat", cfg.GetProjection())
	}
	if cfg.GetDecMidDeg() != -30 {
		t.Errorf("GetDecMidDeg = %v, want -30", cfg.GetDecMidDeg())
	}
	if cfg.GetPixelSize() != 6.5 {
		t.Errorf("GetPixelSize = %v, want 6.5", cfg.GetPixelSize())
	}
	if len(cfg.PointingTerms) != 2 || cfg.PointingValues[1] != 8.73 {
		t.Errorf("pointing model = %v %v", cfg.PointingTerms, cfg.PointingValues)
	}

	// Omitted fields fall back to defaults.
	if cfg.GetScans() != DefaultScans {
		t.Errorf("GetScans = %d, want default %d", cfg.GetScans(), DefaultScans)
	}
	if cfg.GetNsideIn() != DefaultNsideIn {
		t.Errorf("GetNsideIn = %d, want default %d", cfg.GetNsideIn(), DefaultNsideIn)
	}
	if !cfg.GetHasPol() {
		t.Error("GetHasPol = false by default")
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "run.json", "pairs: 4\n"},
		{"bad yaml", "run.yaml", "pairs: [unclosed\n"},
		{"negative pairs", "run.yaml", "pairs: -1\n"},
		{"zero samples", "run.yaml", "samples: 0\n"},
		{"unknown projection", "run.yaml", "projection: mollweide\n"},
		{"mismatched model", "run.yaml", "pointing_terms: [ia]\npointing_values: [1, 2]\n"},
		{"latitude out of range", "run.yaml", "lat_deg: 91\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.file, tc.body)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted %s", tc.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
