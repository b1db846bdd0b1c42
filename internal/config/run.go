// Package config loads simulation run configuration from YAML files.
//
// All fields are pointers so a partial file only overrides what it names;
// the Get* methods supply defaults for everything else.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RunConfig is the root configuration of a simulation run: the focal plane,
// the scanning strategy, the input sky, and the output map geometry.
type RunConfig struct {
	// Focal plane
	Pairs     *int     `yaml:"pairs,omitempty"`
	SpreadDeg *float64 `yaml:"spread_deg,omitempty"`
	HWPFreqHz *float64 `yaml:"hwp_freq_hz,omitempty"`

	// Pointing model (parallel term name/value lists)
	PointingTerms  []string  `yaml:"pointing_terms,omitempty"`
	PointingValues []float64 `yaml:"pointing_values,omitempty"`

	// Scanning strategy
	Scans        *int     `yaml:"scans,omitempty"`
	Samples      *int     `yaml:"samples,omitempty"`
	SampleRateHz *float64 `yaml:"sample_rate_hz,omitempty"`
	LatDeg       *float64 `yaml:"lat_deg,omitempty"`
	LonDeg       *float64 `yaml:"lon_deg,omitempty"`
	RaMidDeg     *float64 `yaml:"ra_mid_deg,omitempty"`
	DecMidDeg    *float64 `yaml:"dec_mid_deg,omitempty"`
	StartMJD     *float64 `yaml:"start_mjd,omitempty"`
	UT1UTCFile   *string  `yaml:"ut1utc_file,omitempty"`

	// Input sky
	NsideIn *int   `yaml:"nside_in,omitempty"`
	SkySeed *int64 `yaml:"sky_seed,omitempty"`
	NoPol   *bool  `yaml:"no_pol,omitempty"`

	// Output map
	Projection      *string  `yaml:"projection,omitempty"`
	NsideOut        *int     `yaml:"nside_out,omitempty"`
	PixelSizeArcmin *float64 `yaml:"pixel_size_arcmin,omitempty"`
	WidthDeg        *float64 `yaml:"width_deg,omitempty"`
	Demodulate      *bool    `yaml:"demodulate,omitempty"`

	// Archive
	OutputDB *string `yaml:"output_db,omitempty"`
}

// Empty returns a RunConfig with every field unset.
func Empty() *RunConfig {
	return &RunConfig{}
}

// Load reads a RunConfig from a YAML file. Fields omitted from the file stay
// nil, so partial configs are safe.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that could never produce a run.
func (c *RunConfig) Validate() error {
	if c.Pairs != nil && *c.Pairs <= 0 {
		return fmt.Errorf("pairs must be positive, got %d", *c.Pairs)
	}
	if c.Scans != nil && *c.Scans <= 0 {
		return fmt.Errorf("scans must be positive, got %d", *c.Scans)
	}
	if c.Samples != nil && *c.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", *c.Samples)
	}
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %v", *c.SampleRateHz)
	}
	if len(c.PointingTerms) != len(c.PointingValues) {
		return fmt.Errorf("pointing_terms and pointing_values differ in length: %d vs %d",
			len(c.PointingTerms), len(c.PointingValues))
	}
	if c.LatDeg != nil && (*c.LatDeg < -90 || *c.LatDeg > 90) {
		return fmt.Errorf("lat_deg out of range: %v", *c.LatDeg)
	}
	if c.Projection != nil {
		switch *c.Projection {
		case "healpix", "flat":
		default:
			return fmt.Errorf("projection must be \"healpix\" or \"flat\", got %q", *c.Projection)
		}
	}
	if c.WidthDeg != nil && *c.WidthDeg <= 0 {
		return fmt.Errorf("width_deg must be positive, got %v", *c.WidthDeg)
	}
	return nil
}

// Defaults used by the Get* accessors.
const (
	DefaultPairs      = 8
	DefaultScans      = 1
	DefaultSamples    = 4096
	DefaultSampleRate = 20.0
	DefaultNsideIn    = 16
	DefaultProjection = "healpix"
)

func (c *RunConfig) GetPairs() int {
	if c.Pairs != nil {
		return *c.Pairs
	}
	return DefaultPairs
}

func (c *RunConfig) GetScans() int {
	if c.Scans != nil {
		return *c.Scans
	}
	return DefaultScans
}

func (c *RunConfig) GetSamples() int {
	if c.Samples != nil {
		return *c.Samples
	}
	return DefaultSamples
}

func (c *RunConfig) GetSampleRate() float64 {
	if c.SampleRateHz != nil {
		return *c.SampleRateHz
	}
	return DefaultSampleRate
}

func (c *RunConfig) GetNsideIn() int {
	if c.NsideIn != nil {
		return *c.NsideIn
	}
	return DefaultNsideIn
}

func (c *RunConfig) GetProjection() string {
	if c.Projection != nil {
		return *c.Projection
	}
	return DefaultProjection
}

func float64Or(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func (c *RunConfig) GetSpreadDeg() float64 { return float64Or(c.SpreadDeg, 0) }
func (c *RunConfig) GetHWPFreqHz() float64 { return float64Or(c.HWPFreqHz, 0) }
func (c *RunConfig) GetLatDeg() float64    { return float64Or(c.LatDeg, -22.958) }
func (c *RunConfig) GetLonDeg() float64    { return float64Or(c.LonDeg, -67.786) }
func (c *RunConfig) GetRaMidDeg() float64  { return float64Or(c.RaMidDeg, 0) }
func (c *RunConfig) GetDecMidDeg() float64 { return float64Or(c.DecMidDeg, -57.5) }
func (c *RunConfig) GetStartMJD() float64  { return float64Or(c.StartMJD, 0) }
func (c *RunConfig) GetWidthDeg() float64  { return float64Or(c.WidthDeg, 0) }
func (c *RunConfig) GetPixelSize() float64 { return float64Or(c.PixelSizeArcmin, 0) }

func (c *RunConfig) GetNsideOut() int {
	if c.NsideOut != nil {
		return *c.NsideOut
	}
	return 0
}

func (c *RunConfig) GetSkySeed() int64 {
	if c.SkySeed != nil {
		return *c.SkySeed
	}
	return 1
}

func (c *RunConfig) GetHasPol() bool {
	return c.NoPol == nil || !*c.NoPol
}

func (c *RunConfig) GetDemodulate() bool {
	return c.Demodulate != nil && *c.Demodulate
}

func (c *RunConfig) GetUT1UTCFile() string {
	if c.UT1UTCFile != nil {
		return *c.UT1UTCFile
	}
	return ""
}

func (c *RunConfig) GetOutputDB() string {
	if c.OutputDB != nil {
		return *c.OutputDB
	}
	return ""
}
