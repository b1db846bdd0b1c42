package tod

import (
	"fmt"

	"github.com/skysim/tod/internal/pointing"
)

// Instrument is the hardware collaborator: focal-plane geometry, intrinsic
// polarization angles, the polarization-modulation device, and the mechanical
// pointing model. Detectors are indexed by channel; channels 2p and 2p+1 form
// pair p at a shared focal-plane location.
type Instrument interface {
	// NPairs returns the number of detector pairs in the focal plane.
	NPairs() int
	// FocalPlanePos returns the focal-plane offsets of a channel in
	// radians: x across the plane, y along it.
	FocalPlanePos(ch int) (x, y float64)
	// PolAngleDeg returns the intrinsic polarization angle of a channel
	// in degrees. The odd channel of a pair is nominally orthogonal to
	// its even partner.
	PolAngleDeg(ch int) float64
	// HWPAngles generates the modulation-device angle for every sample of
	// a scan, in radians.
	HWPAngles(sampleRate float64, n int) []float64
	// PointingModel returns the mechanical correction terms.
	PointingModel() *pointing.Model
}

// Scan carries one constant-elevation scan produced by the scanning
// strategy: per-sample encoder angles and timestamps plus the site and patch
// geometry. Scans are immutable once generated.
type Scan struct {
	Azimuth   []float64 // encoder azimuth, radians
	Elevation []float64 // encoder elevation, radians
	TimeMJD   []float64 // UTC timestamps, modified Julian date

	SampleRate float64 // Hz

	LatDeg, LonDeg      float64 // telescope site, degrees
	RaMidDeg, DecMidDeg float64 // patch center, degrees
}

// NSamples returns the scan length.
func (s *Scan) NSamples() int { return len(s.Azimuth) }

// Validate checks the per-sample arrays share one length.
func (s *Scan) Validate() error {
	n := len(s.Azimuth)
	if len(s.Elevation) != n || len(s.TimeMJD) != n {
		return fmt.Errorf("tod: scan arrays disagree: az=%d el=%d time=%d",
			n, len(s.Elevation), len(s.TimeMJD))
	}
	if n == 0 {
		return fmt.Errorf("tod: empty scan")
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("tod: sample rate must be positive, got %v", s.SampleRate)
	}
	return nil
}

// ScanningStrategy is the scan-generator collaborator.
type ScanningStrategy interface {
	NScans() int
	Scan(i int) *Scan
	// DUT1 supplies the UT1−UTC correction table for the campaign.
	DUT1() pointing.DUT1Source
}

// SkyModel is the input-sky collaborator: full-sky Stokes arrays indexed by
// the tessellation at Nside. For the flat projection the model is expected
// to have been rotated so the patch center sits at the origin.
type SkyModel interface {
	Nside() int
	I() []float64
	Q() []float64
	U() []float64
	// HasPol reports whether the Q/U arrays are populated.
	HasPol() bool
	// GalacticFrame requests an equatorial-to-galactic rotation before
	// pixel indexing.
	GalacticFrame() bool
}
