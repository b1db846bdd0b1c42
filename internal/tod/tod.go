// Package tod simulates time-ordered data for pairs of co-located
// polarization-sensitive detectors scanning a sky map, and bins the
// timestreams back into per-pixel normal equations.
//
// The forward operator (Map2TOD) reads the input sky at the pixels crossed
// by a detector and composes its total polarization angle; the inverse
// operator (TOD2Map) folds noise-weighted timestreams of the whole focal
// plane into a skymap.Accumulator through the accumulation Kernel.
package tod

import (
	"fmt"
	"math"

	"github.com/skysim/tod/internal/healpix"
	"github.com/skysim/tod/internal/pointing"
	"github.com/skysim/tod/internal/skymap"
	"github.com/skysim/tod/internal/units"
)

// Config selects the projection and output geometry of one simulation run.
type Config struct {
	// Projection picks the output map projection, ProjHealpix or ProjFlat.
	Projection skymap.Projection
	// ScanIndex selects the scan within the scanning strategy.
	ScanIndex int
	// NsideOut is the output resolution for the healpix projection; zero
	// means the input sky's resolution.
	NsideOut int
	// PixelSizeArcmin is the output pixel size for the flat projection;
	// zero means the input sky's mean pixel spacing.
	PixelSizeArcmin float64
	// WidthDeg is the total output patch width; zero means 20 degrees.
	WidthDeg float64
	// Demodulate flips the sign convention of the composed polarization
	// angle.
	Demodulate bool
	// DisableOutlierCut turns out-of-patch samples from masked sentinels
	// into fatal errors.
	DisableOutlierCut bool
	// Kernel overrides the accumulation routine; nil selects the
	// portable ReferenceKernel.
	Kernel Kernel
}

// Simulation owns the per-scan projection state of one focal plane: the
// boresight pointing, the observed-pixel set, the pair arena, masks and
// noise weights. It is not safe for concurrent use.
type Simulation struct {
	inst Instrument
	sky  SkyModel
	scan *Scan

	proj      skymap.Projection
	nsideOut  int
	pixelSize float64 // radians, flat projection
	bounds    skymap.PatchBounds

	obspix  []int64
	npixsky int
	nrow    int // flat grid side

	point *pointing.Pointing
	hwp   []float64

	arena *PairArena
	mask  []uint8 // (npairs × nsamples), 1 = usable

	sumWeight  []float64
	diffWeight []float64

	npairs   int
	nsamples int

	demodulate  bool
	cutOutliers bool
	kernel      Kernel
}

// NewSimulation wires the three collaborators for one scan. Configuration
// errors (unknown projection, scan index out of range, degenerate scan) are
// reported immediately.
func NewSimulation(inst Instrument, strat ScanningStrategy, sky SkyModel, cfg Config) (*Simulation, error) {
	if cfg.Projection != skymap.ProjHealpix && cfg.Projection != skymap.ProjFlat {
		return nil, fmt.Errorf("tod: projection %q not understood, choose %q or %q",
			cfg.Projection, skymap.ProjHealpix, skymap.ProjFlat)
	}
	if cfg.ScanIndex < 0 || cfg.ScanIndex >= strat.NScans() {
		return nil, fmt.Errorf("tod: scan index %d out of range [0,%d)", cfg.ScanIndex, strat.NScans())
	}
	scan := strat.Scan(cfg.ScanIndex)
	if err := scan.Validate(); err != nil {
		return nil, err
	}
	npairs := inst.NPairs()
	if npairs <= 0 {
		return nil, fmt.Errorf("tod: instrument has no detector pairs")
	}

	s := &Simulation{
		inst:        inst,
		sky:         sky,
		scan:        scan,
		proj:        cfg.Projection,
		npairs:      npairs,
		nsamples:    scan.NSamples(),
		demodulate:  cfg.Demodulate,
		cutOutliers: !cfg.DisableOutlierCut,
		kernel:      cfg.Kernel,
	}
	if s.kernel == nil {
		s.kernel = ReferenceKernel{}
	}

	s.nsideOut = cfg.NsideOut
	if s.nsideOut == 0 {
		s.nsideOut = sky.Nside()
	}
	s.pixelSize = cfg.PixelSizeArcmin * units.ArcminToRad
	if s.pixelSize == 0 {
		s.pixelSize = healpix.Resol(sky.Nside())
	}

	width := cfg.WidthDeg
	if width == 0 {
		width = 20
	}
	var err error
	s.bounds, err = skymap.NewPatchBounds(scan.RaMidDeg, scan.DecMidDeg, width)
	if err != nil {
		return nil, err
	}
	s.obspix, err = s.bounds.ObsPix(s.nsideOut)
	if err != nil {
		return nil, err
	}

	switch s.proj {
	case skymap.ProjHealpix:
		s.npixsky = len(s.obspix)
		if s.npixsky == 0 {
			return nil, fmt.Errorf("tod: empty observed-pixel set for %v° patch at (%v, %v)",
				width, scan.RaMidDeg, scan.DecMidDeg)
		}
	case skymap.ProjFlat:
		s.nrow, err = s.bounds.FlatGridSize(s.pixelSize)
		if err != nil {
			return nil, err
		}
		s.npixsky = s.nrow * s.nrow
	}

	// The spherical projection keeps absolute equatorial coordinates; the
	// planar projection re-centers the patch at the origin, matching a
	// sky model rotated the same way.
	raSrc, decSrc := 0.0, 0.0
	if s.proj == skymap.ProjFlat {
		raSrc, decSrc = scan.RaMidDeg, scan.DecMidDeg
	}
	s.point, err = pointing.New(pointing.Config{
		AzEnc:     scan.Azimuth,
		ElEnc:     scan.Elevation,
		TimeMJD:   scan.TimeMJD,
		Model:     inst.PointingModel(),
		DUT1:      strat.DUT1(),
		LatDeg:    scan.LatDeg,
		LonDeg:    scan.LonDeg,
		RaSrcDeg:  raSrc,
		DecSrcDeg: decSrc,
	})
	if err != nil {
		return nil, err
	}

	s.hwp = inst.HWPAngles(scan.SampleRate, s.nsamples)
	if len(s.hwp) != s.nsamples {
		return nil, fmt.Errorf("tod: modulation device produced %d angles for %d samples",
			len(s.hwp), s.nsamples)
	}

	s.arena, err = NewPairArena(npairs, s.nsamples)
	if err != nil {
		return nil, err
	}
	s.mask = make([]uint8, npairs*s.nsamples)
	for i := range s.mask {
		s.mask[i] = 1
	}
	s.sumWeight = make([]float64, npairs)
	s.diffWeight = make([]float64, npairs)
	for p := 0; p < npairs; p++ {
		s.sumWeight[p] = 1
		s.diffWeight[p] = 1
	}
	return s, nil
}

// NPairs returns the focal-plane pair count.
func (s *Simulation) NPairs() int { return s.npairs }

// NSamples returns the scan length.
func (s *Simulation) NSamples() int { return s.nsamples }

// NpixSky returns the number of output map pixels.
func (s *Simulation) NpixSky() int { return s.npixsky }

// ObsPix returns the observed-pixel set of the spherical projection.
func (s *Simulation) ObsPix() []int64 { return s.obspix }

// Arena returns the shared pair arena.
func (s *Simulation) Arena() *PairArena { return s.arena }

// MaskRow returns the sample mask of one pair, aliasing the backing buffer
// so callers can exclude samples before accumulation.
func (s *Simulation) MaskRow(pair int) []uint8 {
	return s.mask[pair*s.nsamples : (pair+1)*s.nsamples]
}

// SetWeights replaces the per-pair noise weights of the sum and difference
// timestreams.
func (s *Simulation) SetWeights(sum, diff []float64) error {
	if len(sum) != s.npairs || len(diff) != s.npairs {
		return fmt.Errorf("tod: weights want length %d, got sum=%d diff=%d",
			s.npairs, len(sum), len(diff))
	}
	copy(s.sumWeight, sum)
	copy(s.diffWeight, diff)
	return nil
}

// NewAccumulator creates an empty sky-map accumulator matching this run's
// projection and pixel layout.
func (s *Simulation) NewAccumulator() (*skymap.Accumulator, error) {
	if s.proj == skymap.ProjHealpix {
		return skymap.NewHealpixAccumulator(s.nsideOut, s.obspix)
	}
	return skymap.NewFlatAccumulator(s.npixsky, s.pixelSize)
}

// polAngles composes the total polarization angle of a channel from the
// parallactic angle, the intrinsic focal-plane angle, and twice the
// modulation-device angle. Demodulation flips the detector-fixed terms.
func (s *Simulation) polAngles(ch int, pa []float64) []float64 {
	angPix := (90.0 - s.inst.PolAngleDeg(ch)) * units.DegToRad
	out := make([]float64, len(pa))
	for i := range pa {
		if s.demodulate {
			out[i] = pa[i] - angPix - 2*s.hwp[i]
		} else {
			out[i] = pa[i] + angPix + 2*s.hwp[i]
		}
	}
	return out
}

// Map2TOD synthesizes the timestream of one detector channel from the input
// sky, resolving its per-sample pixels on the way. The even channel of each
// pair also writes the pair's pointing and angle records into the arena.
// Samples off the observed patch carry sky values of the full-sky map but a
// sentinel local index; the accumulation step excludes them.
func (s *Simulation) Map2TOD(ch int) ([]float64, error) {
	if ch < 0 || ch >= 2*s.npairs {
		return nil, fmt.Errorf("tod: channel %d out of range [0,%d)", ch, 2*s.npairs)
	}

	x, y := s.inst.FocalPlanePos(ch)
	azOff := x / math.Cos(y)
	elOff := y
	ra, dec, pa := s.point.OffsetDetector(azOff, elOff)

	var (
		global []int64
		local  []int32
		err    error
	)
	switch s.proj {
	case skymap.ProjHealpix:
		ix := &skymap.SphericalIndexer{
			Nside:            s.nsideOut,
			ObsPix:           s.obspix,
			CutOutliers:      s.cutOutliers,
			GalacticRotation: s.sky.GalacticFrame(),
		}
		global, local, err = ix.Resolve(ra, dec)
		if err != nil {
			return nil, err
		}
		if s.nsideOut != s.sky.Nside() {
			// Sky reads address the input map at its own resolution.
			gix := &skymap.SphericalIndexer{
				Nside:            s.sky.Nside(),
				GalacticRotation: s.sky.GalacticFrame(),
			}
			global, _, err = gix.Resolve(ra, dec)
			if err != nil {
				return nil, err
			}
		}
	case skymap.ProjFlat:
		gix := &skymap.SphericalIndexer{Nside: s.sky.Nside()}
		global, _, err = gix.Resolve(ra, dec)
		if err != nil {
			return nil, err
		}
		half := s.pixelSize * float64(s.nrow) / 2
		fix := &skymap.FlatIndexer{
			XMin:       -half + s.pixelSize/2,
			YMin:       -half + s.pixelSize/2,
			PixelSize:  s.pixelSize,
			NpixPerRow: s.nrow,
		}
		local, err = fix.Resolve(ra, dec)
		if err != nil {
			return nil, err
		}
	}

	var polAng []float64
	if s.sky.HasPol() {
		polAng = s.polAngles(ch, pa)
	}

	// Even channels own the pair record; the odd partner shares the
	// geometry and never rewrites it.
	if ch%2 == 0 {
		if err := s.arena.SetRow(ch/2, local, polAng); err != nil {
			return nil, err
		}
	}

	skyI := s.sky.I()
	ts := make([]float64, s.nsamples)
	if polAng != nil {
		skyQ, skyU := s.sky.Q(), s.sky.U()
		for i := range ts {
			g := global[i]
			sin2, cos2 := math.Sincos(2 * polAng[i])
			ts[i] = skyI[g] + skyQ[g]*cos2 + skyU[g]*sin2
		}
	} else {
		for i := range ts {
			ts[i] = skyI[global[i]]
		}
	}
	return ts, nil
}

// TOD2Map folds the timestreams of the whole focal plane into the
// accumulator. waferts holds one row per detector channel, pairs
// interleaved, each of scan length. The per-pair pointing matrix,
// polarization angles, and noise weights must all share the (pairs ×
// samples) shape established at construction; mismatches are fatal contract
// errors.
func (s *Simulation) TOD2Map(waferts [][]float64, acc *skymap.Accumulator) error {
	if len(waferts) != 2*s.npairs {
		return fmt.Errorf("tod: %d timestreams for %d detectors", len(waferts), 2*s.npairs)
	}
	if acc.Projection != s.proj {
		return fmt.Errorf("tod: accumulator projection %q does not match run projection %q",
			acc.Projection, s.proj)
	}
	if acc.NpixSky != s.npixsky {
		return fmt.Errorf("tod: accumulator holds %d pixels, run projects %d", acc.NpixSky, s.npixsky)
	}

	ts := make([]float64, 2*s.npairs*s.nsamples)
	for d, row := range waferts {
		if len(row) != s.nsamples {
			return fmt.Errorf("tod: timestream %d has %d samples, scan has %d", d, len(row), s.nsamples)
		}
		copy(ts[d*s.nsamples:(d+1)*s.nsamples], row)
	}

	return s.kernel.Accumulate(&AccumBatch{
		NPairs:     s.npairs,
		NSamples:   s.nsamples,
		NpixSky:    s.npixsky,
		Pixels:     s.arena.Pixels,
		Angles:     s.arena.Angles,
		TS:         ts,
		Mask:       s.mask,
		SumWeight:  s.sumWeight,
		DiffWeight: s.diffWeight,
		D:          acc.D,
		W:          acc.W,
		Dc:         acc.Dc,
		Ds:         acc.Ds,
		Cc:         acc.Cc,
		Cs:         acc.Cs,
		Ss:         acc.Ss,
		Nhit:       acc.Nhit,
	})
}
