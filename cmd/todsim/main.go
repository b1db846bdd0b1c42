// Command todsim runs a full simulation pass: it scans a synthetic sky with
// a synthetic focal plane, folds the resulting timestreams into per-pixel
// normal equations, solves them, and optionally archives the solved maps.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/skysim/tod/internal/config"
	"github.com/skysim/tod/internal/mapstore"
	"github.com/skysim/tod/internal/monitoring"
	"github.com/skysim/tod/internal/pointing"
	"github.com/skysim/tod/internal/skymap"
	"github.com/skysim/tod/internal/synth"
	"github.com/skysim/tod/internal/tod"
	"github.com/skysim/tod/internal/version"
)

func main() {
	configPath := flag.String("config", "", "YAML run configuration (optional)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	projection := flag.String("projection", "", "Override output projection: healpix or flat")
	scans := flag.Int("scans", 0, "Override number of scans")
	seed := flag.Int64("seed", 0, "Override input sky seed")
	dbPath := flag.String("db", "", "Override archive database path")
	notes := flag.String("notes", "", "Free-form notes stored with the archived run")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *projection != "" {
		cfg.Projection = projection
	}
	if *scans > 0 {
		cfg.Scans = scans
	}
	if *seed != 0 {
		cfg.SkySeed = seed
	}
	if *dbPath != "" {
		cfg.OutputDB = dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *notes); err != nil {
		fmt.Fprintf(os.Stderr, "todsim: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.RunConfig, notes string) error {
	var model *pointing.Model
	if len(cfg.PointingTerms) > 0 {
		var err error
		model, err = pointing.NewModel(cfg.PointingTerms, cfg.PointingValues)
		if err != nil {
			return err
		}
	}

	var table pointing.DUT1Source
	if path := cfg.GetUT1UTCFile(); path != "" {
		var err error
		table, err = pointing.LoadUT1UTC(path)
		if err != nil {
			return err
		}
	}

	inst := &synth.Instrument{
		Pairs:     cfg.GetPairs(),
		SpreadDeg: cfg.GetSpreadDeg(),
		HWPFreqHz: cfg.GetHWPFreqHz(),
		Model:     model,
	}
	strat := &synth.Strategy{
		Scans:      cfg.GetScans(),
		Samples:    cfg.GetSamples(),
		SampleRate: cfg.GetSampleRate(),
		LatDeg:     cfg.GetLatDeg(),
		LonDeg:     cfg.GetLonDeg(),
		RaMidDeg:   cfg.GetRaMidDeg(),
		DecMidDeg:  cfg.GetDecMidDeg(),
		StartMJD:   cfg.GetStartMJD(),
		Table:      table,
	}
	sky := synth.NewSky(cfg.GetNsideIn(), cfg.GetSkySeed(), cfg.GetHasPol())

	simCfg := tod.Config{
		Projection:      skymap.Projection(cfg.GetProjection()),
		NsideOut:        cfg.GetNsideOut(),
		PixelSizeArcmin: cfg.GetPixelSize(),
		WidthDeg:        cfg.GetWidthDeg(),
		Demodulate:      cfg.GetDemodulate(),
	}

	var total *skymap.Accumulator
	for scan := 0; scan < strat.Scans; scan++ {
		simCfg.ScanIndex = scan
		sim, err := tod.NewSimulation(inst, strat, sky, simCfg)
		if err != nil {
			return err
		}

		waferts := make([][]float64, 2*sim.NPairs())
		for ch := range waferts {
			if waferts[ch], err = sim.Map2TOD(ch); err != nil {
				return fmt.Errorf("scan %d channel %d: %w", scan, ch, err)
			}
		}

		acc, err := sim.NewAccumulator()
		if err != nil {
			return err
		}
		if err := sim.TOD2Map(waferts, acc); err != nil {
			return fmt.Errorf("scan %d: %w", scan, err)
		}

		var hits int64
		for _, h := range acc.Nhit {
			hits += h
		}
		monitoring.Logf("scan %d: %d detectors x %d samples, %d hits", scan, 2*sim.NPairs(), sim.NSamples(), hits)

		if total == nil {
			total = acc
		} else if err := total.Coadd(acc); err != nil {
			return fmt.Errorf("coadd scan %d: %w", scan, err)
		}
	}

	mapI, mapQ, mapU := total.SolveIQU()
	seen, polarized := 0, 0
	minI, maxI := math.Inf(1), math.Inf(-1)
	for k := 0; k < total.NpixSky; k++ {
		if total.W[k] <= 0 {
			continue
		}
		seen++
		minI = math.Min(minI, mapI[k])
		maxI = math.Max(maxI, mapI[k])
		if mapQ[k] != 0 || mapU[k] != 0 {
			polarized++
		}
	}
	monitoring.Logf("solved %d/%d pixels (%d with polarization), I in [%.3f, %.3f]",
		seen, total.NpixSky, polarized, minI, maxI)

	if path := cfg.GetOutputDB(); path != "" {
		ms, err := mapstore.Open(path)
		if err != nil {
			return err
		}
		defer ms.Close()
		runID, err := ms.SaveRun(&mapstore.MapRun{
			Demodulated: cfg.GetDemodulate(),
			Notes:       notes,
		}, total)
		if err != nil {
			return err
		}
		monitoring.Logf("archived run %s to %s", runID, path)
	}
	return nil
}
