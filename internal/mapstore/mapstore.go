// Package mapstore archives solved sky-map runs in a SQLite database.
//
// Each run stores its geometry (projection, resolution, observed-pixel set)
// alongside the raw accumulator arrays and the solved I/Q/U products, so a
// stored run can be reloaded, coadded with later runs, and re-solved.
package mapstore

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	_ "embed"
	"encoding/gob"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skysim/tod/internal/monitoring"
	"github.com/skysim/tod/internal/skymap"
	"github.com/skysim/tod/internal/timeutil"
)

//go:embed schema.sql
var schemaSQL string

// MapStore wraps the run archive database.
type MapStore struct {
	*sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the archive at path and applies the schema.
func Open(path string) (*MapStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply map archive schema: %w", err)
	}
	monitoring.Logf("initialized map archive at %s", path)
	return &MapStore{DB: db, clock: timeutil.RealClock{}}, nil
}

// MapRun describes one archived map-making run.
type MapRun struct {
	RunID       string
	CreatedAtNs int64
	Projection  skymap.Projection
	Nside       int
	PixelSize   float64
	NpixSky     int
	ScanIndex   int
	Demodulated bool
	Notes       string
}

// accumulator arrays archived per run, plus the solved products.
var storedArrays = []string{"d", "w", "dc", "ds", "cc", "cs", "ss", "I", "Q", "U", "polweight"}

func encodeBlob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gw).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlob(blob []byte, v interface{}) error {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("gunzip: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}

// SaveRun archives one solved run. If run.RunID is empty a new UUID is
// generated; the solved I/Q/U maps and the polarization weight are computed
// from the accumulator and stored with it. Returns the run ID.
func (ms *MapStore) SaveRun(run *MapRun, acc *skymap.Accumulator) (string, error) {
	if acc == nil {
		return "", fmt.Errorf("mapstore: nil accumulator")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = ms.clock.Now().UnixNano()
	}
	run.Projection = acc.Projection
	run.Nside = acc.Nside
	run.PixelSize = acc.PixelSize
	run.NpixSky = acc.NpixSky

	tx, err := ms.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO map_runs (
			run_id, created_at_ns, projection, nside, pixel_size,
			npix_sky, scan_index, demodulated, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.CreatedAtNs, string(run.Projection), run.Nside,
		run.PixelSize, run.NpixSky, run.ScanIndex, run.Demodulated, run.Notes)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	mapI, mapQ, mapU := acc.SolveIQU()
	polw, err := acc.PolWeight(0)
	if err != nil {
		return "", err
	}
	arrays := map[string]interface{}{
		"d": acc.D, "w": acc.W,
		"dc": acc.Dc, "ds": acc.Ds,
		"cc": acc.Cc, "cs": acc.Cs, "ss": acc.Ss,
		"I": mapI, "Q": mapQ, "U": mapU,
		"polweight": polw,
	}
	for _, name := range storedArrays {
		if err := insertArray(tx, run.RunID, name, arrays[name]); err != nil {
			return "", err
		}
	}
	if err := insertArray(tx, run.RunID, "nhit", acc.Nhit); err != nil {
		return "", err
	}
	if acc.Projection == skymap.ProjHealpix {
		if err := insertArray(tx, run.RunID, "obspix", acc.ObsPix); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	monitoring.Logf("archived run %s (%s, %d pixels)", run.RunID, run.Projection, run.NpixSky)
	return run.RunID, nil
}

func insertArray(tx *sql.Tx, runID, name string, v interface{}) error {
	blob, err := encodeBlob(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO map_arrays (run_id, name, array_blob) VALUES (?, ?, ?)`,
		runID, name, blob,
	); err != nil {
		return fmt.Errorf("insert array %s: %w", name, err)
	}
	return nil
}

// GetRun retrieves a run's metadata by ID.
func (ms *MapStore) GetRun(runID string) (*MapRun, error) {
	var run MapRun
	var proj string
	var notes sql.NullString
	err := ms.QueryRow(`
		SELECT run_id, created_at_ns, projection, nside, pixel_size,
		       npix_sky, scan_index, demodulated, notes
		FROM map_runs WHERE run_id = ?
	`, runID).Scan(
		&run.RunID, &run.CreatedAtNs, &proj, &run.Nside, &run.PixelSize,
		&run.NpixSky, &run.ScanIndex, &run.Demodulated, &notes,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Projection = skymap.Projection(proj)
	if notes.Valid {
		run.Notes = notes.String
	}
	return &run, nil
}

// ListRuns retrieves all archived runs, newest first.
func (ms *MapStore) ListRuns() ([]*MapRun, error) {
	rows, err := ms.Query(`
		SELECT run_id, created_at_ns, projection, nside, pixel_size,
		       npix_sky, scan_index, demodulated, notes
		FROM map_runs ORDER BY created_at_ns DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*MapRun
	for rows.Next() {
		var run MapRun
		var proj string
		var notes sql.NullString
		if err := rows.Scan(
			&run.RunID, &run.CreatedAtNs, &proj, &run.Nside, &run.PixelSize,
			&run.NpixSky, &run.ScanIndex, &run.Demodulated, &notes,
		); err != nil {
			return nil, err
		}
		run.Projection = skymap.Projection(proj)
		if notes.Valid {
			run.Notes = notes.String
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (ms *MapStore) loadFloat64(runID, name string, dst *[]float64) error {
	var blob []byte
	err := ms.QueryRow(
		`SELECT array_blob FROM map_arrays WHERE run_id = ? AND name = ?`,
		runID, name,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s has no array %q", runID, name)
	}
	if err != nil {
		return err
	}
	return decodeBlob(blob, dst)
}

// LoadAccumulator rebuilds a run's accumulator from the archive. The solved
// products are not loaded; re-solve after loading (or after coadding with
// other runs).
func (ms *MapStore) LoadAccumulator(runID string) (*skymap.Accumulator, error) {
	run, err := ms.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var acc *skymap.Accumulator
	switch run.Projection {
	case skymap.ProjHealpix:
		var obspix []int64
		var blob []byte
		if err := ms.QueryRow(
			`SELECT array_blob FROM map_arrays WHERE run_id = ? AND name = 'obspix'`,
			runID,
		).Scan(&blob); err != nil {
			return nil, fmt.Errorf("run %s has no observed-pixel set: %w", runID, err)
		}
		if err := decodeBlob(blob, &obspix); err != nil {
			return nil, err
		}
		acc, err = skymap.NewHealpixAccumulator(run.Nside, obspix)
	case skymap.ProjFlat:
		acc, err = skymap.NewFlatAccumulator(run.NpixSky, run.PixelSize)
	default:
		return nil, fmt.Errorf("run %s has unknown projection %q", runID, run.Projection)
	}
	if err != nil {
		return nil, err
	}

	for name, dst := range map[string]*[]float64{
		"d": &acc.D, "w": &acc.W,
		"dc": &acc.Dc, "ds": &acc.Ds,
		"cc": &acc.Cc, "cs": &acc.Cs, "ss": &acc.Ss,
	} {
		if err := ms.loadFloat64(runID, name, dst); err != nil {
			return nil, err
		}
	}
	var blob []byte
	if err := ms.QueryRow(
		`SELECT array_blob FROM map_arrays WHERE run_id = ? AND name = 'nhit'`,
		runID,
	).Scan(&blob); err != nil {
		return nil, fmt.Errorf("run %s has no hit map: %w", runID, err)
	}
	if err := decodeBlob(blob, &acc.Nhit); err != nil {
		return nil, err
	}
	return acc, nil
}

// LoadProduct retrieves one solved product array ("I", "Q", "U" or
// "polweight") of a run.
func (ms *MapStore) LoadProduct(runID, name string) ([]float64, error) {
	switch name {
	case "I", "Q", "U", "polweight":
	default:
		return nil, fmt.Errorf("unknown product %q", name)
	}
	var out []float64
	if err := ms.loadFloat64(runID, name, &out); err != nil {
		return nil, err
	}
	return out, nil
}
