package pointing

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DUT1Source supplies the UT1−UTC correction, in seconds, for a given UTC
// modified Julian date. The table itself is maintained externally (IERS
// bulletins); this layer only consumes it.
type DUT1Source interface {
	DUT1(mjd float64) float64
}

// ZeroDUT1 is a DUT1Source that always reports no correction.
type ZeroDUT1 struct{}

func (ZeroDUT1) DUT1(mjd float64) float64 { return 0 }

// UT1UTCTable is a step-function lookup over dated UT1−UTC entries.
type UT1UTCTable struct {
	mjd  []float64 // ascending
	dut1 []float64 // seconds
}

// NewUT1UTCTable builds a table from parallel MJD and correction vectors.
// Entries must be sorted by MJD.
func NewUT1UTCTable(mjd, dut1 []float64) (*UT1UTCTable, error) {
	if len(mjd) != len(dut1) {
		return nil, fmt.Errorf("pointing: %d table dates but %d corrections", len(mjd), len(dut1))
	}
	for i := 1; i < len(mjd); i++ {
		if mjd[i] < mjd[i-1] {
			return nil, fmt.Errorf("pointing: UT1-UTC table not sorted at entry %d", i)
		}
	}
	return &UT1UTCTable{mjd: mjd, dut1: dut1}, nil
}

// LoadUT1UTC reads a whitespace-separated "mjd dut1" table file, skipping
// blank lines and lines starting with '#'.
func LoadUT1UTC(path string) (*UT1UTCTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pointing: open UT1-UTC table: %w", err)
	}
	defer f.Close()

	var mjd, dut1 []float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("pointing: UT1-UTC table %s:%d: want \"mjd dut1\"", path, line)
		}
		m, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("pointing: UT1-UTC table %s:%d: %w", path, line, err)
		}
		d, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("pointing: UT1-UTC table %s:%d: %w", path, line, err)
		}
		mjd = append(mjd, m)
		dut1 = append(dut1, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewUT1UTCTable(mjd, dut1)
}

// DUT1 returns the correction of the most recent table entry at or before
// mjd, zero when mjd predates the table or the table is empty.
func (t *UT1UTCTable) DUT1(mjd float64) float64 {
	i := sort.SearchFloat64s(t.mjd, mjd)
	if i < len(t.mjd) && t.mjd[i] == mjd {
		return t.dut1[i]
	}
	if i == 0 {
		return 0
	}
	return t.dut1[i-1]
}
