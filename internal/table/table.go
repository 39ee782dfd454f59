// Package table reads and writes the CSV tables exchanged between the
// collection, metrics and plotting steps.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind identifies one of the three sweeps.
type Kind string

const (
	TimeSeries Kind = "timeseries"
	Distance   Kind = "distance"
	SDPairs    Kind = "sdpairs"
)

// Kinds lists every sweep in collection order.
var Kinds = []Kind{TimeSeries, Distance, SDPairs}

// ParseKind accepts a sweep name as used on the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case TimeSeries, Distance, SDPairs:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sweep %q (must be timeseries, distance or sdpairs)", s)
	}
}

// AxisColumn is the name of the sweep variable column.
func (k Kind) AxisColumn() string {
	switch k {
	case TimeSeries:
		return "t"
	case Distance:
		return "distance_ratio"
	case SDPairs:
		return "sd_pairs"
	default:
		return ""
	}
}

// RawHeader is the header of the flat table for k.
func (k Kind) RawHeader() []string {
	if k == TimeSeries {
		return []string{"scenario", "algo", "t", "shots", "success"}
	}
	return []string{"scenario", "algo", k.AxisColumn(), "success"}
}

// FormatAxis renders an axis value: integers for t and sd_pairs, floats
// for distance_ratio.
func (k Kind) FormatAxis(v float64) string {
	if k == Distance {
		return FormatFloat(v)
	}
	return strconv.FormatInt(int64(v), 10)
}

// RawRow is one experiment point of a flat sweep table.
type RawRow struct {
	Scenario int
	Algo     string
	// Axis holds t, distance_ratio or sd_pairs depending on the table kind.
	Axis float64
	// Shots is only persisted for the time-series table.
	Shots   int
	Success *float64
}

// Table is a generic CSV table.
type Table struct {
	Header []string
	Rows   [][]string
}

// Write writes t as CSV.
func Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(t.Header))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces the file at path with t. The table is written to a
// temporary file first so readers never observe a half-written table.
func WriteFile(path string, t Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create table directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, t); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Raw converts rows to the flat table for k.
func Raw(k Kind, rows []RawRow) Table {
	t := Table{Header: k.RawHeader(), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		cells := []string{strconv.Itoa(r.Scenario), r.Algo, k.FormatAxis(r.Axis)}
		if k == TimeSeries {
			cells = append(cells, strconv.Itoa(r.Shots))
		}
		cells = append(cells, FormatNullable(r.Success))
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// WriteRaw writes rows as the flat table for k.
func WriteRaw(w io.Writer, k Kind, rows []RawRow) error {
	return Write(w, Raw(k, rows))
}

// WriteRawFile replaces the flat table at path.
func WriteRawFile(path string, k Kind, rows []RawRow) error {
	return WriteFile(path, Raw(k, rows))
}

// ReadRaw reads a flat table for k. Columns are matched by header name so
// extra columns and reordering are tolerated.
func ReadRaw(r io.Reader, k Kind) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s table is empty", k)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", k, err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range k.RawHeader() {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s table is missing column %q", k, name)
		}
	}

	var rows []RawRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", k, line, err)
		}

		row, err := parseRawRow(k, col, rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", k, line, err)
		}
		rows = append(rows, row)
	}
}

func parseRawRow(k Kind, col map[string]int, rec []string) (RawRow, error) {
	cell := func(name string) (string, error) {
		i := col[name]
		if i >= len(rec) {
			return "", fmt.Errorf("missing value for %q", name)
		}
		return strings.TrimSpace(rec[i]), nil
	}

	var row RawRow

	v, err := cell("scenario")
	if err != nil {
		return row, err
	}
	if row.Scenario, err = strconv.Atoi(v); err != nil {
		return row, fmt.Errorf("invalid scenario %q", v)
	}

	if row.Algo, err = cell("algo"); err != nil {
		return row, err
	}

	if v, err = cell(k.AxisColumn()); err != nil {
		return row, err
	}
	if row.Axis, err = strconv.ParseFloat(v, 64); err != nil {
		return row, fmt.Errorf("invalid %s %q", k.AxisColumn(), v)
	}

	if k == TimeSeries {
		if v, err = cell("shots"); err != nil {
			return row, err
		}
		if row.Shots, err = strconv.Atoi(v); err != nil {
			return row, fmt.Errorf("invalid shots %q", v)
		}
	}

	if v, err = cell("success"); err != nil {
		return row, err
	}
	if row.Success, err = ParseNullable(v); err != nil {
		return row, err
	}
	return row, nil
}

// ReadRawFile reads the flat table for k at path.
func ReadRawFile(path string, k Kind) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s table: %w", k, err)
	}
	defer f.Close()
	return ReadRaw(f, k)
}
