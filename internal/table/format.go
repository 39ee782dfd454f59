package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f the way the plotting consumer expects: the
// shortest representation that round-trips, a trailing ".0" on integral
// values, scientific notation below 1e-4 and from 1e16 up, and "nan",
// "inf" or "-inf" for non-finite values.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// FormatNullable renders a nullable value; nil becomes the empty cell.
func FormatNullable(f *float64) string {
	if f == nil {
		return ""
	}
	return FormatFloat(*f)
}

// IsNull reports whether a cell holds one of the null markers.
func IsNull(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "None":
		return true
	default:
		return false
	}
}

// ParseNullable parses a float cell. Null markers yield nil.
func ParseNullable(cell string) (*float64, error) {
	if IsNull(cell) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", cell, err)
	}
	return &f, nil
}
