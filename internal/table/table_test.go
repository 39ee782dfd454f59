package table

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{0.5, "0.5"},
		{400, "400.0"},
		{0.1, "0.1"},
		{2.0 / 3.0, "0.6666666666666666"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{1e15, "1000000000000000.0"},
		{1e16, "1e+16"},
		{math.NaN(), "nan"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat(tt.in))
		})
	}
}

func TestParseNullable(t *testing.T) {
	for _, cell := range []string{"", "None", "  "} {
		v, err := ParseNullable(cell)
		require.NoError(t, err)
		assert.Nil(t, v, "cell %q", cell)
	}

	v, err := ParseNullable("0.25")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 0.25, *v)

	v, err = ParseNullable("nan")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, math.IsNaN(*v))

	_, err = ParseNullable("high")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("SDPairs")
	require.NoError(t, err)
	assert.Equal(t, SDPairs, k)

	_, err = ParseKind("all")
	assert.Error(t, err)
}

func TestWriteRawTimeSeries(t *testing.T) {
	rows := []RawRow{
		{Scenario: 1, Algo: "Q-RITA", Axis: 0, Shots: 256, Success: f(0.9453125)},
		{Scenario: 1, Algo: "Q-RITA", Axis: 1, Shots: 256, Success: nil},
		{Scenario: 2, Algo: "Static-RIS", Axis: 35, Shots: 256, Success: f(1)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, TimeSeries, rows))

	want := "scenario,algo,t,shots,success\n" +
		"1,Q-RITA,0,256,0.9453125\n" +
		"1,Q-RITA,1,256,\n" +
		"2,Static-RIS,35,256,1.0\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteRawDistance(t *testing.T) {
	rows := []RawRow{
		{Scenario: 1, Algo: "Classical-RR", Axis: 0.01, Success: f(0.5)},
		{Scenario: 1, Algo: "Classical-RR", Axis: 1.0, Success: nil},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, Distance, rows))

	want := "scenario,algo,distance_ratio,success\n" +
		"1,Classical-RR,0.01,0.5\n" +
		"1,Classical-RR,1.0,\n"
	assert.Equal(t, want, buf.String())
}

func TestRawRoundTripPreservesNulls(t *testing.T) {
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			rows := []RawRow{
				{Scenario: 1, Algo: "Q-RITA", Axis: 10, Success: f(0.75)},
				{Scenario: 1, Algo: "Q-RITA", Axis: 20, Success: nil},
				{Scenario: 2, Algo: "Classical-RR", Axis: 30, Success: f(0)},
				{Scenario: 2, Algo: "Classical-RR", Axis: 15, Success: nil},
			}
			if k == TimeSeries {
				for i := range rows {
					rows[i].Shots = 256
				}
			}

			var buf bytes.Buffer
			require.NoError(t, WriteRaw(&buf, k, rows))

			got, err := ReadRaw(&buf, k)
			require.NoError(t, err)
			require.Len(t, got, len(rows))
			for i := range rows {
				assert.Equal(t, rows[i].Success == nil, got[i].Success == nil, "row %d null marker", i)
			}
			assert.Equal(t, rows, got)
		})
	}
}

func TestReadRawAcceptsPythonNone(t *testing.T) {
	input := "scenario,algo,sd_pairs,success\n1,Q-RITA,10,None\n1,Q-RITA,15,0.25\n"

	rows, err := ReadRaw(strings.NewReader(input), SDPairs)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Success)
	assert.Equal(t, 0.25, *rows[1].Success)
}

func TestReadRawColumnsByName(t *testing.T) {
	input := "algo,success,extra,distance_ratio,scenario\r\nQ-RITA,0.5,x,0.2,2\r\n"

	rows, err := ReadRaw(strings.NewReader(input), Distance)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, RawRow{Scenario: 2, Algo: "Q-RITA", Axis: 0.2, Success: f(0.5)}, rows[0])
}

func TestReadRawErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "is empty"},
		{"missing column", "scenario,algo,success\n", `missing column "t"`},
		{"bad scenario", "scenario,algo,t,shots,success\none,Q-RITA,0,256,\n", "line 2"},
		{"bad success", "scenario,algo,t,shots,success\n1,Q-RITA,0,256,high\n", "invalid number"},
		{"short row", "scenario,algo,t,shots,success\n1,Q-RITA\n", "missing value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRaw(strings.NewReader(tt.input), TimeSeries)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "table.csv")

	require.NoError(t, WriteFile(path, Table{Header: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}))
	require.NoError(t, WriteFile(path, Table{Header: []string{"a"}, Rows: [][]string{{"3"}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n3\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestWriteFileIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeseries.csv")
	require.NoError(t, WriteFile(path, Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Table{Header: []string{"a", "b"}, Rows: [][]string{{"1"}}})
	assert.Error(t, err)
}

func TestRawFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sd_pairs_sweep.csv")
	rows := []RawRow{{Scenario: 1, Algo: "Q-RITA", Axis: 25, Success: f(0.125)}}

	require.NoError(t, WriteRawFile(path, SDPairs, rows))
	got, err := ReadRawFile(path, SDPairs)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
