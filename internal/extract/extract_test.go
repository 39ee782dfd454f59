package extract

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livinlefevreloca/qrun/internal/quasi"
	"github.com/livinlefevreloca/qrun/internal/testutil"
)

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestDistributionChain(t *testing.T) {
	tests := []struct {
		name      string
		result    any
		want      quasi.Distribution
		wantProbe string
	}{
		{
			name:      "direct list wins",
			result:    &testutil.FakeResult{Dists: []quasi.Distribution{{"0": 0.6, "3": 0.4}}, Dict: map[string]any{"ignored": true}},
			want:      quasi.Distribution{"0": 0.6, "3": 0.4},
			wantProbe: "quasi_dists_attr",
		},
		{
			name: "dict quasi_dists as list",
			result: &testutil.FakeResult{Dict: decodeJSON(t,
				`{"results": [{"data": {"quasi_dists": [{"00": 0.7, "11": 0.3}]}}]}`)},
			want:      quasi.Distribution{"00": 0.7, "11": 0.3},
			wantProbe: "dict.results.data.quasi_dists",
		},
		{
			name: "dict quasi_dists as mapping",
			result: &testutil.FakeResult{Dict: decodeJSON(t,
				`{"results": [{"data": {"quasi_dists": {"00": 1}}}]}`)},
			want:      quasi.Distribution{"00": 1},
			wantProbe: "dict.results.data.quasi_dists",
		},
		{
			name: "dict quasi_probabilities",
			result: &testutil.FakeResult{Dict: decodeJSON(t,
				`{"results": [{"data": {"quasi_probabilities": {"00": 0.5, "11": 0.5}}}]}`)},
			want:      quasi.Distribution{"00": 0.5, "11": 0.5},
			wantProbe: "dict.results.data.quasi_probabilities",
		},
		{
			name: "dict meas quasi_dists",
			result: &testutil.FakeResult{Dict: decodeJSON(t,
				`{"results": [{"data": {"meas": {"quasi_dists": [{"1": 0.25, "2": 0.75}]}}}]}`)},
			want:      quasi.Distribution{"1": 0.25, "2": 0.75},
			wantProbe: "dict.results.data.meas.quasi_dists",
		},
		{
			name: "empty quasi_dists list falls through to quasi_probabilities",
			result: &testutil.FakeResult{Dict: decodeJSON(t,
				`{"results": [{"data": {"quasi_dists": [], "quasi_probabilities": {"11": 1}}}]}`)},
			want:      quasi.Distribution{"11": 1},
			wantProbe: "dict.results.data.quasi_probabilities",
		},
		{
			name: "dict view fails, raw nested payload used",
			result: &testutil.FakeResult{
				DictErr: errors.New("no dict view"),
				Raw:     decodeJSON(t, `{"results": [{"data": {"quasi_probabilities": {"00": 0.9}}}]}`),
			},
			want:      quasi.Distribution{"00": 0.9},
			wantProbe: "raw.results.data.quasi_probabilities",
		},
		{
			name: "raw top-level quasi_dists",
			result: &testutil.FakeResult{
				Raw: decodeJSON(t, `{"quasi_dists": [{"00": 0.2}]}`),
			},
			want:      quasi.Distribution{"00": 0.2},
			wantProbe: "raw.quasi_dists",
		},
		{
			name: "non-numeric values reject the mapping",
			result: &testutil.FakeResult{
				Dict: decodeJSON(t, `{"results": [{"data": {"quasi_probabilities": {"00": "high"}}}]}`),
				Raw:  decodeJSON(t, `{"results": [{"data": {"meas": {"quasi_dists": [{"00": 0.4}]}}}]}`),
			},
			want:      quasi.Distribution{"00": 0.4},
			wantProbe: "raw.results.data.meas.quasi_dists",
		},
		{
			name:      "nothing recognised",
			result:    &testutil.FakeResult{Dict: decodeJSON(t, `{"results": []}`)},
			want:      quasi.Distribution{},
			wantProbe: "",
		},
		{
			name:      "no capabilities at all",
			result:    struct{ Counts map[string]int }{Counts: map[string]int{"00": 3}},
			want:      quasi.Distribution{},
			wantProbe: "",
		},
		{
			name:      "nil result",
			result:    nil,
			want:      quasi.Distribution{},
			wantProbe: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, probe := Run(DefaultChain, tt.result)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantProbe, probe)
		})
	}
}

func TestDistributionRecoversFromPanics(t *testing.T) {
	res := &testutil.FakeResult{
		PanicOnDists: true,
		PanicOnDict:  true,
		Raw:          decodeJSON(t, `{"quasi_probabilities": {"11": 1}}`),
	}

	var got quasi.Distribution
	require.NotPanics(t, func() { got = Distribution(res) })
	assert.Equal(t, quasi.Distribution{"11": 1}, got)
}

func TestDistributionNeverNil(t *testing.T) {
	got := Distribution(&testutil.FakeResult{Dists: []quasi.Distribution{nil}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuasiProbabilitiesOnlyYieldsFullAgreement(t *testing.T) {
	res := &testutil.FakeResult{Dict: map[string]any{
		"results": []any{
			map[string]any{"data": map[string]any{
				"quasi_probabilities": map[string]any{"00": 0.5, "11": 0.5},
			}},
		},
	}}

	assert.Equal(t, 1.0, quasi.Success(Distribution(res), quasi.AgreementTargets))
}

func TestIntegerKeyedMappingKeepsKeysApart(t *testing.T) {
	res := &testutil.FakeResult{Dict: map[string]any{
		"results": []any{
			map[string]any{"data": map[string]any{
				"quasi_dists": map[int]float64{11: 0.7, 3: 0.1, 0: 0.2},
			}},
		},
	}}

	d := Distribution(res)
	assert.Equal(t, quasi.Distribution{"0xb": 0.7, "0x3": 0.1, "0x0": 0.2}, d)
	assert.InDelta(t, 0.3, quasi.Success(d, quasi.AgreementTargets), 1e-12)
}

func TestNonFiniteDistributionsAreRejected(t *testing.T) {
	tests := []struct {
		name   string
		result *testutil.FakeResult
		want   quasi.Distribution
	}{
		{
			name: "NaN in listed distribution falls through to dict",
			result: &testutil.FakeResult{
				Dists: []quasi.Distribution{{"00": math.NaN()}},
				Dict:  decodeJSON(t, `{"results": [{"data": {"quasi_dists": {"00": 1}}}]}`),
			},
			want: quasi.Distribution{"00": 1},
		},
		{
			name: "infinite value in dict mapping",
			result: &testutil.FakeResult{Dict: map[string]any{
				"results": []any{map[string]any{"data": map[string]any{
					"quasi_probabilities": map[string]any{"00": math.Inf(1), "11": 0.5},
				}}},
			}},
			want: quasi.Distribution{},
		},
		{
			name: "NaN json number",
			result: &testutil.FakeResult{Raw: map[string]any{
				"quasi_dists": []any{map[string]any{"0": json.Number("NaN")}},
			}},
			want: quasi.Distribution{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distribution(tt.result)
			assert.Equal(t, tt.want, got)
			_, err := json.Marshal(got)
			assert.NoError(t, err)
		})
	}
}

func TestJSONNumbersConverted(t *testing.T) {
	res := &testutil.FakeResult{Raw: map[string]any{
		"quasi_dists": []any{map[string]any{"0": json.Number("0.125"), "3": json.Number("0.875")}},
	}}
	assert.Equal(t, quasi.Distribution{"0": 0.125, "3": 0.875}, Distribution(res))
}
