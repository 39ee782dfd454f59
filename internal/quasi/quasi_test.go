package quasi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbability(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		bits string
		want float64
	}{
		{"literal bitstring", Distribution{"00": 0.4, "11": 0.6}, "11", 0.6},
		{"integer form", Distribution{"0": 0.25, "3": 0.75}, "11", 0.75},
		{"literal wins over integer", Distribution{"11": 0.1, "3": 0.9}, "11", 0.1},
		{"absent outcome", Distribution{"01": 1.0}, "10", 0},
		{"nil distribution", nil, "00", 0},
		{"not a bitstring", Distribution{"2": 0.5}, "2", 0.5},
		{"unparsable key", Distribution{"3": 0.5}, "xx", 0},
		{"hex form", Distribution{"0x0": 0.2, "0x3": 0.8}, "11", 0.8},
		{"integer keys never match literally", FromInts(map[int]float64{11: 0.7, 3: 0.1}), "11", 0.1},
		{"padded bitstring against integer key", FromInts(map[int]float64{2: 0.6}), "010", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Probability(tt.dist, tt.bits), 1e-12)
		})
	}
}

func TestFinite(t *testing.T) {
	assert.True(t, Distribution{"00": -0.02, "11": 1.02}.Finite())
	assert.True(t, Distribution(nil).Finite())
	assert.False(t, Distribution{"00": math.NaN()}.Finite())
	assert.False(t, Distribution{"11": math.Inf(-1)}.Finite())
}

func TestSuccess(t *testing.T) {
	t.Run("agreement over mixed keys", func(t *testing.T) {
		d := Distribution{"00": 0.45, "3": 0.40, "01": 0.15}
		assert.InDelta(t, 0.85, Success(d, AgreementTargets), 1e-12)
	})

	t.Run("empty distribution yields zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Success(Distribution{}, AgreementTargets))
		assert.Equal(t, 0.0, Success(nil, []string{"000", "111"}))
	})

	t.Run("pure and repeatable", func(t *testing.T) {
		d := Distribution{"00": 0.5, "11": 0.3}
		first := Success(d, AgreementTargets)
		second := Success(d, AgreementTargets)
		assert.Equal(t, first, second)
		assert.Equal(t, Distribution{"00": 0.5, "11": 0.3}, d)
	})

	t.Run("duplicate targets counted once", func(t *testing.T) {
		d := Distribution{"00": 0.5}
		assert.InDelta(t, 0.5, Success(d, []string{"00", "00"}), 1e-12)
	})

	t.Run("negative quasi probabilities pass through", func(t *testing.T) {
		d := Distribution{"00": 0.55, "11": -0.05}
		assert.InDelta(t, 0.50, Success(d, AgreementTargets), 1e-12)
	})
}

func TestClone(t *testing.T) {
	d := Distribution{"00": 1}
	c := d.Clone()
	c["00"] = 0
	assert.Equal(t, 1.0, d["00"])
	assert.Nil(t, Distribution(nil).Clone())
}
