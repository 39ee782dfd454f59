// Package metrics derives throughput and satisfaction tables from the flat
// sweep tables. Every function is pure: the derived tables are rebuilt from
// scratch on each call.
package metrics

import (
	"fmt"
	"math"
	"strconv"

	"github.com/livinlefevreloca/qrun/internal/table"
)

// Config holds the aggregation constants.
type Config struct {
	ThroughputScale       float64 `toml:"throughput_scale"`
	SatisfactionThreshold float64 `toml:"satisfaction_threshold"`
	RollingWindow         int     `toml:"rolling_window"`
}

func DefaultConfig() Config {
	return Config{
		ThroughputScale:       1000,
		SatisfactionThreshold: 0.5,
		RollingWindow:         5,
	}
}

func (c Config) Validate() error {
	if c.RollingWindow <= 0 {
		return fmt.Errorf("metrics rolling_window must be positive")
	}
	if math.IsNaN(c.SatisfactionThreshold) || c.SatisfactionThreshold < 0 || c.SatisfactionThreshold > 1 {
		return fmt.Errorf("metrics satisfaction_threshold must be between 0 and 1")
	}
	if math.IsNaN(c.ThroughputScale) || math.IsInf(c.ThroughputScale, 0) {
		return fmt.Errorf("metrics throughput_scale must be finite")
	}
	return nil
}

// Throughput scales success. A missing success yields NaN so the row is
// still emitted.
func (c Config) Throughput(success *float64) float64 {
	if success == nil {
		return math.NaN()
	}
	return *success * c.ThroughputScale
}

// Satisfied is 1 when success meets the threshold and 0 otherwise. A
// missing or NaN success is not satisfied.
func (c Config) Satisfied(success *float64) float64 {
	if success != nil && *success >= c.SatisfactionThreshold {
		return 1
	}
	return 0
}

// RollingSatisfaction computes, for every index i of series, the share of
// non-null values in the trailing window [i-W+1, i] that meet the
// threshold. A window without non-null values yields 0.
func (c Config) RollingSatisfaction(series []*float64) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		var present, met int
		for _, v := range series[max(0, i-c.RollingWindow+1) : i+1] {
			if v == nil {
				continue
			}
			present++
			if *v >= c.SatisfactionThreshold {
				met++
			}
		}
		if present > 0 {
			out[i] = float64(met) / float64(present)
		}
	}
	return out
}

// TimeSeries holds the two tables derived from the time-series sweep.
type TimeSeries struct {
	Throughput   table.Table
	Satisfaction table.Table
}

type seriesKey struct {
	scenario int
	algo     string
}

// BuildTimeSeries derives the throughput and rolling satisfaction tables.
// Throughput keeps the input order and the row's own t. Satisfaction is
// grouped by (scenario, algo) in order of first appearance, and its t is
// the position within the group.
func (c Config) BuildTimeSeries(rows []table.RawRow) TimeSeries {
	ts := TimeSeries{
		Throughput:   table.Table{Header: []string{"scenario", "algo", "t", "throughput"}},
		Satisfaction: table.Table{Header: []string{"scenario", "algo", "t", "satisfaction"}},
	}

	var order []seriesKey
	groups := make(map[seriesKey][]*float64)
	for _, r := range rows {
		ts.Throughput.Rows = append(ts.Throughput.Rows, []string{
			strconv.Itoa(r.Scenario),
			r.Algo,
			table.TimeSeries.FormatAxis(r.Axis),
			table.FormatFloat(c.Throughput(r.Success)),
		})

		k := seriesKey{r.Scenario, r.Algo}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r.Success)
	}

	for _, k := range order {
		for i, sat := range c.RollingSatisfaction(groups[k]) {
			ts.Satisfaction.Rows = append(ts.Satisfaction.Rows, []string{
				strconv.Itoa(k.scenario),
				k.algo,
				strconv.Itoa(i),
				table.FormatFloat(sat),
			})
		}
	}
	return ts
}

// BuildSweep derives the throughput and pointwise satisfaction table of a
// distance or sd-pairs sweep.
func (c Config) BuildSweep(kind table.Kind, rows []table.RawRow) (table.Table, error) {
	if kind == table.TimeSeries {
		return table.Table{}, fmt.Errorf("%s is not a sweep table", kind)
	}

	t := table.Table{
		Header: []string{"scenario", "algo", kind.AxisColumn(), "throughput", "satisfaction"},
		Rows:   make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(r.Scenario),
			r.Algo,
			kind.FormatAxis(r.Axis),
			table.FormatFloat(c.Throughput(r.Success)),
			table.FormatFloat(c.Satisfied(r.Success)),
		})
	}
	return t, nil
}
