// Package extract locates the quasi-probability distribution inside a raw
// execution result.
//
// The result envelope changes between service versions, so extraction is an
// ordered chain of probes. Each probe inspects one known shape and either
// yields a distribution or declines. The first probe to yield wins. Probes
// never fail the extraction: errors and panics inside a probe only move the
// chain along, and a result nobody recognises extracts to an empty
// distribution.
package extract

import (
	"encoding/json"
	"math"

	"github.com/livinlefevreloca/qrun/internal/quasi"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

// Probe inspects a raw result for one known shape.
type Probe struct {
	Name string
	Fn   func(raw runtime.Result) (quasi.Distribution, bool)
}

// DefaultChain is the probe order used by Distribution.
var DefaultChain = []Probe{
	{Name: "quasi_dists_attr", Fn: probeDistributionList},
	{Name: "dict.results.data.quasi_dists", Fn: dictProbe(nestedQuasiDists)},
	{Name: "dict.results.data.quasi_probabilities", Fn: dictProbe(nestedQuasiProbabilities)},
	{Name: "dict.results.data.meas.quasi_dists", Fn: dictProbe(nestedMeasQuasiDists)},
	{Name: "raw.quasi_dists", Fn: rawProbe(topLevelDistributions)},
	{Name: "raw.results.data.quasi_dists", Fn: rawProbe(nestedQuasiDists)},
	{Name: "raw.results.data.quasi_probabilities", Fn: rawProbe(nestedQuasiProbabilities)},
	{Name: "raw.results.data.meas.quasi_dists", Fn: rawProbe(nestedMeasQuasiDists)},
}

// Distribution runs DefaultChain over raw.
func Distribution(raw runtime.Result) quasi.Distribution {
	d, _ := Run(DefaultChain, raw)
	return d
}

// Run tries each probe in order and returns the first distribution found
// together with the name of the probe that produced it. It returns an empty
// distribution and "" when no probe matches.
func Run(chain []Probe, raw runtime.Result) (quasi.Distribution, string) {
	for _, p := range chain {
		if d, ok := try(p, raw); ok {
			return d, p.Name
		}
	}
	return quasi.Distribution{}, ""
}

func try(p Probe, raw runtime.Result) (d quasi.Distribution, ok bool) {
	defer func() {
		if recover() != nil {
			d, ok = nil, false
		}
	}()
	d, ok = p.Fn(raw)
	if ok && d == nil {
		d = quasi.Distribution{}
	}
	return d, ok
}

func probeDistributionList(raw runtime.Result) (quasi.Distribution, bool) {
	lister, ok := raw.(runtime.DistributionLister)
	if !ok {
		return nil, false
	}
	dists, err := lister.QuasiDists()
	if err != nil || len(dists) == 0 {
		return nil, false
	}
	return toDistribution(dists[0])
}

// dictProbe applies shape to the result's dictionary view.
func dictProbe(shape func(doc any) (quasi.Distribution, bool)) func(runtime.Result) (quasi.Distribution, bool) {
	return func(raw runtime.Result) (quasi.Distribution, bool) {
		viewer, ok := raw.(runtime.DictViewer)
		if !ok {
			return nil, false
		}
		doc, err := viewer.ToDict()
		if err != nil || doc == nil {
			return nil, false
		}
		return shape(doc)
	}
}

// rawProbe applies shape to the result's undecoded payload.
func rawProbe(shape func(doc any) (quasi.Distribution, bool)) func(runtime.Result) (quasi.Distribution, bool) {
	return func(raw runtime.Result) (quasi.Distribution, bool) {
		payloader, ok := raw.(runtime.RawPayloader)
		if !ok {
			return nil, false
		}
		return shape(payloader.RawPayload())
	}
}

// results[0].data
func firstResultData(doc any) (any, bool) {
	results, ok := field(doc, "results")
	if !ok {
		return nil, false
	}
	first, ok := index0(results)
	if !ok {
		return nil, false
	}
	return field(first, "data")
}

// results[0].data.quasi_dists, either a list (element 0) or a mapping.
func nestedQuasiDists(doc any) (quasi.Distribution, bool) {
	data, ok := firstResultData(doc)
	if !ok {
		return nil, false
	}
	cand, ok := field(data, "quasi_dists")
	if !ok {
		return nil, false
	}
	return listOrMapping(cand)
}

// results[0].data.quasi_probabilities, a mapping.
func nestedQuasiProbabilities(doc any) (quasi.Distribution, bool) {
	data, ok := firstResultData(doc)
	if !ok {
		return nil, false
	}
	cand, ok := field(data, "quasi_probabilities")
	if !ok {
		return nil, false
	}
	return toDistribution(cand)
}

// results[0].data.meas.quasi_dists, a list (element 0).
func nestedMeasQuasiDists(doc any) (quasi.Distribution, bool) {
	data, ok := firstResultData(doc)
	if !ok {
		return nil, false
	}
	meas, ok := field(data, "meas")
	if !ok {
		return nil, false
	}
	cand, ok := field(meas, "quasi_dists")
	if !ok {
		return nil, false
	}
	first, ok := index0(cand)
	if !ok {
		return nil, false
	}
	return toDistribution(first)
}

// Top-level quasi_dists or quasi_probabilities of a raw payload.
func topLevelDistributions(doc any) (quasi.Distribution, bool) {
	for _, key := range []string{"quasi_dists", "quasi_probabilities"} {
		if cand, ok := field(doc, key); ok {
			if d, ok := listOrMapping(cand); ok {
				return d, true
			}
		}
	}
	return nil, false
}

func listOrMapping(v any) (quasi.Distribution, bool) {
	if first, ok := index0(v); ok {
		return toDistribution(first)
	}
	return toDistribution(v)
}

func field(v any, key string) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out, ok := m[key]
	if !ok || out == nil {
		return nil, false
	}
	return out, true
}

func index0(v any) (any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// toDistribution converts a JSON-like mapping of outcome to number. Any
// non-numeric or non-finite value rejects the whole mapping.
func toDistribution(v any) (quasi.Distribution, bool) {
	var d quasi.Distribution
	switch m := v.(type) {
	case quasi.Distribution:
		d = m
	case map[string]float64:
		d = quasi.Distribution(m)
	case map[int]float64:
		d = quasi.FromInts(m)
	case map[string]any:
		d = make(quasi.Distribution, len(m))
		for k, raw := range m {
			p, ok := toFloat(raw)
			if !ok {
				return nil, false
			}
			d[k] = p
		}
	default:
		return nil, false
	}
	if !d.Finite() {
		return nil, false
	}
	return d, true
}

func toFloat(v any) (float64, bool) {
	f, ok := numeric(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
