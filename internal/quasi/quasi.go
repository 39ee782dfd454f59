package quasi

import (
	"math"
	"strconv"
)

// Distribution maps a measurement outcome to its estimated probability.
//
// Keys are bitstrings ("00", "101"), the decimal form of the equivalent
// integer ("0", "5") as found in JSON payloads, or the hex form ("0x5") for
// outcomes that arrived as typed integers. Remote result payloads use all
// of these and occasionally mix them, so lookups go through Probability
// rather than the map directly. A decimal JSON key made only of 0s and 1s
// cannot be told apart from a bitstring and is read as one. Values may be
// negative for noisy quasi-probabilities.
type Distribution map[string]float64

// FromInts builds a distribution from integer-keyed outcomes. Keys are
// stored in hex form so that integer 11 never matches bitstring "11".
func FromInts(m map[int]float64) Distribution {
	out := make(Distribution, len(m))
	for k, p := range m {
		out[hexKey(uint64(k))] = p
	}
	return out
}

func hexKey(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// Finite reports whether every probability in d is a finite number.
func (d Distribution) Finite() bool {
	for _, p := range d {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy of d. A nil distribution clones to nil.
func (d Distribution) Clone() Distribution {
	if d == nil {
		return nil
	}
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Probability returns the probability recorded for the outcome bits.
// The literal bitstring key is tried first, then the decimal and hex forms
// of the integer value. An absent outcome has probability 0.
func Probability(d Distribution, bits string) float64 {
	if len(d) == 0 {
		return 0
	}
	if p, ok := d[bits]; ok {
		return p
	}
	n, err := strconv.ParseUint(bits, 2, 64)
	if err != nil {
		return 0
	}
	if p, ok := d[strconv.FormatUint(n, 10)]; ok {
		return p
	}
	return d[hexKey(n)]
}

// Success sums the probability mass assigned to the target outcomes.
// Duplicate targets are counted once.
func Success(d Distribution, targets []string) float64 {
	seen := make(map[string]struct{}, len(targets))
	var total float64
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		total += Probability(d, t)
	}
	return total
}

// AgreementTargets is the target set of a two-qubit agreement test: both
// qubits measured equal.
var AgreementTargets = []string{"00", "11"}
