package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/livinlefevreloca/qrun/internal/quasi"
)

// httpResult is the body of a results response, decoded lazily by whichever
// view the caller asks for.
type httpResult struct {
	body []byte
}

// QuasiDists returns the top-level "quasi_dists" list. Envelopes that nest
// the distributions elsewhere report ErrUnsupported.
func (r *httpResult) QuasiDists() ([]quasi.Distribution, error) {
	var env struct {
		QuasiDists []map[string]float64 `json:"quasi_dists"`
	}
	if err := json.Unmarshal(r.body, &env); err != nil {
		return nil, fmt.Errorf("decode quasi_dists: %w", err)
	}
	if env.QuasiDists == nil {
		return nil, ErrUnsupported
	}

	out := make([]quasi.Distribution, len(env.QuasiDists))
	for i, d := range env.QuasiDists {
		out[i] = quasi.Distribution(d)
	}
	return out, nil
}

// ToDict decodes the whole body as a single JSON object. Bodies with
// trailing data are rejected.
func (r *httpResult) ToDict() (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("result document is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("result document has trailing data")
	}
	return doc, nil
}

// RawPayload decodes the first JSON value in the body and ignores anything
// after it. It returns nil when the body does not start with valid JSON.
func (r *httpResult) RawPayload() any {
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
