// Package runlog persists one durable record per submitted job.
//
// The primary sink is an append-only newline-delimited JSON file that is
// never truncated or rewritten and can be concatenated across sessions. A
// sqlite index can be attached as a secondary sink for querying.
package runlog

import (
	"encoding/json"
	"time"

	"github.com/livinlefevreloca/qrun/internal/quasi"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

// JobRecord is the durable unit written once per submitted job.
type JobRecord struct {
	SessionID         string             `json:"session_id,omitempty"`
	Tag               string             `json:"tag"`
	JobID             string             `json:"job_id"`
	Backend           string             `json:"backend"`
	Status            runtime.Status     `json:"status"`
	Shots             int                `json:"shots"`
	ElapsedSeconds    float64            `json:"elapsed_seconds"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	QuasiDistribution quasi.Distribution `json:"quasi_distribution,omitempty"`
	Success           *float64           `json:"success,omitempty"`
}

// Done reports whether the job reached DONE.
func (r JobRecord) Done() bool {
	return r.Status == runtime.StatusDone
}

// MarshalJSON writes quasi_distribution and success only for DONE records.
// A DONE record always carries both, even when the distribution is empty.
func (r JobRecord) MarshalJSON() ([]byte, error) {
	type plain JobRecord
	out := struct {
		plain
		QuasiDistribution *quasi.Distribution `json:"quasi_distribution,omitempty"`
		Success           *float64            `json:"success,omitempty"`
	}{plain: plain(r)}

	if r.Done() {
		dist := r.QuasiDistribution
		if dist == nil {
			dist = quasi.Distribution{}
		}
		success := 0.0
		if r.Success != nil {
			success = *r.Success
		}
		out.QuasiDistribution = &dist
		out.Success = &success
	}
	return json.Marshal(out)
}

// Logger accepts finalized job records.
type Logger interface {
	Append(rec JobRecord) error
}
