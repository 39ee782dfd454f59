package runtime

import (
	"fmt"
	"strings"
)

// Status is a normalized job status.
type Status string

const (
	StatusDone      Status = "DONE"
	StatusError     Status = "ERROR"
	StatusCancelled Status = "CANCELLED"
	// StatusRunning covers every non-terminal state: queued, validating,
	// initializing and running.
	StatusRunning Status = "RUNNING"
	// StatusTimeout is recorded only when the poll budget ran out without
	// the status ever being readable.
	StatusTimeout Status = "TIMEOUT"
)

// Terminal reports whether the remote job can no longer change state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// NormalizeStatus maps a raw status value from the service onto a Status.
//
// Accepted raw forms: a Status, a string in any case (optionally prefixed
// with "JobStatus."), a value with a Name() method, a value implementing
// fmt.Stringer, or an object carrying a "name" or "status" string field.
// Anything unrecognised is treated as still running.
func NormalizeStatus(raw any) Status {
	return statusFromName(statusName(raw))
}

func statusName(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case Status:
		return string(v)
	case string:
		return v
	case interface{ Name() string }:
		return v.Name()
	case fmt.Stringer:
		return v.String()
	case map[string]any:
		for _, key := range []string{"name", "status"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func statusFromName(name string) Status {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "JOBSTATUS.")

	switch name {
	case "DONE", "COMPLETED":
		return StatusDone
	case "ERROR", "FAILED":
		return StatusError
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	default:
		return StatusRunning
	}
}
