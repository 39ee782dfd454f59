package executor

import "time"

// State is the interface that all job execution states implement.
type State interface {
	Name() string
}

// StateRecorder tracks state transitions for testing.
type StateRecorder struct {
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	return r.path
}

// PhaseTiming holds the phase boundaries of one job.
type PhaseTiming struct {
	// Started is captured before submission; elapsed time counts from here.
	Started   time.Time
	Accepted  time.Time
	Settled   time.Time
	Finalized time.Time
}
