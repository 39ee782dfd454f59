package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/circuit"
	"github.com/livinlefevreloca/qrun/internal/quasi"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

// Submission records one call to MockService.Submit.
type Submission struct {
	Backend backend.Descriptor
	Circuit circuit.Circuit
	Options runtime.SubmitOptions
}

// MockService is a scripted runtime.Service.
type MockService struct {
	mu          sync.Mutex
	jobs        []runtime.Job
	failOn      map[int]error
	submissions []Submission
}

func NewMockService() *MockService {
	return &MockService{failOn: make(map[int]error)}
}

// QueueJobs appends jobs handed out by subsequent Submit calls. Once the
// queue is empty Submit returns jobs that finish DONE with a perfect Bell
// distribution.
func (m *MockService) QueueJobs(jobs ...runtime.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, jobs...)
}

// FailSubmission makes the n-th Submit call (0-based) return err.
func (m *MockService) FailSubmission(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[n] = err
}

func (m *MockService) Submit(_ context.Context, target backend.Descriptor, c circuit.Circuit, opts runtime.SubmitOptions) (runtime.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.submissions)
	m.submissions = append(m.submissions, Submission{Backend: target, Circuit: c, Options: opts})

	if err, ok := m.failOn[n]; ok {
		return nil, err
	}

	if len(m.jobs) == 0 {
		return NewDoneJob(quasi.Distribution{"00": 0.5, "11": 0.5}), nil
	}
	job := m.jobs[0]
	m.jobs = m.jobs[1:]
	return job, nil
}

func (m *MockService) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Submission, len(m.submissions))
	copy(result, m.submissions)
	return result
}

// StatusStep is one scripted answer to Job.Status.
type StatusStep struct {
	Raw any
	Err error
}

// MockJob is a runtime.Job without wait support. Status answers follow the
// script; the last step repeats once the script is exhausted.
type MockJob struct {
	mu          sync.Mutex
	id          string
	script      []StatusStep
	statusCalls int
	result      runtime.Result
	resultErr   error
	resultCalls int
}

// NewMockJob creates a job whose Status calls return the given raw values.
func NewMockJob(statuses ...any) *MockJob {
	steps := make([]StatusStep, len(statuses))
	for i, s := range statuses {
		steps[i] = StatusStep{Raw: s}
	}
	return &MockJob{id: "job-" + uuid.NewString(), script: steps}
}

// NewDoneJob creates a job that is already DONE and returns dist.
func NewDoneJob(dist quasi.Distribution) *MockJob {
	return NewMockJob("DONE").WithResult(&FakeResult{Dists: []quasi.Distribution{dist}}, nil)
}

func (j *MockJob) WithID(id string) *MockJob {
	j.id = id
	return j
}

// WithScript replaces the status script.
func (j *MockJob) WithScript(steps ...StatusStep) *MockJob {
	j.script = steps
	return j
}

func (j *MockJob) WithResult(res runtime.Result, err error) *MockJob {
	j.result = res
	j.resultErr = err
	return j
}

func (j *MockJob) ID() string { return j.id }

func (j *MockJob) Status(_ context.Context) (any, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.statusCalls++
	if len(j.script) == 0 {
		return nil, fmt.Errorf("job %s: no status scripted", j.id)
	}
	i := j.statusCalls - 1
	if i >= len(j.script) {
		i = len(j.script) - 1
	}
	return j.script[i].Raw, j.script[i].Err
}

func (j *MockJob) Result(_ context.Context) (runtime.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.resultCalls++
	return j.result, j.resultErr
}

func (j *MockJob) StatusCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.statusCalls
}

func (j *MockJob) ResultCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resultCalls
}

// WaitableJob adds runtime.Waiter to a MockJob.
type WaitableJob struct {
	*MockJob
	waitErr   error
	waitPanic bool
	waitCalls int
	onWait    func()
}

// WithWait wraps j so that WaitForFinalState returns err.
func (j *MockJob) WithWait(err error) *WaitableJob {
	return &WaitableJob{MockJob: j, waitErr: err}
}

// Panicking makes WaitForFinalState panic instead of returning.
func (w *WaitableJob) Panicking() *WaitableJob {
	w.waitPanic = true
	return w
}

// OnWait registers fn to run inside WaitForFinalState, e.g. to advance a clock.
func (w *WaitableJob) OnWait(fn func()) *WaitableJob {
	w.onWait = fn
	return w
}

func (w *WaitableJob) WaitForFinalState(_ context.Context, _ time.Duration) error {
	w.mu.Lock()
	w.waitCalls++
	fn := w.onWait
	w.mu.Unlock()

	if fn != nil {
		fn()
	}
	if w.waitPanic {
		panic("wait exploded")
	}
	return w.waitErr
}

func (w *WaitableJob) WaitCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waitCalls
}

// FakeResult exposes every result capability. A capability with no data
// configured answers runtime.ErrUnsupported (or nil for RawPayload).
type FakeResult struct {
	Dists    []quasi.Distribution
	DistsErr error
	Dict     map[string]any
	DictErr  error
	Raw      any

	PanicOnDists bool
	PanicOnDict  bool
}

func (r *FakeResult) QuasiDists() ([]quasi.Distribution, error) {
	if r.PanicOnDists {
		panic("quasi_dists exploded")
	}
	if r.DistsErr != nil {
		return nil, r.DistsErr
	}
	if r.Dists == nil {
		return nil, runtime.ErrUnsupported
	}
	return r.Dists, nil
}

func (r *FakeResult) ToDict() (map[string]any, error) {
	if r.PanicOnDict {
		panic("to_dict exploded")
	}
	if r.DictErr != nil {
		return nil, r.DictErr
	}
	if r.Dict == nil {
		return nil, runtime.ErrUnsupported
	}
	return r.Dict, nil
}

func (r *FakeResult) RawPayload() any { return r.Raw }

// MockClock provides controllable time for testing. Sleep advances the
// clock instead of blocking.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

func (m *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.current = m.current.Add(d)
	m.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns every duration passed to Sleep.
func (m *MockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]time.Duration, len(m.sleeps))
	copy(result, m.sleeps)
	return result
}
