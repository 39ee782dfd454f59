// Package executor runs one circuit on the remote service and turns the
// outcome into exactly one durable job record.
//
// Each job moves through a small state machine:
//
//	submitting -> waiting -> collecting -> finalizing -> logged
//	              waiting -> polling (when the wait primitive fails)
//	submitting -> polling (when the job has no wait primitive)
//	submitting -> submit_failed
//
// Only a submission failure or a run log failure is returned as an error.
// Terminal failures, local timeouts and unreadable results are recorded as
// missing data.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/circuit"
	"github.com/livinlefevreloca/qrun/internal/extract"
	"github.com/livinlefevreloca/qrun/internal/quasi"
	"github.com/livinlefevreloca/qrun/internal/runlog"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

const (
	DefaultPollInterval = 8 * time.Second
	DefaultTimeout      = 30 * time.Minute
)

// ErrSubmit marks a failure of the submission call itself. No job id exists
// and no record was written.
var ErrSubmit = errors.New("executor: submit failed")

// Request describes one job.
type Request struct {
	Backend           backend.Descriptor
	Circuit           circuit.Circuit
	Shots             int
	OptimizationLevel int
	Seed              *int64
	Tag               string

	PollInterval time.Duration
	Timeout      time.Duration
}

// Observer is notified about every job outcome.
type Observer interface {
	SubmitFailed(tag string)
	// JobFinished is called once per logged record. waitFallback is true
	// when the record was settled by the poll loop.
	JobFinished(rec runlog.JobRecord, waitFallback bool)
}

// Engine submits jobs one at a time and awaits their terminal state.
type Engine struct {
	service   runtime.Service
	sink      runlog.Logger
	logger    *slog.Logger
	sessionID string
	targets   []string
	observer  Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// Optional state recorder for testing
	recorder *StateRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock and the poll sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.now = now
		e.sleep = sleep
	}
}

// WithSessionID stamps every record with id.
func WithSessionID(id string) Option {
	return func(e *Engine) { e.sessionID = id }
}

// WithTargets sets the outcome keys whose probabilities make up success.
func WithTargets(targets []string) Option {
	return func(e *Engine) { e.targets = targets }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithStateRecorder(r *StateRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine that appends every finished job to sink.
func NewEngine(service runtime.Service, sink runlog.Logger, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		service:  service,
		sink:     sink,
		logger:   logger,
		targets:  quasi.AgreementTargets,
		observer: nopObserver{},
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) SessionID() string { return e.sessionID }

// SubmitAndAwait submits req, waits for a terminal status or the timeout,
// scores DONE results and appends the record to the run log before
// returning it.
//
// The returned error wraps ErrSubmit when submission failed, in which case
// the record is zero. A run log failure returns the assembled record
// together with the error.
func (e *Engine) SubmitAndAwait(ctx context.Context, req Request) (runlog.JobRecord, error) {
	if req.PollInterval <= 0 {
		req.PollInterval = DefaultPollInterval
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}

	r := &jobRun{
		engine: e,
		req:    req,
		state:  &SubmittingState{},
		status: runtime.StatusTimeout,
	}
	if e.recorder != nil {
		e.recorder.Record(r.state)
	}
	r.run(ctx)
	return r.record, r.err
}

// jobRun is the per-job state machine.
type jobRun struct {
	engine *Engine
	req    Request
	state  State
	timing PhaseTiming

	job   runtime.Job
	jobID string

	// status is the last normalized status observed. It stays TIMEOUT
	// until a status read succeeds.
	status       runtime.Status
	waitFallback bool

	dist    quasi.Distribution
	success *float64

	record runlog.JobRecord
	err    error
}

func (r *jobRun) log() *slog.Logger {
	l := r.engine.logger.With("tag", r.req.Tag)
	if r.jobID != "" {
		l = l.With("job_id", r.jobID)
	}
	return l
}

func (r *jobRun) transitionTo(newState State) {
	oldStateName := r.state.Name()
	r.state = newState

	if r.engine.recorder != nil {
		r.engine.recorder.Record(newState)
	}

	r.log().Debug("state transition",
		"from", oldStateName,
		"to", newState.Name())
}

func (r *jobRun) run(ctx context.Context) {
	for {
		switch r.state.(type) {
		case *SubmittingState:
			r.runSubmitting(ctx)
		case *WaitingState:
			r.runWaiting(ctx)
		case *PollingState:
			r.runPolling(ctx)
		case *CollectingState:
			r.runCollecting(ctx)
		case *FinalizingState:
			r.runFinalizing()
		case *LoggedState, *SubmitFailedState:
			return
		default:
			r.err = fmt.Errorf("unknown state type %T", r.state)
			return
		}
	}
}

func (r *jobRun) elapsed() time.Duration {
	return r.engine.now().Sub(r.timing.Started)
}

func (r *jobRun) runSubmitting(ctx context.Context) {
	state := r.state.(*SubmittingState)

	r.timing.Started = r.engine.now()
	job, err := r.submit(ctx)
	if err == nil && job == nil {
		err = errors.New("service returned no job")
	}
	if err == nil && job.ID() == "" {
		err = errors.New("service returned a job without an id")
	}
	if err != nil {
		r.err = fmt.Errorf("%w: %s: %w", ErrSubmit, r.req.Tag, err)
		r.engine.observer.SubmitFailed(r.req.Tag)
		r.log().Error("job submission failed", "backend", r.req.Backend.Name, "error", err)
		r.transitionTo(state.ToSubmitFailed())
		return
	}

	r.job = job
	r.jobID = job.ID()
	r.timing.Accepted = r.engine.now()
	r.log().Info("job submitted", "backend", r.req.Backend.Name, "shots", r.req.Shots)

	if _, ok := job.(runtime.Waiter); ok {
		r.transitionTo(state.ToWaiting())
		return
	}
	r.waitFallback = true
	r.log().Debug("job has no wait primitive, polling")
	r.transitionTo(state.ToPolling())
}

func (r *jobRun) submit(ctx context.Context) (job runtime.Job, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("submit panicked: %v", p)
		}
	}()
	return r.engine.service.Submit(ctx, r.req.Backend, r.req.Circuit, runtime.SubmitOptions{
		Shots:             r.req.Shots,
		OptimizationLevel: r.req.OptimizationLevel,
		Seed:              r.req.Seed,
	})
}

// runWaiting gives the service's wait primitive one chance. It is trusted
// only if a status read afterwards confirms a terminal state.
func (r *jobRun) runWaiting(ctx context.Context) {
	state := r.state.(*WaitingState)

	err := r.wait(ctx, r.job.(runtime.Waiter), r.req.Timeout-r.elapsed())
	if err == nil {
		var st runtime.Status
		st, err = r.readStatus(ctx)
		if err == nil && st.Terminal() {
			r.settle(state.ToCollecting(), state.ToFinalizing())
			return
		}
		if err == nil {
			err = fmt.Errorf("status still %s after wait", st)
		}
	}

	r.waitFallback = true
	if errors.Is(err, runtime.ErrUnsupported) {
		r.log().Debug("wait not supported, polling")
	} else {
		r.log().Warn("wait for final state failed, polling", "error", err)
	}
	r.transitionTo(state.ToPolling())
}

func (r *jobRun) wait(ctx context.Context, w runtime.Waiter, budget time.Duration) (err error) {
	if budget <= 0 {
		return errors.New("timeout already exhausted")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("wait panicked: %v", p)
		}
	}()
	return w.WaitForFinalState(ctx, budget)
}

// runPolling reads the status every poll interval until it is terminal or
// the elapsed time exceeds the timeout. The last status observed is kept
// as is; a job still running at the deadline is abandoned, not cancelled.
func (r *jobRun) runPolling(ctx context.Context) {
	state := r.state.(*PollingState)

	for {
		st, err := r.readStatus(ctx)
		if err != nil {
			r.log().Warn("status read failed", "error", err)
		} else if st.Terminal() {
			break
		}

		if r.elapsed() > r.req.Timeout {
			r.log().Warn("poll budget exhausted",
				"status", r.status,
				"elapsed", r.elapsed().Seconds())
			break
		}
		if err := r.engine.sleep(ctx, r.req.PollInterval); err != nil {
			r.log().Warn("polling interrupted", "status", r.status, "error", err)
			break
		}
	}

	r.settle(state.ToCollecting(), state.ToFinalizing())
}

// settle moves to collecting for DONE jobs and straight to finalizing
// otherwise.
func (r *jobRun) settle(collecting *CollectingState, finalizing *FinalizingState) {
	r.timing.Settled = r.engine.now()
	if r.status == runtime.StatusDone {
		r.transitionTo(collecting)
		return
	}
	r.transitionTo(finalizing)
}

func (r *jobRun) readStatus(ctx context.Context) (st runtime.Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("status panicked: %v", p)
		}
	}()
	raw, err := r.job.Status(ctx)
	if err != nil {
		return "", err
	}
	r.status = runtime.NormalizeStatus(raw)
	return r.status, nil
}

func (r *jobRun) runCollecting(ctx context.Context) {
	state := r.state.(*CollectingState)

	dist := quasi.Distribution{}
	res, err := r.fetchResult(ctx)
	if err != nil {
		r.log().Warn("result fetch failed", "error", err)
	} else {
		var probe string
		dist, probe = extract.Run(extract.DefaultChain, res)
		if probe == "" {
			r.log().Warn("no distribution found in result")
		} else {
			r.log().Debug("distribution extracted", "probe", probe, "outcomes", len(dist))
		}
	}

	success := quasi.Success(dist, r.engine.targets)
	r.dist = dist
	r.success = &success
	r.transitionTo(state.ToFinalizing())
}

func (r *jobRun) fetchResult(ctx context.Context) (res runtime.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("result panicked: %v", p)
		}
	}()
	return r.job.Result(ctx)
}

func (r *jobRun) runFinalizing() {
	state := r.state.(*FinalizingState)

	r.timing.Finalized = r.engine.now()
	rec := runlog.JobRecord{
		SessionID:      r.engine.sessionID,
		Tag:            r.req.Tag,
		JobID:          r.jobID,
		Backend:        r.req.Backend.Name,
		Status:         r.status,
		Shots:          r.req.Shots,
		ElapsedSeconds: r.timing.Finalized.Sub(r.timing.Started).Seconds(),
		SubmittedAt:    r.timing.Started.UTC(),
	}
	if rec.Done() {
		rec.QuasiDistribution = r.dist
		rec.Success = r.success
	}
	r.record = rec

	if err := r.engine.sink.Append(rec); err != nil {
		r.err = fmt.Errorf("append run log for %s: %w", r.req.Tag, err)
		r.log().Error("run log append failed", "error", err)
	}
	r.engine.observer.JobFinished(rec, r.waitFallback)

	attrs := []any{"status", rec.Status, "elapsed", rec.ElapsedSeconds}
	if rec.Success != nil {
		attrs = append(attrs, "success", *rec.Success)
	}
	r.log().Info("job finished", attrs...)

	r.transitionTo(state.ToLogged())
}

type nopObserver struct{}

func (nopObserver) SubmitFailed(string)                {}
func (nopObserver) JobFinished(runlog.JobRecord, bool) {}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
