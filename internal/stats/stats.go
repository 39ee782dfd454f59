// Package stats collects execution statistics for a collection session.
//
// The collector observes every job the execution engine finishes. Outcomes
// are accumulated per stats period and written to the session_stats table
// when a period closes; session totals can also be exported as a
// Prometheus textfile.
package stats

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livinlefevreloca/qrun/internal/runlog"
)

// Collector implements executor.Observer.
type Collector struct {
	db        DatabaseWriter
	config    Config
	logger    *slog.Logger
	sessionID string
	now       func() time.Time

	// Mutex protects all mutable fields below
	mu sync.Mutex

	// Current stats period tracking
	currentPeriod   string
	periodStartTime time.Time
	period          *Accumulator

	// Totals since the session started
	sessionStart time.Time
	totals       *Accumulator

	stopOnce sync.Once
}

// Option configures a Collector.
type Option func(*Collector)

// WithNow replaces the clock used for period boundaries.
func WithNow(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// NewCollector creates a collector for sessionID. database may be nil, in
// which case periods are only logged.
func NewCollector(config Config, database DatabaseWriter, sessionID string, logger *slog.Logger, opts ...Option) *Collector {
	c := &Collector{
		db:        database,
		config:    config,
		logger:    logger,
		sessionID: sessionID,
		now:       time.Now,
		period:    NewAccumulator(),
		totals:    NewAccumulator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sessionStart = c.now()
	c.startNewPeriod(c.sessionStart)
	return c
}

// SubmitFailed implements executor.Observer.
func (c *Collector) SubmitFailed(tag string) {
	c.mu.Lock()
	c.period.AddSubmitFailure()
	c.mu.Unlock()

	c.logger.Debug("submit failure counted", "tag", tag)
	c.maybeFlush()
}

// JobFinished implements executor.Observer.
func (c *Collector) JobFinished(rec runlog.JobRecord, waitFallback bool) {
	c.mu.Lock()
	c.period.AddJob(rec, waitFallback)
	c.mu.Unlock()

	c.maybeFlush()
}

func (c *Collector) maybeFlush() {
	if c.config.FlushThreshold <= 0 {
		return
	}

	c.mu.Lock()
	shouldFlush := c.period.Submissions >= c.config.FlushThreshold
	c.mu.Unlock()

	if shouldFlush {
		if err := c.Flush(); err != nil {
			c.logger.Error("threshold flush failed", "error", err)
		}
	}
}

// Flush closes the current period, writes it and starts a new one. An empty
// period is not written. On a write failure the period is kept so a later
// flush can retry it.
func (c *Collector) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.period.Empty() {
		return nil
	}

	end := c.now()
	row := c.period.Row(c.currentPeriod, c.sessionID, c.periodStartTime, end)

	c.logger.Debug("flushing session stats",
		"period", c.currentPeriod,
		"submissions", row.Submissions)

	if c.db != nil {
		if err := c.db.WriteSessionStats(row); err != nil {
			return fmt.Errorf("write session stats failed: %w", err)
		}
	}

	c.totals.Merge(c.period)
	c.period.Reset()
	c.startNewPeriod(end)
	return nil
}

// Stop flushes the last period and writes the textfile when configured.
func (c *Collector) Stop() error {
	var stopErr error
	c.stopOnce.Do(func() {
		if err := c.Flush(); err != nil {
			c.logger.Error("final flush failed", "error", err)
			stopErr = err
			return
		}

		totals := c.Totals()
		c.logger.Info("session stats",
			"session_id", c.sessionID,
			"submissions", totals.Submissions,
			"submit_failures", totals.SubmitFailures,
			"jobs_done", totals.JobsDone,
			"jobs_error", totals.JobsError,
			"jobs_cancelled", totals.JobsCancelled,
			"jobs_running", totals.JobsRunning,
			"jobs_timeout", totals.JobsTimeout,
			"wait_fallbacks", totals.WaitFallbacks)

		if c.config.Textfile != "" {
			if err := WriteTextfile(c.config.Textfile, totals); err != nil {
				stopErr = err
				return
			}
		}
	})
	return stopErr
}

// Totals summarises the session so far, including the open period.
func (c *Collector) Totals() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := NewAccumulator()
	all.Merge(c.totals)
	all.Merge(c.period)
	return Summary{SessionStats: *all.Row("", c.sessionID, c.sessionStart, c.now())}
}

// startNewPeriod starts a new stats period; callers hold mu or are in the
// constructor.
func (c *Collector) startNewPeriod(start time.Time) {
	c.currentPeriod = generatePeriodID()
	c.periodStartTime = start
}

// generatePeriodID generates a unique period ID
func generatePeriodID() string {
	return "period-" + uuid.NewString()
}
