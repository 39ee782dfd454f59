package stats

import (
	"time"

	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/runlog"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

// Accumulator accumulates job outcomes for a stats period.
type Accumulator struct {
	Submissions    int
	SubmitFailures int
	WaitFallbacks  int
	ByStatus       map[runtime.Status]int

	// Samples for min/max/avg calculations
	ElapsedSamples []time.Duration
	SuccessSamples []float64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{ByStatus: make(map[runtime.Status]int)}
}

// AddSubmitFailure counts a submission that never produced a job.
func (acc *Accumulator) AddSubmitFailure() {
	acc.Submissions++
	acc.SubmitFailures++
}

// AddJob counts one logged job record.
func (acc *Accumulator) AddJob(rec runlog.JobRecord, waitFallback bool) {
	acc.Submissions++
	acc.ByStatus[rec.Status]++
	if waitFallback {
		acc.WaitFallbacks++
	}
	acc.ElapsedSamples = append(acc.ElapsedSamples, time.Duration(rec.ElapsedSeconds*float64(time.Second)))
	if rec.Done() && rec.Success != nil {
		acc.SuccessSamples = append(acc.SuccessSamples, *rec.Success)
	}
}

// Merge folds other into acc.
func (acc *Accumulator) Merge(other *Accumulator) {
	acc.Submissions += other.Submissions
	acc.SubmitFailures += other.SubmitFailures
	acc.WaitFallbacks += other.WaitFallbacks
	for s, n := range other.ByStatus {
		acc.ByStatus[s] += n
	}
	acc.ElapsedSamples = append(acc.ElapsedSamples, other.ElapsedSamples...)
	acc.SuccessSamples = append(acc.SuccessSamples, other.SuccessSamples...)
}

// Empty reports whether nothing was recorded.
func (acc *Accumulator) Empty() bool {
	return acc.Submissions == 0
}

// Reset clears the accumulator for a new period
func (acc *Accumulator) Reset() {
	acc.Submissions = 0
	acc.SubmitFailures = 0
	acc.WaitFallbacks = 0
	acc.ByStatus = make(map[runtime.Status]int)
	acc.ElapsedSamples = make([]time.Duration, 0)
	acc.SuccessSamples = make([]float64, 0)
}

// Row converts the accumulated period to its database row. Aggregates of
// an empty sample set are left NULL.
func (acc *Accumulator) Row(periodID, sessionID string, start, end time.Time) *db.SessionStats {
	row := &db.SessionStats{
		StatsPeriodID:  periodID,
		SessionID:      sessionID,
		StartTime:      start,
		EndTime:        end,
		Submissions:    acc.Submissions,
		SubmitFailures: acc.SubmitFailures,
		JobsDone:       acc.ByStatus[runtime.StatusDone],
		JobsError:      acc.ByStatus[runtime.StatusError],
		JobsCancelled:  acc.ByStatus[runtime.StatusCancelled],
		JobsRunning:    acc.ByStatus[runtime.StatusRunning],
		JobsTimeout:    acc.ByStatus[runtime.StatusTimeout],
		WaitFallbacks:  acc.WaitFallbacks,
	}

	if len(acc.ElapsedSamples) > 0 {
		minE, maxE, avgE := calculateMinMaxAvgDuration(acc.ElapsedSamples)
		row.MinElapsedSeconds = float64Ptr(minE.Seconds())
		row.MaxElapsedSeconds = float64Ptr(maxE.Seconds())
		row.AvgElapsedSeconds = float64Ptr(avgE.Seconds())
	}
	if len(acc.SuccessSamples) > 0 {
		var sum float64
		for _, s := range acc.SuccessSamples {
			sum += s
		}
		row.AvgSuccess = float64Ptr(sum / float64(len(acc.SuccessSamples)))
	}
	return row
}

func float64Ptr(f float64) *float64 {
	return &f
}

func calculateMinMaxAvgDuration(values []time.Duration) (min, max, avg time.Duration) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min = values[0]
	max = values[0]
	var sum time.Duration

	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	avg = sum / time.Duration(len(values))
	return min, max, avg
}
