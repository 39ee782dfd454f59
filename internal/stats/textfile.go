package stats

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/livinlefevreloca/qrun/internal/db"
	"github.com/livinlefevreloca/qrun/internal/runtime"
)

// Summary holds the session totals.
type Summary struct {
	db.SessionStats
}

// MetricFamilies renders the summary as Prometheus metric families. Every
// sample carries the session id.
func (s Summary) MetricFamilies() []*dto.MetricFamily {
	session := labelPair("session_id", s.SessionID)

	counter := func(name, help string, v int) *dto.MetricFamily {
		return &dto.MetricFamily{
			Name: ptr(name),
			Help: ptr(help),
			Type: dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{
				Label:   []*dto.LabelPair{session},
				Counter: &dto.Counter{Value: ptr(float64(v))},
			}},
		}
	}

	jobs := &dto.MetricFamily{
		Name: ptr("qrun_jobs_total"),
		Help: ptr("Logged jobs by final status."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, st := range []struct {
		status runtime.Status
		n      int
	}{
		{runtime.StatusDone, s.JobsDone},
		{runtime.StatusError, s.JobsError},
		{runtime.StatusCancelled, s.JobsCancelled},
		{runtime.StatusRunning, s.JobsRunning},
		{runtime.StatusTimeout, s.JobsTimeout},
	} {
		jobs.Metric = append(jobs.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{session, labelPair("status", string(st.status))},
			Counter: &dto.Counter{Value: ptr(float64(st.n))},
		})
	}

	families := []*dto.MetricFamily{
		counter("qrun_submissions_total", "Job submissions attempted.", s.Submissions),
		counter("qrun_submit_failures_total", "Submissions that failed before a job existed.", s.SubmitFailures),
		counter("qrun_wait_fallbacks_total", "Jobs settled by polling instead of waiting.", s.WaitFallbacks),
		jobs,
	}

	if s.MinElapsedSeconds != nil {
		elapsed := &dto.MetricFamily{
			Name: ptr("qrun_job_elapsed_seconds"),
			Help: ptr("Job wall time from submission to final state."),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, agg := range []struct {
			name string
			v    float64
		}{
			{"min", *s.MinElapsedSeconds},
			{"max", *s.MaxElapsedSeconds},
			{"avg", *s.AvgElapsedSeconds},
		} {
			elapsed.Metric = append(elapsed.Metric, &dto.Metric{
				Label: []*dto.LabelPair{session, labelPair("aggregate", agg.name)},
				Gauge: &dto.Gauge{Value: ptr(agg.v)},
			})
		}
		families = append(families, elapsed)
	}

	if s.AvgSuccess != nil {
		families = append(families, &dto.MetricFamily{
			Name: ptr("qrun_success_avg"),
			Help: ptr("Mean success of DONE jobs."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Label: []*dto.LabelPair{session},
				Gauge: &dto.Gauge{Value: s.AvgSuccess},
			}},
		})
	}

	return families
}

// WriteTextfile replaces path with the text exposition of s.
func WriteTextfile(path string, s Summary) error {
	var buf bytes.Buffer
	for _, mf := range s.MetricFamilies() {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp textfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod textfile: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write textfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close textfile: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func labelPair(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
