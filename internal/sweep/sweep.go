// Package sweep enumerates the experiment matrix and drives one job per
// point through the execution engine, accumulating the flat table rows.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/qrun/internal/backend"
	"github.com/livinlefevreloca/qrun/internal/circuit"
	"github.com/livinlefevreloca/qrun/internal/executor"
	"github.com/livinlefevreloca/qrun/internal/runlog"
	"github.com/livinlefevreloca/qrun/internal/table"
)

// Executor runs a single job to a durable record.
type Executor interface {
	SubmitAndAwait(ctx context.Context, req executor.Request) (runlog.JobRecord, error)
}

// Point is one coordinate of the experiment matrix.
type Point struct {
	Kind      table.Kind
	Scenario  int
	Algorithm Algorithm
	Axis      float64
}

// Orchestrator runs the sweeps of one collection session. Jobs are strictly
// sequential: each point is logged before the next one is submitted.
type Orchestrator struct {
	exec     Executor
	backend  backend.Descriptor
	execCfg  executor.Config
	config   Config
	logger   *slog.Logger
	now      func() time.Time
	seedBase int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNow replaces the clock used to derive the session seed base.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator. The seed base is fixed for the
// lifetime of the orchestrator.
func NewOrchestrator(exec Executor, be backend.Descriptor, execCfg executor.Config, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:    exec,
		backend: be,
		execCfg: execCfg,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.seedBase = cfg.ResolveSeedBase(o.now())
	return o
}

func (o *Orchestrator) SeedBase() int64 { return o.seedBase }

// Seed is the transpiler seed of time step t in scenario.
func (o *Orchestrator) Seed(scenario, t int) int64 {
	return o.seedBase + 97*int64(scenario) + int64(t)
}

// Points enumerates the experiment matrix of kind in submission order.
func (o *Orchestrator) Points(kind table.Kind) []Point {
	var axis []float64
	switch kind {
	case table.TimeSeries:
		for t := 0; t < o.config.TimeSteps; t++ {
			axis = append(axis, float64(t))
		}
	case table.Distance:
		axis = o.config.DistanceRatios
	case table.SDPairs:
		for _, n := range o.config.SDPairs {
			axis = append(axis, float64(n))
		}
	}

	points := make([]Point, 0, len(o.config.Scenarios)*len(o.config.Algorithms)*len(axis))
	for _, sc := range o.config.Scenarios {
		for _, algo := range o.config.Algorithms {
			for _, v := range axis {
				points = append(points, Point{Kind: kind, Scenario: sc, Algorithm: algo, Axis: v})
			}
		}
	}
	return points
}

// Tag names the job of p in the run log.
func Tag(p Point) string {
	switch p.Kind {
	case table.TimeSeries:
		return fmt.Sprintf("ts_%s(%d)_%03d", p.Algorithm.Name, p.Scenario, int(p.Axis))
	case table.Distance:
		return fmt.Sprintf("dist_%s(%d)_%s", p.Algorithm.Name, p.Scenario, table.FormatFloat(p.Axis))
	default:
		return fmt.Sprintf("sd_%s(%d)_%d", p.Algorithm.Name, p.Scenario, int(p.Axis))
	}
}

// Request builds the job request for p.
func (o *Orchestrator) Request(p Point) (executor.Request, error) {
	req := executor.Request{
		Backend:           o.backend,
		Shots:             o.execCfg.Shots,
		OptimizationLevel: p.Algorithm.OptimizationLevel,
		Tag:               Tag(p),
		PollInterval:      o.execCfg.PollInterval,
		Timeout:           o.execCfg.Timeout,
	}

	switch p.Kind {
	case table.TimeSeries:
		seed := o.Seed(p.Scenario, int(p.Axis))
		req.Circuit = circuit.Bell()
		req.Seed = &seed
	case table.Distance:
		depth, ok := o.config.DepthFor(p.Axis)
		if !ok {
			return req, fmt.Errorf("distance ratio %v has no depth entry", p.Axis)
		}
		req.Circuit = circuit.DepthLadder(depth + 1)
	case table.SDPairs:
		req.Circuit = circuit.RepeatedBell(max(1, int(p.Axis)/10))
	default:
		return req, fmt.Errorf("unknown sweep kind %q", p.Kind)
	}
	return req, nil
}

// Run executes every point of kind. On a submission or run log failure the
// rows collected so far are returned together with the error. A point whose
// job was logged always has a row, even when the run log append failed.
func (o *Orchestrator) Run(ctx context.Context, kind table.Kind) ([]table.RawRow, error) {
	points := o.Points(kind)
	logger := o.logger.With("sweep", string(kind))
	logger.Info("sweep started", "points", len(points), "backend", o.backend.Name)

	start := o.now()
	rows := make([]table.RawRow, 0, len(points))
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return rows, fmt.Errorf("sweep %s interrupted: %w", kind, err)
		}

		req, err := o.Request(p)
		if err != nil {
			return rows, err
		}

		rec, err := o.exec.SubmitAndAwait(ctx, req)
		if !errors.Is(err, executor.ErrSubmit) {
			rows = append(rows, rowFor(p, req, rec))
		}
		if err != nil {
			logger.Error("sweep aborted",
				"tag", req.Tag,
				"completed", len(rows),
				"remaining", len(points)-i,
				"error", err)
			return rows, fmt.Errorf("sweep %s at %s: %w", kind, req.Tag, err)
		}
	}

	logger.Info("sweep finished", "rows", len(rows), "duration", o.now().Sub(start))
	return rows, nil
}

func rowFor(p Point, req executor.Request, rec runlog.JobRecord) table.RawRow {
	row := table.RawRow{
		Scenario: p.Scenario,
		Algo:     p.Algorithm.Name,
		Axis:     p.Axis,
		Shots:    req.Shots,
	}
	if rec.Done() && rec.Success != nil {
		s := *rec.Success
		row.Success = &s
	}
	return row
}
