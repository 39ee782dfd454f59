package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/livinlefevreloca/qrun/internal/table"
)

// Files names the flat input tables and derived output tables, all
// relative to Dir.
type Files struct {
	Dir                    string
	TimeSeries             string
	Distance               string
	SDPairs                string
	TimeSeriesThroughput   string
	TimeSeriesSatisfaction string
	DistanceMetrics        string
	SDPairsMetrics         string
}

// DefaultFiles returns the table names the plotting step reads.
func DefaultFiles(dir string) Files {
	return Files{
		Dir:                    dir,
		TimeSeries:             "timeseries.csv",
		Distance:               "distance_sweep.csv",
		SDPairs:                "sd_pairs_sweep.csv",
		TimeSeriesThroughput:   "timeseries_throughput.csv",
		TimeSeriesSatisfaction: "timeseries_satisfaction.csv",
		DistanceMetrics:        "distance_metrics.csv",
		SDPairsMetrics:         "sd_pairs_metrics.csv",
	}
}

func (f Files) path(name string) string { return filepath.Join(f.Dir, name) }

// Raw is the path of the flat table for k.
func (f Files) Raw(k table.Kind) string {
	switch k {
	case table.TimeSeries:
		return f.path(f.TimeSeries)
	case table.Distance:
		return f.path(f.Distance)
	default:
		return f.path(f.SDPairs)
	}
}

// Inputs lists the flat table paths.
func (f Files) Inputs() []string {
	return []string{f.Raw(table.TimeSeries), f.Raw(table.Distance), f.Raw(table.SDPairs)}
}

// Builder rebuilds the derived tables from the flat tables on disk.
type Builder struct {
	config Config
	files  Files
	logger *slog.Logger
}

func NewBuilder(cfg Config, files Files, logger *slog.Logger) *Builder {
	return &Builder{config: cfg, files: files, logger: logger}
}

func (b *Builder) Files() Files { return b.files }

// BuildResult reports which flat tables were turned into derived tables.
type BuildResult struct {
	Built   []table.Kind
	Missing []table.Kind
}

// Build rebuilds every derived table whose flat table exists. A missing
// flat table is skipped so a session that only collected one sweep can
// still be reduced.
func (b *Builder) Build() (BuildResult, error) {
	var res BuildResult
	for _, k := range table.Kinds {
		ok, err := b.BuildKind(k)
		if err != nil {
			return res, err
		}
		if ok {
			res.Built = append(res.Built, k)
		} else {
			res.Missing = append(res.Missing, k)
		}
	}
	b.logger.Info("metrics built", "built", res.Built, "missing", res.Missing)
	return res, nil
}

// BuildKind rebuilds the derived tables of k. It returns false when the flat
// table does not exist.
func (b *Builder) BuildKind(k table.Kind) (bool, error) {
	src := b.files.Raw(k)
	rows, err := table.ReadRawFile(src, k)
	if errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("flat table not found, skipping", "sweep", string(k), "path", src)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch k {
	case table.TimeSeries:
		ts := b.config.BuildTimeSeries(rows)
		if err := table.WriteFile(b.files.path(b.files.TimeSeriesThroughput), ts.Throughput); err != nil {
			return false, err
		}
		if err := table.WriteFile(b.files.path(b.files.TimeSeriesSatisfaction), ts.Satisfaction); err != nil {
			return false, err
		}
	case table.Distance, table.SDPairs:
		out, err := b.config.BuildSweep(k, rows)
		if err != nil {
			return false, err
		}
		dst := b.files.path(b.files.DistanceMetrics)
		if k == table.SDPairs {
			dst = b.files.path(b.files.SDPairsMetrics)
		}
		if err := table.WriteFile(dst, out); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unknown sweep kind %q", k)
	}

	b.logger.Debug("derived tables written", "sweep", string(k), "rows", len(rows))
	return true, nil
}
