package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/livinlefevreloca/qrun/internal/db"
)

// IndexStore is the subset of the run index used by IndexLogger.
type IndexStore interface {
	InsertJobRecord(rec *db.JobRecord) (bool, error)
}

// IndexLogger writes records into the sqlite run index.
type IndexLogger struct {
	store IndexStore
}

func NewIndexLogger(store IndexStore) *IndexLogger {
	return &IndexLogger{store: store}
}

func (l *IndexLogger) Append(rec JobRecord) error {
	row, err := ToRow(rec)
	if err != nil {
		return err
	}
	if _, err := l.store.InsertJobRecord(row); err != nil {
		return fmt.Errorf("index job record %s: %w", rec.JobID, err)
	}
	return nil
}

// ToRow converts a record to its run index row.
func ToRow(rec JobRecord) (*db.JobRecord, error) {
	row := &db.JobRecord{
		SessionID:      rec.SessionID,
		Tag:            rec.Tag,
		JobID:          rec.JobID,
		Backend:        rec.Backend,
		Status:         rec.Status.String(),
		Shots:          rec.Shots,
		ElapsedSeconds: rec.ElapsedSeconds,
		SubmittedAt:    rec.SubmittedAt,
	}
	if rec.Done() {
		dist := rec.QuasiDistribution
		if dist == nil {
			dist = map[string]float64{}
		}
		data, err := json.Marshal(dist)
		if err != nil {
			return nil, fmt.Errorf("encode distribution of %s: %w", rec.JobID, err)
		}
		encoded := string(data)
		row.QuasiDistribution = &encoded

		success := 0.0
		if rec.Success != nil {
			success = *rec.Success
		}
		row.Success = &success
	}
	return row, nil
}

// Fanout writes every record to a primary logger and then to any
// secondary loggers. Only a primary failure is returned; secondary failures
// are logged and swallowed so the index can never block the durable log.
type Fanout struct {
	primary   Logger
	secondary []Logger
	logger    *slog.Logger
}

func NewFanout(primary Logger, logger *slog.Logger, secondary ...Logger) *Fanout {
	return &Fanout{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fanout) Append(rec JobRecord) error {
	if err := f.primary.Append(rec); err != nil {
		return err
	}

	var errs []error
	for _, s := range f.secondary {
		if err := s.Append(rec); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		f.logger.Warn("secondary run log sink failed",
			"tag", rec.Tag,
			"job_id", rec.JobID,
			"error", err)
	}
	return nil
}

// ReindexResult summarizes a Reindex call.
type ReindexResult struct {
	Read     int
	Inserted int
	Skipped  int
}

// Batch is a transactional view of the run index.
type Batch interface {
	InsertJobRecord(rec *db.JobRecord) (bool, error)
}

// Reindexer runs fn inside one transaction.
type Reindexer interface {
	WithTransaction(fn func(*db.Tx) error) error
}

// Reindex loads every record into the index in one transaction. Records
// already indexed are skipped.
func Reindex(target Reindexer, records []JobRecord) (ReindexResult, error) {
	res := ReindexResult{Read: len(records)}
	err := target.WithTransaction(func(tx *db.Tx) error {
		return reindexInto(tx, records, &res)
	})
	if err != nil {
		return ReindexResult{Read: len(records)}, err
	}
	return res, nil
}

func reindexInto(b Batch, records []JobRecord, res *ReindexResult) error {
	for _, rec := range records {
		row, err := ToRow(rec)
		if err != nil {
			return err
		}
		inserted, err := b.InsertJobRecord(row)
		if err != nil {
			return fmt.Errorf("index job record %s: %w", rec.JobID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return nil
}
