package stats

import (
	"fmt"

	"github.com/livinlefevreloca/qrun/internal/db"
)

// DatabaseWriter persists closed stats periods.
type DatabaseWriter interface {
	WriteSessionStats(stats *db.SessionStats) error
}

// DBAdapter adapts db.DB to implement DatabaseWriter interface
type DBAdapter struct {
	db interface {
		CreateSessionStats(stats *db.SessionStats) error
	}
}

// NewDBAdapter creates a new database adapter
func NewDBAdapter(database *db.DB) *DBAdapter {
	return &DBAdapter{db: database}
}

// WriteSessionStats implements DatabaseWriter for db.DB
func (a *DBAdapter) WriteSessionStats(stats *db.SessionStats) error {
	if err := a.db.CreateSessionStats(stats); err != nil {
		return fmt.Errorf("failed to write session stats: %w", err)
	}
	return nil
}
