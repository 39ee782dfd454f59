package db

import "database/sql"

const sessionStatsColumns = `
	stats_period_id, session_id, start_time, end_time, submissions, submit_failures,
	jobs_done, jobs_error, jobs_cancelled, jobs_running, jobs_timeout, wait_fallbacks,
	min_elapsed_seconds, max_elapsed_seconds, avg_elapsed_seconds, avg_success`

// CreateSessionStats inserts one session statistics period.
func (db *DB) CreateSessionStats(stats *SessionStats) error {
	query := `
		INSERT INTO session_stats (` + sessionStatsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		stats.StatsPeriodID,
		stats.SessionID,
		stats.StartTime.UTC(),
		stats.EndTime.UTC(),
		stats.Submissions,
		stats.SubmitFailures,
		stats.JobsDone,
		stats.JobsError,
		stats.JobsCancelled,
		stats.JobsRunning,
		stats.JobsTimeout,
		stats.WaitFallbacks,
		stats.MinElapsedSeconds,
		stats.MaxElapsedSeconds,
		stats.AvgElapsedSeconds,
		stats.AvgSuccess,
	)
	return err
}

// GetSessionStats returns every stats period recorded for sessionID,
// oldest first.
func (db *DB) GetSessionStats(sessionID string) ([]SessionStats, error) {
	query := `SELECT ` + sessionStatsColumns + `
		FROM session_stats
		WHERE session_id = ?
		ORDER BY start_time, rowid
	`

	rows, err := db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionStats
	for rows.Next() {
		s, err := scanSessionStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSessionStatsPeriod retrieves one stats period by id.
func (db *DB) GetSessionStatsPeriod(periodID string) (*SessionStats, error) {
	query := `SELECT ` + sessionStatsColumns + ` FROM session_stats WHERE stats_period_id = ?`

	s, err := scanSessionStats(db.QueryRow(query, periodID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanSessionStats(r rowScanner) (*SessionStats, error) {
	s := &SessionStats{}
	err := r.Scan(
		&s.StatsPeriodID,
		&s.SessionID,
		&s.StartTime,
		&s.EndTime,
		&s.Submissions,
		&s.SubmitFailures,
		&s.JobsDone,
		&s.JobsError,
		&s.JobsCancelled,
		&s.JobsRunning,
		&s.JobsTimeout,
		&s.WaitFallbacks,
		&s.MinElapsedSeconds,
		&s.MaxElapsedSeconds,
		&s.AvgElapsedSeconds,
		&s.AvgSuccess,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
