package db

import (
	"database/sql"
	"strings"
)

const jobRecordColumns = `
	id, session_id, tag, job_id, backend, status, shots, elapsed_seconds,
	submitted_at, quasi_distribution, success`

// InsertJobRecord indexes rec. A record whose (session_id, job_id) is
// already present is left untouched and inserted reports false, so
// reindexing the same log twice is harmless.
func (db *DB) InsertJobRecord(rec *JobRecord) (inserted bool, err error) {
	return insertJobRecord(db.DB, rec)
}

// InsertJobRecord is the transactional variant used by bulk reindexing.
func (tx *Tx) InsertJobRecord(rec *JobRecord) (inserted bool, err error) {
	return insertJobRecord(tx.Tx, rec)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertJobRecord(e execer, rec *JobRecord) (bool, error) {
	query := `
		INSERT INTO job_records (
			session_id, tag, job_id, backend, status, shots, elapsed_seconds,
			submitted_at, quasi_distribution, success
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, job_id) DO NOTHING
	`

	res, err := e.Exec(query,
		rec.SessionID,
		rec.Tag,
		rec.JobID,
		rec.Backend,
		rec.Status,
		rec.Shots,
		rec.ElapsedSeconds,
		rec.SubmittedAt.UTC(),
		rec.QuasiDistribution,
		rec.Success,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return true, nil
}

// GetJobRecord retrieves one record by session and job id.
func (db *DB) GetJobRecord(sessionID, jobID string) (*JobRecord, error) {
	query := `SELECT ` + jobRecordColumns + `
		FROM job_records
		WHERE session_id = ? AND job_id = ?
	`

	rec, err := scanJobRecord(db.QueryRow(query, sessionID, jobID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListJobRecords returns records matching filter in insertion order.
func (db *DB) ListJobRecords(filter JobRecordFilter) ([]JobRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, strings.ToUpper(filter.Status))
	}
	if filter.TagPrefix != "" {
		where = append(where, "substr(tag, 1, ?) = ?")
		args = append(args, len(filter.TagPrefix), filter.TagPrefix)
	}

	query := `SELECT ` + jobRecordColumns + ` FROM job_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJobRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountJobRecordsByStatus returns the number of records per status, limited
// to sessionID unless it is empty.
func (db *DB) CountJobRecordsByStatus(sessionID string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM job_records`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY status`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRecord(s rowScanner) (*JobRecord, error) {
	rec := &JobRecord{}
	err := s.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Tag,
		&rec.JobID,
		&rec.Backend,
		&rec.Status,
		&rec.Shots,
		&rec.ElapsedSeconds,
		&rec.SubmittedAt,
		&rec.QuasiDistribution,
		&rec.Success,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
