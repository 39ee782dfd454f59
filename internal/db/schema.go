package db

import "time"

// JobRecord is one indexed row of the run log.
type JobRecord struct {
	ID                int64     `json:"id"`
	SessionID         string    `json:"session_id"`
	Tag               string    `json:"tag"`
	JobID             string    `json:"job_id"`
	Backend           string    `json:"backend"`
	Status            string    `json:"status"`
	Shots             int       `json:"shots"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
	SubmittedAt       time.Time `json:"submitted_at"`
	QuasiDistribution *string   `json:"quasi_distribution,omitempty"` // JSON object, only for DONE records
	Success           *float64  `json:"success,omitempty"`
}

// JobRecordFilter narrows ListJobRecords. Zero values match everything.
type JobRecordFilter struct {
	SessionID string
	Status    string
	TagPrefix string
	Limit     int
}

// SessionStats is the execution summary of one collection session.
type SessionStats struct {
	StatsPeriodID     string
	SessionID         string
	StartTime         time.Time
	EndTime           time.Time
	Submissions       int
	SubmitFailures    int
	JobsDone          int
	JobsError         int
	JobsCancelled     int
	JobsRunning       int
	JobsTimeout       int
	WaitFallbacks     int
	MinElapsedSeconds *float64
	MaxElapsedSeconds *float64
	AvgElapsedSeconds *float64
	AvgSuccess        *float64
}
