package models

import (
	"time"
)

// JobStatus represents the status of a report download job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Valid reports whether s is one of the known job statuses
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Active reports whether a job in this status still blocks a duplicate enqueue
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// ReportJob is one scheduled download of a source report for a reporting period
type ReportJob struct {
	ID          string     `json:"job_id" db:"id"`
	ReportID    string     `json:"report_id" db:"report_id"`
	Period      string     `json:"period" db:"period"`
	Status      JobStatus  `json:"status" db:"status"`
	Error       string     `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// EnqueueRequest is the API request to schedule a report download
type EnqueueRequest struct {
	ReportID string `json:"report_id" binding:"required"`
	Period   string `json:"period" binding:"required"`
}
