package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/database"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/google/uuid"
)

const jobColumns = `id, report_id, period, status, error, created_at, processed_at`

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.ReportJob) error {
	query := `
		INSERT INTO report_jobs (id, report_id, period, status, error, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.ReportID, job.Period, job.Status, nullString(job.Error),
		job.CreatedAt, job.ProcessedAt,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT ` + jobColumns + ` FROM report_jobs WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindActive returns the PENDING or PROCESSING job for a report and period, if any
func (r *jobRepo) FindActive(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM report_jobs
		WHERE report_id = $1 AND period = $2 AND status IN ($3, $4)
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query,
		reportID, period, models.JobStatusPending, models.JobStatusProcessing,
	))
}

// NextPending returns the oldest pending job. No row lock is taken.
func (r *jobRepo) NextPending(ctx context.Context) (*models.ReportJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM report_jobs
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, models.JobStatusPending))
}

// UpdateStatus moves a job to status. Terminal statuses stamp processed_at once.
func (r *jobRepo) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	query := `
		UPDATE report_jobs SET
			status = $1::text,
			error = $2,
			processed_at = CASE
				WHEN $1::text IN ($3::text, $4::text) THEN COALESCE(processed_at, $5)
				ELSE processed_at
			END
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		status, nullString(errMsg), models.JobStatusCompleted, models.JobStatusFailed, at, id,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ResetToPending puts a FAILED or PROCESSING job back in the queue, keeping created_at
func (r *jobRepo) ResetToPending(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	query := `
		UPDATE report_jobs SET status = $1, error = NULL, processed_at = NULL
		WHERE id = $2 AND status IN ($3, $4)
	`
	result, err := r.db.ExecContext(ctx, query,
		models.JobStatusPending, id, models.JobStatusFailed, models.JobStatusProcessing,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// List returns jobs newest first, optionally filtered by status
func (r *jobRepo) List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM report_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ReportJob
	for rows.Next() {
		job, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *jobRepo) scanOne(row rowScanner) (*models.ReportJob, error) {
	var job models.ReportJob
	var errMsg sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.ReportID, &job.Period, &job.Status, &errMsg,
		&job.CreatedAt, &processedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.Error = errMsg.String
	if processedAt.Valid {
		job.ProcessedAt = &processedAt.Time
	}

	return &job, nil
}

// validID reports whether id can be compared against a UUID column
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
