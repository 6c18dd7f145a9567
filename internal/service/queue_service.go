package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportQueue is the persistent FIFO of report download jobs
type ReportQueue struct {
	jobs repository.JobRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewReportQueue creates a queue over the given job repository
func NewReportQueue(jobs repository.JobRepository, log zerolog.Logger) *ReportQueue {
	return &ReportQueue{
		jobs: jobs,
		log:  log.With().Str("service", "queue").Logger(),
		now:  time.Now,
	}
}

// SetClock replaces the clock used for created_at and processed_at stamps
func (q *ReportQueue) SetClock(now func() time.Time) {
	q.now = now
}

// Enqueue schedules a download. The period is opaque here; it is only parsed when
// the job runs. While a PENDING or PROCESSING job exists for the same report and
// period, that job is returned instead of a new one.
func (q *ReportQueue) Enqueue(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
	reportID = strings.TrimSpace(reportID)
	period = strings.TrimSpace(period)
	if reportID == "" {
		return nil, models.ErrInvalidReportID
	}
	if period == "" {
		return nil, models.ErrInvalidPeriod
	}

	existing, err := q.jobs.FindActive(ctx, reportID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active job: %w", err)
	}
	if existing != nil {
		q.log.Debug().
			Str("job_id", existing.ID).
			Str("report_id", reportID).
			Str("period", period).
			Msg("Job already queued")
		return existing, nil
	}

	job := &models.ReportJob{
		ID:        uuid.New().String(),
		ReportID:  reportID,
		Period:    period,
		Status:    models.JobStatusPending,
		CreatedAt: q.now().UTC(),
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	q.log.Info().
		Str("job_id", job.ID).
		Str("report_id", reportID).
		Str("period", period).
		Msg("Job enqueued")

	return job, nil
}

// DequeueNext returns the oldest PENDING job, or nil when the queue is empty.
// The job is not claimed; callers mark it PROCESSING themselves.
func (q *ReportQueue) DequeueNext(ctx context.Context) (*models.ReportJob, error) {
	return q.jobs.NextPending(ctx)
}

// MarkProcessing moves a job to PROCESSING
func (q *ReportQueue) MarkProcessing(ctx context.Context, id string) error {
	return q.transition(ctx, id, models.JobStatusProcessing, "")
}

// MarkCompleted moves a job to COMPLETED
func (q *ReportQueue) MarkCompleted(ctx context.Context, id string) error {
	return q.transition(ctx, id, models.JobStatusCompleted, "")
}

// MarkFailed moves a job to FAILED and records message
func (q *ReportQueue) MarkFailed(ctx context.Context, id, message string) error {
	return q.transition(ctx, id, models.JobStatusFailed, message)
}

func (q *ReportQueue) transition(ctx context.Context, id string, status models.JobStatus, message string) error {
	updated, err := q.jobs.UpdateStatus(ctx, id, status, message, q.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", id, status, err)
	}
	if !updated {
		return models.ErrJobNotFound
	}
	return nil
}

// Retry puts a FAILED or PROCESSING job back in the queue at its original position
func (q *ReportQueue) Retry(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := q.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, models.ErrJobNotFound
	}
	if job.Status != models.JobStatusFailed && job.Status != models.JobStatusProcessing {
		return nil, fmt.Errorf("%w: cannot retry a %s job", models.ErrInvalidTransition, job.Status)
	}

	if job.Status == models.JobStatusFailed {
		active, err := q.jobs.FindActive(ctx, job.ReportID, job.Period)
		if err != nil {
			return nil, err
		}
		if active != nil && active.ID != job.ID {
			return nil, fmt.Errorf("%w: job %s is already queued for this report and period",
				models.ErrInvalidTransition, active.ID)
		}
	}

	reset, err := q.jobs.ResetToPending(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}
	if !reset {
		return nil, fmt.Errorf("%w: job %s changed state", models.ErrInvalidTransition, id)
	}

	q.log.Info().Str("job_id", id).Str("previous_status", string(job.Status)).Msg("Job requeued")

	return q.jobs.GetByID(ctx, id)
}

// Get returns a job or ErrJobNotFound
func (q *ReportQueue) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := q.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, models.ErrJobNotFound
	}
	return job, nil
}

// List returns jobs newest first. An empty status lists every job.
func (q *ReportQueue) List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidStatus, status)
	}
	jobs, err := q.jobs.List(ctx, status)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*models.ReportJob{}
	}
	return jobs, nil
}
