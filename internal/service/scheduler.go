package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/config"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/source"
	"github.com/rs/zerolog"
)

// SchedulerStatus is a snapshot of the download loop
type SchedulerStatus struct {
	Running    bool              `json:"running"`
	Stopping   bool              `json:"stopping"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	CurrentJob *models.ReportJob `json:"current_job,omitempty"`
	Completed  int64             `json:"completed"`
	Failed     int64             `json:"failed"`
	LastError  string            `json:"last_error,omitempty"`
}

// Scheduler drains the report queue one job at a time
type Scheduler struct {
	queue      *ReportQueue
	downloader source.Downloader
	staged     repository.StagedReportRepository
	cfg        config.SchedulerConfig
	log        zerolog.Logger
	now        func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	stopping  bool
	startedAt time.Time
	current   *models.ReportJob
	completed int64
	failed    int64
	lastErr   error
	errs      chan error
}

// NewScheduler creates a stopped scheduler
func NewScheduler(queue *ReportQueue, downloader source.Downloader, staged repository.StagedReportRepository,
	cfg config.SchedulerConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		queue:      queue,
		downloader: downloader,
		staged:     staged,
		cfg:        cfg,
		log:        log.With().Str("service", "scheduler").Logger(),
		now:        time.Now,
		errs:       make(chan error, 1),
	}
}

// Start launches the loop and returns a channel closed once it has exited.
// Starting a running scheduler returns the existing channel. Starting while a
// Stop is draining waits for the old loop to exit and then launches a new one.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	for s.stopping {
		done := s.done
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.done != nil {
		return s.done
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startedAt = s.now().UTC()
	s.lastErr = nil

	s.log.Info().
		Dur("idle_backoff", s.cfg.IdleBackoff).
		Dur("job_delay", s.cfg.JobDelay).
		Msg("Scheduler started")

	go s.run(loopCtx, s.done)
	return s.done
}

// Stop signals the loop and waits for it to exit. A job in flight is finished first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	if done != nil {
		s.stopping = true
	}
	s.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	<-done
}

// Err returns the store error that ended the last loop, or nil if it was stopped
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Errors delivers the store error of every loop that exits on one.
// A value not received before the next failure is dropped; Err still holds it.
func (s *Scheduler) Errors() <-chan error {
	return s.errs
}

// Status reports whether the loop is running and what it is working on
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:   s.done != nil,
		Stopping:  s.stopping,
		Completed: s.completed,
		Failed:    s.failed,
	}
	if status.Running {
		started := s.startedAt
		status.StartedAt = &started
	}
	if s.current != nil {
		job := *s.current
		status.CurrentJob = &job
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	err := s.loop(ctx)

	s.mu.Lock()
	s.cancel()
	s.cancel = nil
	s.done = nil
	s.stopping = false
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("Scheduler stopped on store error")
		select {
		case s.errs <- err:
		default:
		}
	} else {
		s.log.Info().Msg("Scheduler stopped")
	}
	close(done)
}

// loop returns nil when ctx ends and the store error otherwise
func (s *Scheduler) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := s.queue.DequeueNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to dequeue job: %w", err)
		}
		if job == nil {
			if !s.sleep(ctx, s.cfg.IdleBackoff) {
				return nil
			}
			continue
		}

		// Stop must not interrupt a download half way through
		if err := s.process(context.WithoutCancel(ctx), job); err != nil {
			return err
		}

		if !s.sleep(ctx, s.cfg.JobDelay) {
			return nil
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// process runs one job. Job level failures are recorded on the job; the
// returned error is a store failure that leaves the job state unknown.
func (s *Scheduler) process(ctx context.Context, job *models.ReportJob) (err error) {
	log := s.log.With().
		Str("job_id", job.ID).
		Str("report_id", job.ReportID).
		Str("period", job.Period).
		Logger()

	s.setCurrent(job)
	defer s.setCurrent(nil)

	// Panic recovery keeps one bad report from taking the loop down
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Job processing panicked - recovered")
			err = s.fail(ctx, log, job, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.queue.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", job.ID, err)
	}
	job.Status = models.JobStatusProcessing
	s.setCurrent(job)

	log.Info().Msg("Processing job")
	start := time.Now()

	count, err := s.fetch(ctx, log, job)
	if err != nil {
		return s.fail(ctx, log, job, err.Error())
	}

	if err := s.queue.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", job.ID, err)
	}

	s.mu.Lock()
	s.completed++
	s.mu.Unlock()

	log.Info().
		Int("rows", count).
		Dur("duration", time.Since(start)).
		Msg("Job completed")
	return nil
}

// fetch downloads and stages the rows of a job. Rows staged by an earlier
// attempt of the same job are kept and not downloaded again.
func (s *Scheduler) fetch(ctx context.Context, log zerolog.Logger, job *models.ReportJob) (int, error) {
	existing, err := s.staged.GetByID(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up staged report: %w", err)
	}
	if existing != nil {
		log.Info().Msg("Rows already staged by an earlier attempt")
		return len(existing.Rows), nil
	}

	rows, err := s.downloader.Download(ctx, job.ReportID, job.Period)
	if err != nil {
		return 0, err
	}
	if err := s.stage(ctx, job, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Scheduler) stage(ctx context.Context, job *models.ReportJob, rows []models.Row) error {
	rng, err := models.ParsePeriod(job.Period)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []models.Row{}
	}

	report := &models.StagedReport{
		ID:        job.ID,
		ReportID:  job.ReportID,
		Period:    job.Period,
		StartDate: rng.Start,
		EndDate:   rng.End,
		Rows:      models.Rows(rows),
		CreatedAt: s.now().UTC(),
	}
	if err := s.staged.WriteStagedReport(ctx, report); err != nil {
		return fmt.Errorf("failed to stage report: %w", err)
	}
	return nil
}

func (s *Scheduler) fail(ctx context.Context, log zerolog.Logger, job *models.ReportJob, message string) error {
	log.Warn().Str("error", message).Msg("Job failed")

	if err := s.queue.MarkFailed(ctx, job.ID, message); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", job.ID, err)
	}

	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) setCurrent(job *models.ReportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job == nil {
		s.current = nil
		return
	}
	c := *job
	s.current = &c
}
