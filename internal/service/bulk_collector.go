package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/rs/zerolog"
)

// BulkCollector enqueues every configured report for the current reporting period
type BulkCollector struct {
	queue     *ReportQueue
	reportIDs []string
	log       zerolog.Logger
	now       func() time.Time
}

// NewBulkCollector creates a collector for reportIDs
func NewBulkCollector(queue *ReportQueue, reportIDs []string, log zerolog.Logger) *BulkCollector {
	return &BulkCollector{
		queue:     queue,
		reportIDs: reportIDs,
		log:       log.With().Str("service", "collector").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the clock used to pick the reporting period
func (c *BulkCollector) SetClock(now func() time.Time) {
	c.now = now
}

// CollectAll enqueues each report for the previous calendar month. Reports already
// queued for that month come back as their existing job.
func (c *BulkCollector) CollectAll(ctx context.Context) ([]*models.ReportJob, error) {
	period := models.PreviousMonthPeriod(c.now())

	jobs := make([]*models.ReportJob, 0, len(c.reportIDs))
	var errs []error
	for _, reportID := range c.reportIDs {
		job, err := c.queue.Enqueue(ctx, reportID, period)
		if err != nil {
			errs = append(errs, fmt.Errorf("report %s: %w", reportID, err))
			continue
		}
		jobs = append(jobs, job)
	}

	c.log.Info().
		Str("period", period).
		Int("reports", len(c.reportIDs)).
		Int("queued", len(jobs)).
		Int("errors", len(errs)).
		Msg("Bulk collection queued")

	return jobs, errors.Join(errs...)
}
