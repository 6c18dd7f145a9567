package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectAll_EnqueuesPreviousMonth(t *testing.T) {
	ctx := context.Background()
	queue, repo := newTestQueue()

	collector := service.NewBulkCollector(queue, []string{"moh-731", "moh-711"}, zerolog.Nop())
	collector.SetClock(func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) })

	jobs, err := collector.CollectAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, "202312", job.Period)
		assert.Equal(t, models.JobStatusPending, job.Status)
	}

	// hourly reruns reuse the queued jobs
	again, err := collector.CollectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobs[0].ID, again[0].ID)
	assert.Equal(t, jobs[1].ID, again[1].ID)
	assert.Len(t, repo.Jobs, 2)
}

func TestCollectAll_ReportsPerReportErrors(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue()

	collector := service.NewBulkCollector(queue, []string{"moh-731", " "}, zerolog.Nop())

	jobs, err := collector.CollectAll(ctx)
	assert.Len(t, jobs, 1)
	assert.ErrorIs(t, err, models.ErrInvalidReportID)
}
