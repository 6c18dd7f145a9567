package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/config"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mocks"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	queue      *service.ReportQueue
	jobs       *mocks.MockJobRepository
	scheduler  *service.Scheduler
	downloader *mocks.MockDownloader
	staged     *mocks.MockStagedReportRepository
}

func newSchedulerFixture() *schedulerFixture {
	queue, jobs := newTestQueue()
	downloader := mocks.NewMockDownloader()
	staged := mocks.NewMockStagedReportRepository()

	scheduler := service.NewScheduler(queue, downloader, staged, config.SchedulerConfig{
		IdleBackoff: 10 * time.Millisecond,
		JobDelay:    time.Millisecond,
	}, zerolog.Nop())

	return &schedulerFixture{
		queue:      queue,
		jobs:       jobs,
		scheduler:  scheduler,
		downloader: downloader,
		staged:     staged,
	}
}

func (f *schedulerFixture) waitForStatus(t *testing.T, id string, status models.JobStatus) *models.ReportJob {
	t.Helper()
	var job *models.ReportJob
	require.Eventually(t, func() bool {
		job, _ = f.queue.Get(context.Background(), id)
		return job != nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

func TestScheduler_ProcessesInCreationOrder(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Rows["a"] = []models.Row{{"column1": "HV01-01", "column2": "3"}}
	f.downloader.Rows["b"] = []models.Row{{"column1": "HV01-02", "column2": "4"}}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	b, _ := f.queue.Enqueue(ctx, "b", "202401")

	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	f.waitForStatus(t, a.ID, models.JobStatusCompleted)
	done := f.waitForStatus(t, b.ID, models.JobStatusCompleted)
	assert.NotNil(t, done.ProcessedAt)

	f.scheduler.Stop()
	assert.Equal(t, []string{"a/202401", "b/202401"}, f.downloader.Calls)

	summaries, err := f.staged.ListSummaries(ctx, true)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, 1, s.RowCount)
		assert.Equal(t, "202401", s.Period)
	}

	status := f.scheduler.Status()
	assert.EqualValues(t, 2, status.Completed)
	assert.Zero(t, status.Failed)
}

func TestScheduler_FailedDownloadDoesNotStopLoop(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Errors["a"] = errors.New("source returned 500")
	f.downloader.Rows["b"] = []models.Row{}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	b, _ := f.queue.Enqueue(ctx, "b", "202401")

	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	failed := f.waitForStatus(t, a.ID, models.JobStatusFailed)
	assert.Equal(t, "source returned 500", failed.Error)
	f.waitForStatus(t, b.ID, models.JobStatusCompleted)
}

func TestScheduler_StagingFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.staged.WriteError = errors.New("disk full")
	f.downloader.Rows["a"] = []models.Row{{"x": "1"}}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")

	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	failed := f.waitForStatus(t, a.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "disk full")
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Panics["a"] = "nil map"
	f.downloader.Rows["b"] = []models.Row{}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	b, _ := f.queue.Enqueue(ctx, "b", "202401")

	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	failed := f.waitForStatus(t, a.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "panic: nil map")
	f.waitForStatus(t, b.ID, models.JobStatusCompleted)
	assert.True(t, f.scheduler.Status().Running)
}

func TestScheduler_StopWaitsForInFlightJob(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Started = make(chan string, 1)
	f.downloader.Release = make(chan struct{})
	f.downloader.Rows["a"] = []models.Row{{"x": "1"}}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	f.scheduler.Start(ctx)

	select {
	case <-f.downloader.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("download never started")
	}

	stopped := make(chan struct{})
	go func() {
		f.scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the job was still processing")
	case <-time.After(50 * time.Millisecond):
	}

	require.Eventually(t, func() bool { return f.scheduler.Status().Stopping }, time.Second, time.Millisecond)
	status := f.scheduler.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.CurrentJob)
	assert.Equal(t, a.ID, status.CurrentJob.ID)

	close(f.downloader.Release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}

	// by the time the scheduler reports stopped the job is terminal
	assert.False(t, f.scheduler.Status().Running)
	assert.False(t, f.scheduler.Status().Stopping)
	job, _ := f.queue.Get(ctx, a.ID)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()

	assert.False(t, f.scheduler.Status().Running)
	f.scheduler.Stop()

	first := f.scheduler.Start(ctx)
	second := f.scheduler.Start(ctx)
	assert.Equal(t, first, second)
	assert.True(t, f.scheduler.Status().Running)

	f.scheduler.Stop()
	f.scheduler.Stop()

	select {
	case <-first:
	default:
		t.Fatal("done channel not closed after Stop")
	}
	assert.False(t, f.scheduler.Status().Running)

	// a stopped scheduler can be started again
	f.downloader.Rows["a"] = []models.Row{}
	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	third := f.scheduler.Start(ctx)
	defer f.scheduler.Stop()
	assert.NotEqual(t, first, third)
	f.waitForStatus(t, a.ID, models.JobStatusCompleted)
}

func TestScheduler_ParentContextEndsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newSchedulerFixture()

	done := f.scheduler.Start(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
	assert.False(t, f.scheduler.Status().Running)
}

func TestScheduler_IndependentInstances(t *testing.T) {
	ctx := context.Background()
	one := newSchedulerFixture()
	two := newSchedulerFixture()

	one.scheduler.Start(ctx)
	defer one.scheduler.Stop()

	assert.True(t, one.scheduler.Status().Running)
	assert.False(t, two.scheduler.Status().Running)
}

func (f *schedulerFixture) waitForDownload(t *testing.T) {
	t.Helper()
	select {
	case <-f.downloader.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("download never started")
	}
}

func TestScheduler_StartDuringStopLaunchesNewLoop(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Started = make(chan string, 2)
	f.downloader.Release = make(chan struct{})
	f.downloader.Rows["a"] = []models.Row{}
	f.downloader.Rows["b"] = []models.Row{}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	first := f.scheduler.Start(ctx)
	f.waitForDownload(t)

	go f.scheduler.Stop()
	require.Eventually(t, func() bool { return f.scheduler.Status().Stopping }, time.Second, time.Millisecond)

	restarted := make(chan (<-chan struct{}), 1)
	go func() { restarted <- f.scheduler.Start(ctx) }()

	select {
	case <-restarted:
		t.Fatal("Start returned before the stopping loop exited")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.downloader.Release)

	var second <-chan struct{}
	select {
	case second = <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned")
	}
	defer f.scheduler.Stop()

	select {
	case <-first:
	default:
		t.Fatal("old loop still running")
	}
	assert.NotEqual(t, first, second)

	status := f.scheduler.Status()
	assert.True(t, status.Running)
	assert.False(t, status.Stopping)
	f.waitForStatus(t, a.ID, models.JobStatusCompleted)

	// the new loop keeps draining the queue
	b, _ := f.queue.Enqueue(ctx, "b", "202401")
	f.waitForStatus(t, b.ID, models.JobStatusCompleted)
}

func TestScheduler_DequeueErrorEndsLoop(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.jobs.NextError = errors.New("connection refused")

	done := f.scheduler.Start(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after a store error")
	}

	assert.ErrorContains(t, f.scheduler.Err(), "connection refused")
	status := f.scheduler.Status()
	assert.False(t, status.Running)
	assert.Contains(t, status.LastError, "failed to dequeue job")

	select {
	case err := <-f.scheduler.Errors():
		assert.ErrorContains(t, err, "connection refused")
	default:
		t.Fatal("store error was not delivered")
	}

	// a clean restart clears the error
	f.jobs.NextError = nil
	f.scheduler.Start(ctx)
	assert.Empty(t, f.scheduler.Status().LastError)
	f.scheduler.Stop()
	assert.NoError(t, f.scheduler.Err())
}

func TestScheduler_CompletionStoreErrorKeepsStagedRows(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Started = make(chan string, 2)
	f.downloader.Release = make(chan struct{})
	f.downloader.Rows["a"] = []models.Row{{"column1": "HV01-01", "column2": "7"}}

	a, _ := f.queue.Enqueue(ctx, "a", "202401")
	done := f.scheduler.Start(ctx)
	f.waitForDownload(t)

	f.jobs.SetUpdateError(errors.New("connection reset"))
	close(f.downloader.Release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after a store error")
	}
	assert.ErrorContains(t, f.scheduler.Err(), "completed")

	f.jobs.SetUpdateError(nil)
	stuck, _ := f.queue.Get(ctx, a.ID)
	assert.Equal(t, models.JobStatusProcessing, stuck.Status)
	staged, _ := f.staged.GetByID(ctx, a.ID)
	require.NotNil(t, staged)

	// the retried job reuses the staged rows instead of downloading again
	_, err := f.queue.Retry(ctx, a.ID)
	require.NoError(t, err)
	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	f.waitForStatus(t, a.ID, models.JobStatusCompleted)
	assert.Equal(t, 1, f.downloader.CallCount())
	summaries, _ := f.staged.ListSummaries(ctx, false)
	assert.Len(t, summaries, 1)
}

func TestScheduler_UnknownPeriodFailsOnlyThatJob(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture()
	f.downloader.Rows["a"] = []models.Row{}
	f.downloader.Rows["b"] = []models.Row{}

	a, err := f.queue.Enqueue(ctx, "a", "last month")
	require.NoError(t, err)
	b, _ := f.queue.Enqueue(ctx, "b", "2024Q1")

	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()

	failed := f.waitForStatus(t, a.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "invalid reporting period")
	f.waitForStatus(t, b.ID, models.JobStatusCompleted)

	staged, _ := f.staged.GetByID(ctx, b.ID)
	require.NotNil(t, staged)
	assert.Equal(t, "2024-03-31", staged.EndDate.Format("2006-01-02"))
}
