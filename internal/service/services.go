package service

import (
	"context"
	"io"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/config"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mapping"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/source"
	"github.com/rs/zerolog"
)

// JobService defines the operator operations on the report queue
type JobService interface {
	Enqueue(ctx context.Context, reportID, period string) (*models.ReportJob, error)
	Get(ctx context.Context, id string) (*models.ReportJob, error)
	List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error)
	Retry(ctx context.Context, id string) (*models.ReportJob, error)
}

// SchedulerService defines control of the download loop
type SchedulerService interface {
	Start(ctx context.Context) <-chan struct{}
	Stop()
	Status() SchedulerStatus
	Errors() <-chan error
}

// SyncService defines pushes to the aggregate data service
type SyncService interface {
	SyncSelected(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error)
	SyncPending(ctx context.Context) (*models.SyncResult, error)
}

// CollectService defines bulk enqueueing of configured reports
type CollectService interface {
	CollectAll(ctx context.Context) ([]*models.ReportJob, error)
}

// ExportService defines staged report listing and file rendering
type ExportService interface {
	List(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error)
	Get(ctx context.Context, id string) (*models.StagedReport, error)
	Write(ctx context.Context, report *models.StagedReport, format string, w io.Writer) error
}

var (
	_ JobService       = (*ReportQueue)(nil)
	_ SchedulerService = (*Scheduler)(nil)
	_ SyncService      = (*SyncEngine)(nil)
	_ CollectService   = (*BulkCollector)(nil)
	_ ExportService    = (*StagedExporter)(nil)
)

// Services holds all service interfaces
type Services struct {
	Job       JobService
	Scheduler SchedulerService
	Sync      SyncService
	Collect   CollectService
	Export    ExportService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, downloader source.Downloader, client AggregateClient,
	cfg *config.Config, log zerolog.Logger) *Services {
	queue := NewReportQueue(repos.Job, log)
	scheduler := NewScheduler(queue, downloader, repos.Staged, cfg.Scheduler, log)

	syncEngine := NewSyncEngine(
		repos.Staged,
		repos.Mapping,
		mapping.NewFirstMatchResolver(cfg.Mapping.ResultColumn),
		client,
		SyncOptions{
			DataSetID: cfg.DHIS2.DataSetID,
			OrgUnitID: cfg.DHIS2.OrgUnitID,
			DefaultCredentials: models.Credentials{
				Username: cfg.DHIS2.Username,
				Password: cfg.DHIS2.Password,
			},
		},
		log,
	)

	return &Services{
		Job:       queue,
		Scheduler: scheduler,
		Sync:      syncEngine,
		Collect:   NewBulkCollector(queue, cfg.Source.ReportIDs, log),
		Export:    NewStagedExporter(repos.Staged, log),
	}
}
