package repository

import (
	"context"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/database"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
)

// JobRepository defines the persistence operations behind the report queue
type JobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	FindActive(ctx context.Context, reportID, period string) (*models.ReportJob, error)
	NextPending(ctx context.Context) (*models.ReportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string, at time.Time) (bool, error)
	ResetToPending(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error)
}

// StagedReportRepository defines the staged report store operations
type StagedReportRepository interface {
	WriteStagedReport(ctx context.Context, report *models.StagedReport) error
	GetByID(ctx context.Context, id string) (*models.StagedReport, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.StagedReport, error)
	ListUnsynced(ctx context.Context) ([]*models.StagedReport, error)
	ListSummaries(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

// MappingRepository defines read access to report mappings plus seeding
type MappingRepository interface {
	ListByReport(ctx context.Context, reportID string) ([]models.Mapping, error)
	Upsert(ctx context.Context, mappings []models.Mapping) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Job     JobRepository
	Staged  StagedReportRepository
	Mapping MappingRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Job:     NewJobRepo(db),
		Staged:  NewStagedReportRepo(db),
		Mapping: NewMappingRepo(db),
	}
}
