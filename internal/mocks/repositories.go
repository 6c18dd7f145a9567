package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
)

// Verify interface compliance
var (
	_ repository.JobRepository          = (*MockJobRepository)(nil)
	_ repository.StagedReportRepository = (*MockStagedReportRepository)(nil)
	_ repository.MappingRepository      = (*MockMappingRepository)(nil)
)

// MockJobRepository is an in-memory JobRepository. It is safe for concurrent use
// because the scheduler loop runs on its own goroutine in tests.
type MockJobRepository struct {
	mu          sync.Mutex
	Jobs        map[string]*models.ReportJob
	CreateError error
	NextError   error
	UpdateError error

	// StatusHistory records every status written per job id
	StatusHistory map[string][]models.JobStatus
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs:          make(map[string]*models.ReportJob),
		StatusHistory: make(map[string][]models.JobStatus),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	stored := *job
	m.Jobs[job.ID] = &stored
	m.StatusHistory[job.ID] = append(m.StatusHistory[job.ID], job.Status)
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyOf(m.Jobs[id]), nil
}

func (m *MockJobRepository) FindActive(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.sorted() {
		if job.ReportID == reportID && job.Period == period && job.Status.Active() {
			return m.copyOf(job), nil
		}
	}
	return nil, nil
}

func (m *MockJobRepository) NextPending(ctx context.Context) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NextError != nil {
		return nil, m.NextError
	}
	for _, job := range m.sorted() {
		if job.Status == models.JobStatusPending {
			return m.copyOf(job), nil
		}
	}
	return nil, nil
}

func (m *MockJobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return false, m.UpdateError
	}
	job, exists := m.Jobs[id]
	if !exists {
		return false, nil
	}
	job.Status = status
	job.Error = errMsg
	if (status == models.JobStatusCompleted || status == models.JobStatusFailed) && job.ProcessedAt == nil {
		stamp := at
		job.ProcessedAt = &stamp
	}
	m.StatusHistory[id] = append(m.StatusHistory[id], status)
	return true, nil
}

func (m *MockJobRepository) ResetToPending(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[id]
	if !exists || (job.Status != models.JobStatusFailed && job.Status != models.JobStatusProcessing) {
		return false, nil
	}
	job.Status = models.JobStatusPending
	job.Error = ""
	job.ProcessedAt = nil
	m.StatusHistory[id] = append(m.StatusHistory[id], models.JobStatusPending)
	return true, nil
}

func (m *MockJobRepository) List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	var out []*models.ReportJob
	for i := len(all) - 1; i >= 0; i-- {
		if status == "" || all[i].Status == status {
			out = append(out, m.copyOf(all[i]))
		}
	}
	return out, nil
}

// SetUpdateError changes UpdateError while the repository is in use
func (m *MockJobRepository) SetUpdateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateError = err
}

// History returns a copy of the statuses written for a job
func (m *MockJobRepository) History(id string) []models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JobStatus(nil), m.StatusHistory[id]...)
}

// sorted orders jobs like the postgres queue: created_at, then id
func (m *MockJobRepository) sorted() []*models.ReportJob {
	jobs := make([]*models.ReportJob, 0, len(m.Jobs))
	for _, job := range m.Jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

func (m *MockJobRepository) copyOf(job *models.ReportJob) *models.ReportJob {
	if job == nil {
		return nil
	}
	c := *job
	if job.ProcessedAt != nil {
		t := *job.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// MockStagedReportRepository is an in-memory StagedReportRepository
type MockStagedReportRepository struct {
	mu             sync.Mutex
	Reports        map[string]*models.StagedReport
	WriteError     error
	MarkSyncedErr  error
	MarkSyncedCall int
}

func NewMockStagedReportRepository() *MockStagedReportRepository {
	return &MockStagedReportRepository{
		Reports: make(map[string]*models.StagedReport),
	}
}

func (m *MockStagedReportRepository) WriteStagedReport(ctx context.Context, report *models.StagedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return m.WriteError
	}
	stored := *report
	m.Reports[report.ID] = &stored
	return nil
}

func (m *MockStagedReportRepository) GetByID(ctx context.Context, id string) (*models.StagedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.Reports[id]
	if !ok {
		return nil, nil
	}
	c := *report
	return &c, nil
}

func (m *MockStagedReportRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.StagedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.StagedReport
	for _, id := range ids {
		if report, ok := m.Reports[id]; ok {
			c := *report
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStagedReportRepository) ListUnsynced(ctx context.Context) ([]*models.StagedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.StagedReport
	for _, report := range m.Reports {
		if report.SyncedAt == nil {
			c := *report
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStagedReportRepository) ListSummaries(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StagedReportSummary
	for _, report := range m.Reports {
		if unsyncedOnly && report.SyncedAt != nil {
			continue
		}
		out = append(out, models.StagedReportSummary{
			ID:        report.ID,
			ReportID:  report.ReportID,
			Period:    report.Period,
			RowCount:  len(report.Rows),
			CreatedAt: report.CreatedAt,
			SyncedAt:  report.SyncedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStagedReportRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSyncedCall++
	if m.MarkSyncedErr != nil {
		return m.MarkSyncedErr
	}
	report, ok := m.Reports[id]
	if !ok {
		return models.ErrStagedReportNotFound
	}
	if report.SyncedAt == nil {
		stamp := at
		report.SyncedAt = &stamp
	}
	return nil
}

// MockMappingRepository is an in-memory MappingRepository
type MockMappingRepository struct {
	mu        sync.Mutex
	Mappings  map[string][]models.Mapping
	ListError error
}

func NewMockMappingRepository() *MockMappingRepository {
	return &MockMappingRepository{
		Mappings: make(map[string][]models.Mapping),
	}
}

func (m *MockMappingRepository) ListByReport(ctx context.Context, reportID string) ([]models.Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	return append([]models.Mapping(nil), m.Mappings[reportID]...), nil
}

func (m *MockMappingRepository) Upsert(ctx context.Context, mappings []models.Mapping) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mp := range mappings {
		existing := m.Mappings[mp.ReportID]
		replaced := false
		for i := range existing {
			if existing[i].SourceVariableName == mp.SourceVariableName {
				existing[i] = mp
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, mp)
		}
		m.Mappings[mp.ReportID] = existing
	}
	return len(mappings), nil
}
