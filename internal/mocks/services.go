package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/dhis2"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/source"
)

// Verify interface compliance
var (
	_ source.Downloader        = (*MockDownloader)(nil)
	_ service.AggregateClient  = (*MockAggregateClient)(nil)
	_ service.JobService       = (*MockJobService)(nil)
	_ service.SchedulerService = (*MockSchedulerService)(nil)
	_ service.SyncService      = (*MockSyncService)(nil)
	_ service.CollectService   = (*MockCollectService)(nil)
	_ service.ExportService    = (*MockExportService)(nil)
)

// MockDownloader returns canned rows per report id
type MockDownloader struct {
	mu     sync.Mutex
	Rows   map[string][]models.Row
	Errors map[string]error
	Panics map[string]string
	Calls  []string

	// Started receives the report id when a download begins, if set
	Started chan string
	// Release blocks every download until it is closed, if set
	Release chan struct{}
}

func NewMockDownloader() *MockDownloader {
	return &MockDownloader{
		Rows:   make(map[string][]models.Row),
		Errors: make(map[string]error),
		Panics: make(map[string]string),
	}
}

func (m *MockDownloader) Download(ctx context.Context, reportID, period string) ([]models.Row, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, reportID+"/"+period)
	rows, err, panicMsg := m.Rows[reportID], m.Errors[reportID], m.Panics[reportID]
	started, release := m.Started, m.Release
	m.mu.Unlock()

	if started != nil {
		started <- reportID
	}
	if release != nil {
		<-release
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CallCount returns how many downloads were requested
func (m *MockDownloader) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockAggregateClient records payloads and answers through PostFunc
type MockAggregateClient struct {
	mu       sync.Mutex
	PostFunc func(ctx context.Context, creds models.Credentials, payload *models.DataValueSet) (*dhis2.Response, error)
	Payloads []*models.DataValueSet
	Creds    []models.Credentials
}

func NewMockAggregateClient() *MockAggregateClient {
	return &MockAggregateClient{}
}

func (m *MockAggregateClient) PostDataValueSet(ctx context.Context, creds models.Credentials, payload *models.DataValueSet) (*dhis2.Response, error) {
	m.mu.Lock()
	m.Payloads = append(m.Payloads, payload)
	m.Creds = append(m.Creds, creds)
	fn := m.PostFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, creds, payload)
	}
	return &dhis2.Response{StatusCode: 200, Body: []byte(`{"status":"OK"}`)}, nil
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	EnqueueFunc func(ctx context.Context, reportID, period string) (*models.ReportJob, error)
	GetFunc     func(ctx context.Context, id string) (*models.ReportJob, error)
	ListFunc    func(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error)
	RetryFunc   func(ctx context.Context, id string) (*models.ReportJob, error)
}

func NewMockJobService() *MockJobService {
	return &MockJobService{}
}

func (m *MockJobService) Enqueue(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, reportID, period)
	}
	return &models.ReportJob{
		ID:       "test-job-id",
		ReportID: reportID,
		Period:   period,
		Status:   models.JobStatusPending,
	}, nil
}

func (m *MockJobService) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrJobNotFound
}

func (m *MockJobService) List(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, status)
	}
	return []*models.ReportJob{}, nil
}

func (m *MockJobService) Retry(ctx context.Context, id string) (*models.ReportJob, error) {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, id)
	}
	return nil, models.ErrJobNotFound
}

// MockSchedulerService tracks start and stop calls
type MockSchedulerService struct {
	mu         sync.Mutex
	Running    bool
	StartCalls int
	StopCalls  int
	LastError  string
	done       chan struct{}
	errs       chan error
}

func NewMockSchedulerService() *MockSchedulerService {
	return &MockSchedulerService{errs: make(chan error, 1)}
}

func (m *MockSchedulerService) Start(ctx context.Context) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
	if !m.Running {
		m.Running = true
		m.done = make(chan struct{})
	}
	return m.done
}

func (m *MockSchedulerService) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	if m.Running {
		m.Running = false
		close(m.done)
	}
}

func (m *MockSchedulerService) Status() service.SchedulerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.SchedulerStatus{Running: m.Running, LastError: m.LastError}
}

func (m *MockSchedulerService) Errors() <-chan error {
	return m.errs
}

// Fail stops the mock loop as if it hit a store error
func (m *MockSchedulerService) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err.Error()
	if m.Running {
		m.Running = false
		close(m.done)
	}
	select {
	case m.errs <- err:
	default:
	}
}

// MockSyncService is a mock implementation of SyncService
type MockSyncService struct {
	SyncSelectedFunc func(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error)
	SyncPendingFunc  func(ctx context.Context) (*models.SyncResult, error)
	PendingCalls     int
	mu               sync.Mutex
}

func NewMockSyncService() *MockSyncService {
	return &MockSyncService{}
}

func (m *MockSyncService) SyncSelected(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error) {
	if m.SyncSelectedFunc != nil {
		return m.SyncSelectedFunc(ctx, period, creds, ids)
	}
	return &models.SyncResult{}, nil
}

func (m *MockSyncService) SyncPending(ctx context.Context) (*models.SyncResult, error) {
	m.mu.Lock()
	m.PendingCalls++
	m.mu.Unlock()
	if m.SyncPendingFunc != nil {
		return m.SyncPendingFunc(ctx)
	}
	return &models.SyncResult{}, nil
}

// Pending returns the number of SyncPending calls
func (m *MockSyncService) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PendingCalls
}

// MockCollectService is a mock implementation of CollectService
type MockCollectService struct {
	CollectFunc  func(ctx context.Context) ([]*models.ReportJob, error)
	CollectCalls int
	mu           sync.Mutex
}

func NewMockCollectService() *MockCollectService {
	return &MockCollectService{}
}

func (m *MockCollectService) CollectAll(ctx context.Context) ([]*models.ReportJob, error) {
	m.mu.Lock()
	m.CollectCalls++
	m.mu.Unlock()
	if m.CollectFunc != nil {
		return m.CollectFunc(ctx)
	}
	return []*models.ReportJob{}, nil
}

// Collects returns the number of CollectAll calls
func (m *MockCollectService) Collects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CollectCalls
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	Summaries []models.StagedReportSummary
	Reports   map[string]*models.StagedReport
	WriteFunc func(ctx context.Context, report *models.StagedReport, format string, w io.Writer) error
}

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Summaries: []models.StagedReportSummary{},
		Reports:   make(map[string]*models.StagedReport),
	}
}

func (m *MockExportService) List(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error) {
	var out []models.StagedReportSummary
	for _, s := range m.Summaries {
		if unsyncedOnly && s.SyncedAt != nil {
			continue
		}
		out = append(out, s)
	}
	if out == nil {
		out = []models.StagedReportSummary{}
	}
	return out, nil
}

func (m *MockExportService) Get(ctx context.Context, id string) (*models.StagedReport, error) {
	report, ok := m.Reports[id]
	if !ok {
		return nil, models.ErrStagedReportNotFound
	}
	return report, nil
}

func (m *MockExportService) Write(ctx context.Context, report *models.StagedReport, format string, w io.Writer) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report, format, w)
	}
	if format != "csv" && format != "xlsx" {
		return models.ErrUnsupportedFormat
	}
	_, err := io.WriteString(w, "report,"+report.ID+"\n")
	return err
}
