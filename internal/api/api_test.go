package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/api"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mocks"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMocks struct {
	job       *mocks.MockJobService
	scheduler *mocks.MockSchedulerService
	sync      *mocks.MockSyncService
	collect   *mocks.MockCollectService
	export    *mocks.MockExportService
}

type failingDB struct{}

func (failingDB) HealthCheck(ctx context.Context) error { return errors.New("connection refused") }

func setupTestRouter(db api.HealthChecker) (*gin.Engine, *testMocks) {
	gin.SetMode(gin.TestMode)

	m := &testMocks{
		job:       mocks.NewMockJobService(),
		scheduler: mocks.NewMockSchedulerService(),
		sync:      mocks.NewMockSyncService(),
		collect:   mocks.NewMockCollectService(),
		export:    mocks.NewMockExportService(),
	}

	services := &service.Services{
		Job:       m.job,
		Scheduler: m.scheduler,
		Sync:      m.sync,
		Collect:   m.collect,
		Export:    m.export,
	}

	router := api.NewRouter(services, db, zerolog.Nop())
	return router, m
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := doRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "facility-sync", response["service"])
}

func TestHealthEndpoint_DatabaseDown(t *testing.T) {
	router, _ := setupTestRouter(failingDB{})

	w := doRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEnqueueJob(t *testing.T) {
	router, m := setupTestRouter(nil)

	var gotReport, gotPeriod string
	m.job.EnqueueFunc = func(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
		gotReport, gotPeriod = reportID, period
		return &models.ReportJob{ID: "job-1", ReportID: reportID, Period: period, Status: models.JobStatusPending}, nil
	}

	w := doRequest(router, "POST", "/v1/jobs", map[string]string{"report_id": "moh-731", "period": "202402"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "moh-731", gotReport)
	assert.Equal(t, "202402", gotPeriod)

	var job models.ReportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
}

func TestEnqueueJob_Validation(t *testing.T) {
	router, m := setupTestRouter(nil)

	w := doRequest(router, "POST", "/v1/jobs", map[string]string{"report_id": "moh-731"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	m.job.EnqueueFunc = func(ctx context.Context, reportID, period string) (*models.ReportJob, error) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPeriod, period)
	}
	w = doRequest(router, "POST", "/v1/jobs", map[string]string{"report_id": "moh-731", "period": "last month"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid reporting period")
}

func TestListJobs_StatusFilter(t *testing.T) {
	router, m := setupTestRouter(nil)

	var gotStatus models.JobStatus
	m.job.ListFunc = func(ctx context.Context, status models.JobStatus) ([]*models.ReportJob, error) {
		gotStatus = status
		return []*models.ReportJob{{ID: "j1", Status: models.JobStatusFailed}}, nil
	}

	w := doRequest(router, "GET", "/v1/jobs?status=failed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobStatusFailed, gotStatus)

	var response struct {
		Jobs  []models.ReportJob `json:"jobs"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Count)
}

func TestGetJob_NotFound(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := doRequest(router, "GET", "/v1/jobs/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetryJob(t *testing.T) {
	router, m := setupTestRouter(nil)

	m.job.RetryFunc = func(ctx context.Context, id string) (*models.ReportJob, error) {
		switch id {
		case "failed-job":
			return &models.ReportJob{ID: id, Status: models.JobStatusPending}, nil
		case "done-job":
			return nil, fmt.Errorf("%w: cannot retry a COMPLETED job", models.ErrInvalidTransition)
		}
		return nil, models.ErrJobNotFound
	}

	tests := []struct {
		id   string
		code int
	}{
		{"failed-job", http.StatusOK},
		{"done-job", http.StatusConflict},
		{"ghost", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := doRequest(router, "POST", "/v1/jobs/"+tt.id+"/retry", nil)
		assert.Equal(t, tt.code, w.Code, tt.id)
	}
}

func TestSchedulerControl(t *testing.T) {
	router, m := setupTestRouter(nil)

	w := doRequest(router, "POST", "/v1/scheduler/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":true`)

	doRequest(router, "POST", "/v1/scheduler/start", nil)
	assert.Equal(t, 2, m.scheduler.StartCalls)

	w = doRequest(router, "GET", "/v1/scheduler", nil)
	assert.Contains(t, w.Body.String(), `"running":true`)

	w = doRequest(router, "POST", "/v1/scheduler/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":false`)
}

func TestSchedulerStatus_ReportsStoreFailure(t *testing.T) {
	router, m := setupTestRouter(nil)

	doRequest(router, "POST", "/v1/scheduler/start", nil)
	m.scheduler.Fail(errors.New("failed to dequeue job: connection refused"))

	w := doRequest(router, "GET", "/v1/scheduler", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":false`)
	assert.Contains(t, w.Body.String(), `"last_error":"failed to dequeue job: connection refused"`)

	select {
	case err := <-m.scheduler.Errors():
		assert.ErrorContains(t, err, "connection refused")
	default:
		t.Fatal("store failure was not delivered")
	}
}

func TestSyncSelected(t *testing.T) {
	router, m := setupTestRouter(nil)

	var gotCreds models.Credentials
	var gotIDs []string
	m.sync.SyncSelectedFunc = func(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error) {
		gotCreds, gotIDs = creds, ids
		return &models.SyncResult{
			Succeeded: []models.SyncSuccess{{ID: "B", Status: 201}},
			Failed:    []models.SyncFailure{{ID: "A", Status: 409, Message: "conflict"}},
			Skipped:   []string{},
		}, nil
	}

	w := doRequest(router, "POST", "/v1/sync", map[string]any{
		"period":   "202402",
		"username": "admin",
		"password": "district",
		"ids":      []string{"A", "B"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Credentials{Username: "admin", Password: "district"}, gotCreds)
	assert.Equal(t, []string{"A", "B"}, gotIDs)

	var result models.SyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 409, result.Failed[0].Status)

	// blank period and credentials are passed through for the engine to default
	var gotPeriod string
	m.sync.SyncSelectedFunc = func(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error) {
		gotPeriod, gotCreds = period, creds
		return &models.SyncResult{Succeeded: []models.SyncSuccess{}, Failed: []models.SyncFailure{}, Skipped: []string{}}, nil
	}
	w = doRequest(router, "POST", "/v1/sync", map[string]any{"ids": []string{"A"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gotPeriod)
	assert.Empty(t, gotCreds.Username)

	w = doRequest(router, "POST", "/v1/sync", map[string]any{"period": "202402", "ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCollectAll(t *testing.T) {
	router, m := setupTestRouter(nil)
	m.collect.CollectFunc = func(ctx context.Context) ([]*models.ReportJob, error) {
		return []*models.ReportJob{{ID: "j1"}}, errors.New("report x: report id is required")
	}

	w := doRequest(router, "POST", "/v1/collect", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Contains(t, w.Body.String(), "report id is required")
}

func TestStagedReports(t *testing.T) {
	router, m := setupTestRouter(nil)

	synced := time.Now()
	m.export.Summaries = []models.StagedReportSummary{
		{ID: "s1", ReportID: "moh-731", RowCount: 3},
		{ID: "s2", ReportID: "moh-731", RowCount: 1, SyncedAt: &synced},
	}
	m.export.Reports["s1"] = &models.StagedReport{ID: "s1", ReportID: "moh-731", Period: "202402"}

	w := doRequest(router, "GET", "/v1/staged-reports?unsynced=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doRequest(router, "GET", "/v1/staged-reports", nil)
	assert.Contains(t, w.Body.String(), `"count":2`)

	w = doRequest(router, "GET", "/v1/staged-reports/s1/export?format=csv", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "moh-731_202402.csv")
	assert.Equal(t, "report,s1\n", w.Body.String())

	w = doRequest(router, "GET", "/v1/staged-reports/s1/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "GET", "/v1/staged-reports/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupTestRouter(nil)

	w := doRequest(router, "OPTIONS", "/v1/jobs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
