package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/dhis2"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mapping"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/rs/zerolog"
)

const completeDateLayout = "2006-01-02"

// AggregateClient submits data value sets to the aggregate data service
type AggregateClient interface {
	PostDataValueSet(ctx context.Context, creds models.Credentials, payload *models.DataValueSet) (*dhis2.Response, error)
}

// SyncOptions holds the submission coordinates shared by every payload
type SyncOptions struct {
	DataSetID          string
	OrgUnitID          string
	DefaultCredentials models.Credentials
}

// SyncEngine maps staged reports into data value sets and pushes them
type SyncEngine struct {
	staged   repository.StagedReportRepository
	mappings repository.MappingRepository
	resolver mapping.Resolver
	client   AggregateClient
	opts     SyncOptions
	log      zerolog.Logger
	now      func() time.Time

	// one batch at a time so a report is never posted twice concurrently
	mu sync.Mutex
}

// NewSyncEngine creates a sync engine
func NewSyncEngine(staged repository.StagedReportRepository, mappings repository.MappingRepository,
	resolver mapping.Resolver, client AggregateClient, opts SyncOptions, log zerolog.Logger) *SyncEngine {
	return &SyncEngine{
		staged:   staged,
		mappings: mappings,
		resolver: resolver,
		client:   client,
		opts:     opts,
		log:      log.With().Str("service", "sync").Logger(),
		now:      time.Now,
	}
}

// SetClock replaces the clock used for completeDate and synced_at
func (s *SyncEngine) SetClock(now func() time.Time) {
	s.now = now
}

// SyncSelected pushes the given staged reports for period. A blank period uses each
// report's own period and blank credentials use the default account. Per report
// outcomes are collected in the result; the error is only set when ctx is already done.
func (s *SyncEngine) SyncSelected(ctx context.Context, period string, creds models.Credentials, ids []string) (*models.SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(creds.Username) == "" {
		creds = s.opts.DefaultCredentials
	}

	result := newSyncResult()
	ids = uniqueIDs(ids)

	reports, err := s.staged.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Error().Err(err).Int("count", len(ids)).Msg("Failed to load staged reports")
		for _, id := range ids {
			result.Failed = append(result.Failed, models.SyncFailure{ID: id, Message: err.Error()})
		}
		return result, nil
	}

	byID := make(map[string]*models.StagedReport, len(reports))
	for _, report := range reports {
		byID[report.ID] = report
	}

	for _, id := range ids {
		report, ok := byID[id]
		if !ok {
			result.Failed = append(result.Failed, models.SyncFailure{
				ID:      id,
				Message: models.ErrStagedReportNotFound.Error(),
			})
			continue
		}
		s.syncOne(ctx, period, creds, report, result)
	}

	s.logResult(result, "Sync batch finished")
	return result, nil
}

// SyncPending pushes every unsynced staged report with the default credentials,
// each for its own period.
func (s *SyncEngine) SyncPending(ctx context.Context) (*models.SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.staged.ListUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced reports: %w", err)
	}

	result := newSyncResult()
	for _, report := range reports {
		if ctx.Err() != nil {
			break
		}
		s.syncOne(ctx, report.Period, s.opts.DefaultCredentials, report, result)
	}

	s.logResult(result, "Pending sync finished")
	return result, nil
}

func (s *SyncEngine) syncOne(ctx context.Context, period string, creds models.Credentials, report *models.StagedReport, result *models.SyncResult) {
	log := s.log.With().Str("staged_id", report.ID).Str("report_id", report.ReportID).Logger()

	if report.Synced() {
		log.Debug().Msg("Already synced, skipping")
		result.Skipped = append(result.Skipped, report.ID)
		return
	}

	mappings, err := s.mappings.ListByReport(ctx, report.ReportID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load mappings")
		result.Failed = append(result.Failed, models.SyncFailure{
			ID:       report.ID,
			ReportID: report.ReportID,
			Message:  fmt.Sprintf("failed to load mappings: %v", err),
		})
		return
	}

	values := s.buildDataValues(report.Rows, mappings)
	if len(values) == 0 {
		log.Debug().Int("mappings", len(mappings)).Msg("No mapped values, skipping")
		result.Skipped = append(result.Skipped, report.ID)
		return
	}

	if strings.TrimSpace(period) == "" {
		period = report.Period
	}
	payload := &models.DataValueSet{
		DataSet:      s.opts.DataSetID,
		CompleteDate: s.now().Format(completeDateLayout),
		Period:       period,
		OrgUnit:      s.opts.OrgUnitID,
		DataValues:   values,
	}

	resp, err := s.client.PostDataValueSet(ctx, creds, payload)
	if err != nil {
		kind := dhis2.ClassifyError(err)
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Aggregate service unreachable")
		result.Failed = append(result.Failed, models.SyncFailure{
			ID:       report.ID,
			ReportID: report.ReportID,
			Message:  fmt.Sprintf("%s: %v", kind, err),
		})
		return
	}

	if !resp.Success() {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("message", resp.Message).
			Int("conflicts", len(resp.Conflicts)).
			Msg("Submission rejected")
		result.Failed = append(result.Failed, models.SyncFailure{
			ID:        report.ID,
			ReportID:  report.ReportID,
			Status:    resp.StatusCode,
			Message:   resp.Message,
			Conflicts: resp.Conflicts,
		})
		return
	}

	if err := s.staged.MarkSynced(ctx, report.ID, s.now().UTC()); err != nil {
		// accepted remotely but not recorded locally; surface it for reconciliation
		log.Error().Err(err).Int("status", resp.StatusCode).Msg("Submission accepted but failed to mark synced")
		result.Failed = append(result.Failed, models.SyncFailure{
			ID:       report.ID,
			ReportID: report.ReportID,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("accepted but failed to mark synced: %v", err),
		})
		return
	}

	success := models.SyncSuccess{
		ID:       report.ID,
		ReportID: report.ReportID,
		Status:   resp.StatusCode,
	}
	if json.Valid(resp.Body) {
		success.Response = json.RawMessage(resp.Body)
	}
	result.Succeeded = append(result.Succeeded, success)

	log.Info().Int("values", len(values)).Int("status", resp.StatusCode).Msg("Report synced")
}

// buildDataValues resolves every mapping against rows, dropping misses
func (s *SyncEngine) buildDataValues(rows models.Rows, mappings []models.Mapping) []models.DataValue {
	values := make([]models.DataValue, 0, len(mappings))
	for _, m := range mappings {
		value, ok := s.resolver.Resolve(rows, m.SourceVariableName)
		if !ok {
			continue
		}
		values = append(values, models.DataValue{
			DataElement:          m.DataElementID,
			CategoryOptionCombo:  m.CategoryOptionComboID,
			AttributeOptionCombo: m.AttributeOptionComboID,
			Value:                mapping.Stringify(value),
		})
	}
	return values
}

func (s *SyncEngine) logResult(result *models.SyncResult, msg string) {
	s.log.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Msg(msg)
}

func newSyncResult() *models.SyncResult {
	return &models.SyncResult{
		Succeeded: []models.SyncSuccess{},
		Failed:    []models.SyncFailure{},
		Skipped:   []string{},
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
