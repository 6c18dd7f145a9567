package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/database"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const stagedColumns = `id, report_id, period, start_date, end_date, rows, created_at, synced_at`

// stagedReportRepo is the sqlx backed StagedReportRepository
type stagedReportRepo struct {
	db *sqlx.DB
}

// NewStagedReportRepo creates a new staged report repository
func NewStagedReportRepo(db *database.DB) StagedReportRepository {
	return &stagedReportRepo{db: db.X()}
}

// WriteStagedReport inserts the downloaded rows for a report and period
func (r *stagedReportRepo) WriteStagedReport(ctx context.Context, report *models.StagedReport) error {
	query := `
		INSERT INTO staged_reports (` + stagedColumns + `)
		VALUES (:id, :report_id, :period, :start_date, :end_date, :rows, :created_at, :synced_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, report)
	return err
}

// GetByID retrieves a staged report with its rows
func (r *stagedReportRepo) GetByID(ctx context.Context, id string) (*models.StagedReport, error) {
	if !validID(id) {
		return nil, nil
	}
	var report models.StagedReport
	err := r.db.GetContext(ctx, &report, `SELECT `+stagedColumns+` FROM staged_reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByIDs retrieves the staged reports among ids that exist, in no particular order
func (r *stagedReportRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.StagedReport, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var reports []*models.StagedReport
	err := r.db.SelectContext(ctx, &reports,
		`SELECT `+stagedColumns+` FROM staged_reports WHERE id::text = ANY($1)`,
		pq.Array(ids),
	)
	return reports, err
}

// ListUnsynced returns every staged report without a synced_at stamp, oldest first
func (r *stagedReportRepo) ListUnsynced(ctx context.Context) ([]*models.StagedReport, error) {
	var reports []*models.StagedReport
	err := r.db.SelectContext(ctx, &reports,
		`SELECT `+stagedColumns+` FROM staged_reports WHERE synced_at IS NULL ORDER BY created_at, id`,
	)
	return reports, err
}

// ListSummaries lists staged reports newest first without loading their rows
func (r *stagedReportRepo) ListSummaries(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error) {
	query := `
		SELECT id, report_id, period, jsonb_array_length(rows) AS row_count, created_at, synced_at
		FROM staged_reports
	`
	if unsyncedOnly {
		query += ` WHERE synced_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var summaries []models.StagedReportSummary
	err := r.db.SelectContext(ctx, &summaries, query)
	return summaries, err
}

// MarkSynced stamps synced_at. An existing stamp is never overwritten or cleared.
func (r *stagedReportRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return models.ErrStagedReportNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE staged_reports SET synced_at = $1 WHERE id = $2 AND synced_at IS NULL`,
		at, id,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM staged_reports WHERE id = $1)`, id); err != nil {
			return err
		}
		if !exists {
			return models.ErrStagedReportNotFound
		}
	}
	return nil
}
