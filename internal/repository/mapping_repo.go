package repository

import (
	"context"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/database"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/jmoiron/sqlx"
)

// mappingRepo is the sqlx backed MappingRepository
type mappingRepo struct {
	db *sqlx.DB
}

// NewMappingRepo creates a new mapping repository
func NewMappingRepo(db *database.DB) MappingRepository {
	return &mappingRepo{db: db.X()}
}

// ListByReport returns the mappings of a report in insertion order
func (r *mappingRepo) ListByReport(ctx context.Context, reportID string) ([]models.Mapping, error) {
	var mappings []models.Mapping
	err := r.db.SelectContext(ctx, &mappings, `
		SELECT id, report_id, source_variable_name, data_element_id,
			category_option_combo_id, attribute_option_combo_id
		FROM mappings
		WHERE report_id = $1
		ORDER BY id
	`, reportID)
	return mappings, err
}

// Upsert inserts or replaces mappings keyed by (report_id, source_variable_name)
func (r *mappingRepo) Upsert(ctx context.Context, mappings []models.Mapping) (int, error) {
	if len(mappings) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO mappings (report_id, source_variable_name, data_element_id,
			category_option_combo_id, attribute_option_combo_id)
		VALUES (:report_id, :source_variable_name, :data_element_id,
			:category_option_combo_id, :attribute_option_combo_id)
		ON CONFLICT (report_id, source_variable_name) DO UPDATE SET
			data_element_id = EXCLUDED.data_element_id,
			category_option_combo_id = EXCLUDED.category_option_combo_id,
			attribute_option_combo_id = EXCLUDED.attribute_option_combo_id
	`
	count := 0
	for i := range mappings {
		if _, err := tx.NamedExecContext(ctx, query, &mappings[i]); err != nil {
			return count, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
