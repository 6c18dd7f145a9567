package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Row is one flat record collected from the source report
type Row map[string]any

// Rows is the ordered set of rows of a staged report, stored as JSONB
type Rows []Row

// Value implements driver.Valuer
func (r Rows) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner
func (r *Rows) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = Rows{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported rows column type %T", src)
	}
	return json.Unmarshal(data, r)
}

// StagedReport holds the raw rows downloaded for a report and period
type StagedReport struct {
	ID        string     `json:"id" db:"id"`
	ReportID  string     `json:"report_id" db:"report_id"`
	Period    string     `json:"period" db:"period"`
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   time.Time  `json:"end_date" db:"end_date"`
	Rows      Rows       `json:"rows" db:"rows"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// Synced reports whether the staged report was accepted by the aggregate service
func (s *StagedReport) Synced() bool {
	return s.SyncedAt != nil
}

// StagedReportSummary is the listing view of a staged report without its rows
type StagedReportSummary struct {
	ID        string     `json:"id" db:"id"`
	ReportID  string     `json:"report_id" db:"report_id"`
	Period    string     `json:"period" db:"period"`
	RowCount  int        `json:"row_count" db:"row_count"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty" db:"synced_at"`
}
