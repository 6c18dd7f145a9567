package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mapping"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/repository"
	"github.com/rs/zerolog"
	"github.com/tealeg/xlsx/v3"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// StagedExporter lists staged reports and renders their rows as files
type StagedExporter struct {
	staged repository.StagedReportRepository
	log    zerolog.Logger
}

// NewStagedExporter creates a new StagedExporter
func NewStagedExporter(staged repository.StagedReportRepository, log zerolog.Logger) *StagedExporter {
	return &StagedExporter{
		staged: staged,
		log:    log.With().Str("service", "export").Logger(),
	}
}

// List returns staged report summaries newest first
func (s *StagedExporter) List(ctx context.Context, unsyncedOnly bool) ([]models.StagedReportSummary, error) {
	summaries, err := s.staged.ListSummaries(ctx, unsyncedOnly)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []models.StagedReportSummary{}
	}
	return summaries, nil
}

// Get returns a staged report with its rows or ErrStagedReportNotFound
func (s *StagedExporter) Get(ctx context.Context, id string) (*models.StagedReport, error) {
	report, err := s.staged.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, models.ErrStagedReportNotFound
	}
	return report, nil
}

// Write renders a staged report in format
func (s *StagedExporter) Write(ctx context.Context, report *models.StagedReport, format string, w io.Writer) error {
	s.log.Info().
		Str("staged_id", report.ID).
		Str("format", format).
		Int("rows", len(report.Rows)).
		Msg("Starting staged report export")

	switch format {
	case FormatCSV:
		return writeCSV(report, w)
	case FormatXLSX:
		return writeXLSX(report, w)
	default:
		return fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, format)
	}
}

func writeCSV(report *models.StagedReport, w io.Writer) error {
	header := columns(report.Rows)

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := writer.Write(cells(row, header)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(report *models.StagedReport, w io.Writer) error {
	header := columns(report.Rows)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName(report))
	if err != nil {
		return err
	}

	addRow(sheet, header)
	for _, row := range report.Rows {
		addRow(sheet, cells(row, header))
	}

	return file.Write(w)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// columns is the sorted union of keys across rows
func columns(rows models.Rows) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cells(row models.Row, header []string) []string {
	out := make([]string, len(header))
	for i, key := range header {
		out[i] = mapping.Stringify(row[key])
	}
	return out
}

var sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "-", "*", "-", "[", "-", "]", "-")

// sheetName keeps within the 31 character sheet name limit
func sheetName(report *models.StagedReport) string {
	name := []rune(report.ReportID + " " + report.Period)
	if len(name) > 31 {
		name = name[:31]
	}
	return sheetNameReplacer.Replace(string(name))
}
