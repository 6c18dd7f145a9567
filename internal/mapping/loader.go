package mapping

import (
	"fmt"
	"os"
	"strings"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a mapping seed file
type File struct {
	Reports []ReportMappings `yaml:"reports"`
}

// ReportMappings lists the mappings of one source report
type ReportMappings struct {
	ReportID string  `yaml:"report_id"`
	Mappings []Entry `yaml:"mappings"`
}

// Entry maps one source variable to a data element coordinate
type Entry struct {
	Variable             string `yaml:"variable"`
	DataElement          string `yaml:"data_element"`
	CategoryOptionCombo  string `yaml:"category_option_combo"`
	AttributeOptionCombo string `yaml:"attribute_option_combo"`
}

// LoadFile reads and flattens a mapping seed file
func LoadFile(path string) ([]models.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return Parse(data)
}

// Parse decodes mapping YAML and validates required fields
func Parse(data []byte) ([]models.Mapping, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}

	var out []models.Mapping
	for i, report := range f.Reports {
		reportID := strings.TrimSpace(report.ReportID)
		if reportID == "" {
			return nil, fmt.Errorf("reports[%d]: report_id is required", i)
		}
		for j, e := range report.Mappings {
			if strings.TrimSpace(e.Variable) == "" || strings.TrimSpace(e.DataElement) == "" {
				return nil, fmt.Errorf("reports[%d].mappings[%d]: variable and data_element are required", i, j)
			}
			out = append(out, models.Mapping{
				ReportID:               reportID,
				SourceVariableName:     e.Variable,
				DataElementID:          e.DataElement,
				CategoryOptionComboID:  e.CategoryOptionCombo,
				AttributeOptionComboID: e.AttributeOptionCombo,
			})
		}
	}
	return out, nil
}
