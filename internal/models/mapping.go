package models

// Mapping translates a named source variable of a report into a data element coordinate
type Mapping struct {
	ID                     int64  `json:"id" db:"id"`
	ReportID               string `json:"report_id" db:"report_id"`
	SourceVariableName     string `json:"source_variable_name" db:"source_variable_name"`
	DataElementID          string `json:"data_element_id" db:"data_element_id"`
	CategoryOptionComboID  string `json:"category_option_combo_id" db:"category_option_combo_id"`
	AttributeOptionComboID string `json:"attribute_option_combo_id" db:"attribute_option_combo_id"`
}
