package models

import "encoding/json"

// Credentials are the Basic auth credentials for the aggregate data service
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DataValue is a single value in an aggregate data submission
type DataValue struct {
	DataElement          string `json:"dataElement"`
	AttributeOptionCombo string `json:"attributeOptionCombo"`
	CategoryOptionCombo  string `json:"categoryOptionCombo"`
	Value                string `json:"value"`
}

// DataValueSet is the submission payload for one staged report
type DataValueSet struct {
	DataSet      string      `json:"dataSet"`
	CompleteDate string      `json:"completeDate"`
	Period       string      `json:"period"`
	OrgUnit      string      `json:"orgUnit"`
	DataValues   []DataValue `json:"dataValues"`
}

// ImportConflict is a conflict reported by the aggregate service
type ImportConflict struct {
	Object    string `json:"object"`
	Value     string `json:"value"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// SyncSuccess records a staged report accepted by the aggregate service
type SyncSuccess struct {
	ID       string          `json:"id"`
	ReportID string          `json:"report_id"`
	Status   int             `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// SyncFailure records a staged report that was rejected or could not be sent
type SyncFailure struct {
	ID        string           `json:"id"`
	ReportID  string           `json:"report_id,omitempty"`
	Status    int              `json:"status"`
	Message   string           `json:"message"`
	Conflicts []ImportConflict `json:"conflicts,omitempty"`
}

// SyncResult is the outcome of one sync batch
type SyncResult struct {
	Succeeded []SyncSuccess `json:"succeeded"`
	Failed    []SyncFailure `json:"failed"`
	Skipped   []string      `json:"skipped"`
}

// SyncRequest is the API request to push selected staged reports
type SyncRequest struct {
	Period   string   `json:"period"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	IDs      []string `json:"ids" binding:"required"`
}
