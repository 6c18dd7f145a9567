package models

import "errors"

var (
	// ErrJobNotFound is returned when a report job does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrStagedReportNotFound is returned when a staged report does not exist
	ErrStagedReportNotFound = errors.New("staged report not found")

	// ErrInvalidTransition is returned when a job cannot move to the requested status
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidPeriod is returned for blank periods or ones with no known date range
	ErrInvalidPeriod = errors.New("invalid reporting period")

	// ErrInvalidReportID is returned when a report id is blank
	ErrInvalidReportID = errors.New("report id is required")

	// ErrInvalidStatus is returned for an unknown job status filter
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrUnsupportedFormat is returned for an unknown export format
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
