package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatICS ExportFormat = "ics"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatICS:
		return true
	default:
		return false
	}
}

// ContentType returns the MIME type of rendered files.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatICS:
		return "text/calendar; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob persisted background export metadata.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Format       ExportFormat `db:"format" json:"format"`
	Filter       ExportFilter `db:"filter" json:"filter"`
	Status       ExportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	ResultURL    *string      `db:"result_url" json:"resultUrl,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedBy    string       `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finishedAt,omitempty"`
}

// ExportFilter is the EventFilter persisted as JSON alongside the job.
type ExportFilter struct {
	EventFilter
}

// Value marshals the filter to JSON for persistence.
func (f ExportFilter) Value() (driver.Value, error) {
	data, err := json.Marshal(f.EventFilter)
	if err != nil {
		return nil, fmt.Errorf("marshal export filter: %w", err)
	}
	return string(data), nil
}

// Scan unmarshals JSON payloads into the filter.
func (f *ExportFilter) Scan(value interface{}) error {
	if value == nil {
		*f = ExportFilter{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportFilter", value)
	}
	if len(data) == 0 {
		*f = ExportFilter{}
		return nil
	}
	if err := json.Unmarshal(data, &f.EventFilter); err != nil {
		return fmt.Errorf("unmarshal export filter: %w", err)
	}
	return nil
}
