package dto

import "github.com/noah-isme/mini-event-api/internal/models"

// ExportRequest queues an asynchronous export.
type ExportRequest struct {
	Format models.ExportFormat `json:"format"`
	Filter models.EventFilter  `json:"filter"`
}

// ExportJobResponse is returned when a job is queued.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress and the signed download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
