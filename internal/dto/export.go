package dto

import "github.com/csit-edu/timetable-api/internal/models"

// ExportRequest asks for an asynchronous export of an archived schedule.
type ExportRequest struct {
	ArchiveID string `json:"archiveId" validate:"required"`
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
	SectionID string `json:"sectionId" validate:"omitempty"`
}

// ExportJobResponse acknowledges job creation.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and, once finished, the signed
// download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
