package dto

import "github.com/csit-edu/timetable-api/internal/models"

// ArchiveScheduleRequest names a finished run for persistence.
type ArchiveScheduleRequest struct {
	RunID string `json:"runId" validate:"required"`
	Name  string `json:"name" validate:"required,min=3,max=120"`
}

// ArchiveListResponse pairs archive rows with pagination metadata.
type ArchiveListResponse struct {
	Items      []models.ScheduleArchive `json:"items"`
	Pagination models.Pagination        `json:"pagination"`
}

// ArchiveDetailResponse enriches archive metadata with its assignments.
type ArchiveDetailResponse struct {
	models.ScheduleArchive
	Assignments []models.ScheduleAssignment `json:"assignments"`
}
