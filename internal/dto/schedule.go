package dto

import (
	"time"

	"github.com/csit-edu/timetable-api/internal/solver"
)

// GenerateScheduleRequest asks the engine to solve one staged dataset.
// TimeBudgetSeconds of zero means "use the configured default"; explicit
// zero-budget probes use a negative value.
type GenerateScheduleRequest struct {
	DatasetID         string   `json:"datasetId" validate:"required"`
	TimeBudgetSeconds *float64 `json:"timeBudgetSeconds" validate:"omitempty"`
	Permissive        bool     `json:"permissive"`
	AutoRelax         bool     `json:"autoRelax"`
}

// ScheduleRunResponse summarises one run without its assignments.
type ScheduleRunResponse struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"datasetId"`
	DatasetName string    `json:"datasetName"`
	State       string    `json:"state"`
	Completion  float64   `json:"completion"`
	Permissive  bool      `json:"permissive"`
	AutoRelaxed bool      `json:"autoRelaxed"`
	Groups      int       `json:"groups"`
	Assigned    int       `json:"assigned"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ScheduleDetailResponse carries the full outcome of a finished run.
type ScheduleDetailResponse struct {
	ScheduleRunResponse
	Assignments []solver.Assignment       `json:"assignments"`
	Sections    []solver.SectionTimetable `json:"sections"`
	Diagnostics solver.Diagnostics        `json:"diagnostics"`
}

// AsyncRunResponse acknowledges a queued asynchronous generation.
type AsyncRunResponse struct {
	RunID string `json:"runId"`
	State string `json:"state"`
}
