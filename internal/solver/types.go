package solver

import (
	"time"

	"github.com/csit-edu/timetable-api/internal/models"
)

// State is the terminal outcome of a solve attempt. Runs start out UNSOLVED
// and move through IN_PROGRESS at the service layer; the solver itself only
// produces terminal states.
type State string

const (
	StateUnsolved        State = "UNSOLVED"
	StateInProgress      State = "IN_PROGRESS"
	StateSolved          State = "SOLVED"
	StatePartiallySolved State = "PARTIALLY_SOLVED"
	StateExhausted       State = "EXHAUSTED"
	StateTimedOut        State = "TIMED_OUT"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateSolved, StatePartiallySolved, StateExhausted, StateTimedOut:
		return true
	}
	return false
}

// Input bundles the entity collections a solve operates on.
type Input struct {
	Courses     []models.Course
	Instructors []models.Instructor
	Rooms       []models.Room
	TimeSlots   []models.TimeSlot
	Sections    []models.Section
}

// Options tune a single solve attempt. A non-positive TimeBudget times the
// run out before the first search node.
type Options struct {
	TimeBudget time.Duration
	Permissive bool
}

// Group is one schedulable unit: a cohort of sections that attends the same
// session of a course together. Duration is in minutes.
type Group struct {
	ID         string             `json:"id"`
	CourseID   string             `json:"course_id"`
	CourseName string             `json:"course_name"`
	Kind       models.SessionType `json:"session_type"`
	SectionIDs []string           `json:"section_ids"`
	Duration   int                `json:"duration"`
}

// Candidate is one admissible (timeslot, room, instructor) placement for a
// group. OffDay marks a soft day-preference miss that worsens value ordering
// without excluding the candidate.
type Candidate struct {
	Slot         models.TimeSlot
	RoomID       string
	InstructorID string
	OffDay       bool
}

// Assignment is one committed placement.
type Assignment struct {
	Group        Group           `json:"group"`
	Slot         models.TimeSlot `json:"slot"`
	RoomID       string          `json:"room_id"`
	InstructorID string          `json:"instructor_id"`
}

// RejectReason tags why a prospective placement was filtered out of a domain.
type RejectReason string

const (
	ReasonUnqualified   RejectReason = "unqualified"
	ReasonRoleMismatch  RejectReason = "role_mismatch"
	ReasonRoomType      RejectReason = "room_type"
	ReasonDuration      RejectReason = "duration"
	ReasonDayPreference RejectReason = "day_preference"
)

// Relaxation names one rung of the permissive fallback ladder.
type Relaxation string

const (
	RelaxQualification Relaxation = "allow_unqualified"
	RelaxRoomType      Relaxation = "allow_room_mismatch"
)

// GroupRejections tallies filtered placements by reason for one group.
type GroupRejections map[RejectReason]int

// Diagnostics aggregates everything observable about a solve besides the
// assignments themselves.
type Diagnostics struct {
	Rejections   map[string]GroupRejections `json:"rejections,omitempty"`
	Relaxations  map[string][]Relaxation    `json:"relaxations,omitempty"`
	EmptyDomains []EmptyDomainError         `json:"empty_domains,omitempty"`
	Nodes        int                        `json:"nodes"`
	Backtracks   int                        `json:"backtracks"`
	Prunes       int                        `json:"prunes"`
	MaxDepth     int                        `json:"max_depth"`
	Elapsed      time.Duration              `json:"elapsed"`
}

// Result is the outcome of one solve attempt. Assignments are ordered by
// group ID. Completion is assigned groups over total groups and 1.0 when the
// input produced no groups at all.
type Result struct {
	State       State        `json:"state"`
	Assignments []Assignment `json:"assignments"`
	Groups      int          `json:"groups"`
	Completion  float64      `json:"completion"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}
