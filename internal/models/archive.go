package models

import (
	"time"

	"github.com/lib/pq"
)

// ScheduleArchive is one persisted schedule run, saved after a generation the
// operator wants to keep. Assignments live in schedule_assignments.
type ScheduleArchive struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DatasetName string    `db:"dataset_name" json:"dataset_name"`
	State       string    `db:"state" json:"state"`
	Completion  float64   `db:"completion" json:"completion"`
	Permissive  bool      `db:"permissive" json:"permissive"`
	Groups      int       `db:"groups_total" json:"groups_total"`
	Assigned    int       `db:"groups_assigned" json:"groups_assigned"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScheduleAssignment is one archived group placement.
type ScheduleAssignment struct {
	ID             string         `db:"id" json:"id"`
	ArchiveID      string         `db:"archive_id" json:"archive_id"`
	GroupID        string         `db:"group_id" json:"group_id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	CourseName     string         `db:"course_name" json:"course_name"`
	SessionType    string         `db:"session_type" json:"session_type"`
	SectionIDs     pq.StringArray `db:"section_ids" json:"section_ids"`
	InstructorID   string         `db:"instructor_id" json:"instructor_id"`
	InstructorName string         `db:"instructor_name" json:"instructor_name"`
	RoomID         string         `db:"room_id" json:"room_id"`
	Day            string         `db:"day" json:"day"`
	StartTime      string         `db:"start_time" json:"start_time"`
	EndTime        string         `db:"end_time" json:"end_time"`
	Duration       int            `db:"duration" json:"duration"`
}

// ArchiveFilter narrows listing queries by metadata fields.
type ArchiveFilter struct {
	State    string
	Search   string
	Page     int
	PageSize int
}
