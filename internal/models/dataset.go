package models

import "time"

// Dataset is one uploaded set of scheduling inputs, staged in memory until it
// expires or a schedule generated from it is archived.
type Dataset struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Courses     []Course     `json:"courses"`
	Instructors []Instructor `json:"instructors"`
	Rooms       []Room       `json:"rooms"`
	TimeSlots   []TimeSlot   `json:"timeslots"`
	Sections    []Section    `json:"sections"`
	UploadedBy  string       `json:"uploaded_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Summary returns the lightweight listing view of the dataset.
func (d Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		ID:          d.ID,
		Name:        d.Name,
		Courses:     len(d.Courses),
		Instructors: len(d.Instructors),
		Rooms:       len(d.Rooms),
		TimeSlots:   len(d.TimeSlots),
		Sections:    len(d.Sections),
		UploadedBy:  d.UploadedBy,
		CreatedAt:   d.CreatedAt,
	}
}

// DatasetSummary carries entity counts instead of full payloads.
type DatasetSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Courses     int       `json:"courses"`
	Instructors int       `json:"instructors"`
	Rooms       int       `json:"rooms"`
	TimeSlots   int       `json:"timeslots"`
	Sections    int       `json:"sections"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
