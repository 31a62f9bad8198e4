package solver

import (
	"sort"
	"strings"
	"time"

	"github.com/csit-edu/timetable-api/internal/models"
)

// unknownTime sorts rows with unparseable start times after everything else.
const unknownTime = 9999

var dayOrder = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// SessionRow is one scheduled meeting from a section's point of view.
type SessionRow struct {
	Day            string `json:"day"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Duration       int    `json:"duration"`
	CourseID       string `json:"course_id"`
	CourseName     string `json:"course_name"`
	SessionType    string `json:"session_type"`
	GroupID        string `json:"group_id"`
	InstructorID   string `json:"instructor_id"`
	InstructorName string `json:"instructor_name"`
	RoomID         string `json:"room_id"`
}

// SectionTimetable is the weekly view for one section.
type SectionTimetable struct {
	SectionID string       `json:"section_id"`
	Rows      []SessionRow `json:"rows"`
}

// FormatTimetable expands assignments into per-section weekly views. Every
// input section appears, including ones nothing was scheduled for. Rows sort
// Sunday first, then by start time, then course ID.
func FormatTimetable(in Input, res *Result) []SectionTimetable {
	instructors := make(map[string]models.Instructor, len(in.Instructors))
	for _, inst := range in.Instructors {
		instructors[inst.ID] = inst
	}

	rows := make(map[string][]SessionRow, len(in.Sections))
	for _, sec := range in.Sections {
		rows[sec.ID] = []SessionRow{}
	}
	if res != nil {
		for _, a := range res.Assignments {
			row := SessionRow{
				Day:            a.Slot.Day,
				Start:          a.Slot.Start,
				End:            a.Slot.End,
				Duration:       a.Slot.Duration,
				CourseID:       a.Group.CourseID,
				CourseName:     a.Group.CourseName,
				SessionType:    string(a.Group.Kind),
				GroupID:        a.Group.ID,
				InstructorID:   a.InstructorID,
				InstructorName: instructors[a.InstructorID].Name,
				RoomID:         a.RoomID,
			}
			for _, secID := range a.Group.SectionIDs {
				rows[secID] = append(rows[secID], row)
			}
		}
	}

	out := make([]SectionTimetable, 0, len(rows))
	for secID, secRows := range rows {
		sort.SliceStable(secRows, func(i, j int) bool {
			di, dj := dayIndex(secRows[i].Day), dayIndex(secRows[j].Day)
			if di != dj {
				return di < dj
			}
			ti, tj := timeToMinutes(secRows[i].Start), timeToMinutes(secRows[j].Start)
			if ti != tj {
				return ti < tj
			}
			return secRows[i].CourseID < secRows[j].CourseID
		})
		out = append(out, SectionTimetable{SectionID: secID, Rows: secRows})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out
}

func dayIndex(day string) int {
	if idx, ok := dayOrder[strings.ToLower(strings.TrimSpace(day))]; ok {
		return idx
	}
	return len(dayOrder)
}

// timeToMinutes converts a 12-hour clock reading like "9:40 AM" to minutes
// since midnight.
func timeToMinutes(raw string) int {
	t, err := time.Parse("3:04 PM", strings.TrimSpace(raw))
	if err != nil {
		return unknownTime
	}
	return t.Hour()*60 + t.Minute()
}
