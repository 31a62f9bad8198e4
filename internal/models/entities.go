package models

import (
	"strconv"
	"strings"
	"unicode"
)

// SessionType identifies the kind of teaching session a group needs scheduled.
type SessionType string

const (
	SessionLecture  SessionType = "Lecture"
	SessionLab      SessionType = "Lab"
	SessionTutorial SessionType = "Tutorial"
)

// Departments that share third-year courses across programmes.
var sharedYearThreeDepts = map[string]struct{}{
	"AID": {},
	"BIF": {},
	"CSC": {},
	"CNC": {},
}

// Course is one catalogue entry. Type is the raw delivery descriptor from the
// catalogue, e.g. "Lecture", "Lecture+Lab" or "Lecture + Lab + Tutorial".
type Course struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Type    string `json:"type"`
	Year    int    `json:"year"`
	Shared  bool   `json:"shared"`
}

// HasLecture reports whether the delivery descriptor includes a lecture component.
func (c Course) HasLecture() bool {
	return strings.Contains(strings.ToLower(c.Type), "lecture")
}

// HasLab reports whether the delivery descriptor includes a lab component.
func (c Course) HasLab() bool {
	return strings.Contains(strings.ToLower(c.Type), "lab")
}

// HasTutorial reports whether the delivery descriptor includes a tutorial component.
func (c Course) HasTutorial() bool {
	return strings.Contains(strings.ToLower(c.Type), "tut")
}

// SessionKinds lists the session types this course requires, lecture first.
func (c Course) SessionKinds() []SessionType {
	kinds := make([]SessionType, 0, 3)
	if c.HasLecture() {
		kinds = append(kinds, SessionLecture)
	}
	if c.HasLab() {
		kinds = append(kinds, SessionLab)
	}
	if c.HasTutorial() {
		kinds = append(kinds, SessionTutorial)
	}
	return kinds
}

// DeptPrefix returns the leading letters of the course ID, upper-cased.
// "csc301" yields "CSC".
func (c Course) DeptPrefix() string {
	id := strings.TrimSpace(c.ID)
	for i, r := range id {
		if !unicode.IsLetter(r) {
			return strings.ToUpper(id[:i])
		}
	}
	return strings.ToUpper(id)
}

// Instructor is one teaching staff member. Qualified holds course IDs the
// instructor may teach; empty means no restriction. PreferredDays holds day
// names the instructor wants to teach on; empty means any day.
type Instructor struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Qualified     []string `json:"qualified"`
	PreferredDays []string `json:"preferred_days"`
}

// IsAssistant reports whether the role names a teaching assistant.
func (i Instructor) IsAssistant() bool {
	return strings.Contains(strings.ToLower(i.Role), "assistant")
}

// IsProfessor reports whether the role names professorial staff without an
// assistant designation.
func (i Instructor) IsProfessor() bool {
	role := strings.ToLower(i.Role)
	return strings.Contains(role, "professor") && !strings.Contains(role, "assistant")
}

// QualifiedFor reports whether the instructor may teach the course. An empty
// qualification list qualifies for everything.
func (i Instructor) QualifiedFor(courseID string) bool {
	if len(i.Qualified) == 0 {
		return true
	}
	for _, id := range i.Qualified {
		if strings.EqualFold(id, courseID) {
			return true
		}
	}
	return false
}

// PrefersDay reports whether the given day is acceptable under the
// instructor's day preferences. No preferences means every day is.
func (i Instructor) PrefersDay(day string) bool {
	if len(i.PreferredDays) == 0 {
		return true
	}
	for _, d := range i.PreferredDays {
		if strings.EqualFold(d, day) {
			return true
		}
	}
	return false
}

// Room is one bookable space. Type follows the campus naming convention:
// rooms whose type starts with "Lab" host labs, "TUT" rooms host tutorials,
// everything else hosts lectures.
type Room struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
}

// IsLab reports whether the room hosts lab sessions.
func (r Room) IsLab() bool {
	return strings.HasPrefix(strings.ToLower(r.Type), "lab")
}

// IsTutorialRoom reports whether the room hosts tutorial sessions.
func (r Room) IsTutorialRoom() bool {
	return strings.EqualFold(strings.TrimSpace(r.Type), "tut")
}

// TimeSlot is one bookable meeting time. Duration is in minutes. The ID is
// synthesised at load time from day and start time.
type TimeSlot struct {
	ID       string `json:"id"`
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"`
}

// Section is one student cohort. Sections are named "year/number" in the
// first two years ("1/5") and "year/department/number" from year three on
// ("3/CNC/1").
type Section struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
}

// Cohort parses the section ID into study year plus the component after
// the year, which names the department exactly when the year calls for
// one. ok is false when the ID does not follow the campus convention, in
// which case the section is treated as matching any course.
func (s Section) Cohort() (year int, dept string, ok bool) {
	parts := strings.Split(strings.TrimSpace(s.ID), "/")
	if len(parts) < 2 {
		return 0, "", false
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, "", false
	}
	return y, strings.ToUpper(strings.TrimSpace(parts[1])), true
}

// EligibleForCourse applies the cohort rules that decide whether this
// section's students take the given course.
//
// Years 1 and 2 match on year alone. Year 3 shared courses are open to the
// programmes that pool their third year. Otherwise the course's department
// prefix must equal the section's department. Sections with unparseable IDs
// match everything.
func (s Section) EligibleForCourse(c Course) bool {
	year, dept, ok := s.Cohort()
	if !ok {
		return true
	}
	if year != c.Year {
		return false
	}
	if c.Year <= 2 {
		return true
	}
	if c.Year == 3 && c.Shared {
		_, pooled := sharedYearThreeDepts[dept]
		return pooled
	}
	return strings.EqualFold(c.DeptPrefix(), dept)
}
