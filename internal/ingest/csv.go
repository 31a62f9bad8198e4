// Package ingest parses the uploaded CSV files into scheduling entities.
// Parsing is forgiving about cell formatting (quoted lists, mixed case,
// stray whitespace) and strict about required columns.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/csit-edu/timetable-api/internal/models"
)

var weekDays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type courseRow struct {
	CourseID   string `mapstructure:"CourseID"`
	CourseName string `mapstructure:"CourseName"`
	Credits    int    `mapstructure:"Credits"`
	Type       string `mapstructure:"Type"`
	Year       int    `mapstructure:"Year"`
	Shared     string `mapstructure:"Shared"`
}

type instructorRow struct {
	InstructorID     string `mapstructure:"InstructorID"`
	Name             string `mapstructure:"Name"`
	Role             string `mapstructure:"Role"`
	QualifiedCourses string `mapstructure:"QualifiedCourses"`
	PreferredDays    string `mapstructure:"PreferredDays"`
}

type roomRow struct {
	RoomID   string `mapstructure:"RoomID"`
	Type     string `mapstructure:"Type"`
	Capacity int    `mapstructure:"Capacity"`
}

type timeSlotRow struct {
	Day       string `mapstructure:"Day"`
	StartTime string `mapstructure:"StartTime"`
	EndTime   string `mapstructure:"EndTime"`
	Duration  int    `mapstructure:"Duration"`
}

type sectionRow struct {
	SectionID string `mapstructure:"SectionID"`
	Capacity  int    `mapstructure:"Capacity"`
}

// ParseCourses reads the course catalogue CSV.
func ParseCourses(r io.Reader) ([]models.Course, error) {
	rows, err := readRows(r, "courses", []string{"CourseID", "CourseName", "Type", "Year"})
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(rows))
	for i, raw := range rows {
		var row courseRow
		if err := decodeRow(raw, &row); err != nil {
			return nil, fmt.Errorf("courses row %d: %w", i+2, err)
		}
		if row.CourseID == "" {
			continue
		}
		courses = append(courses, models.Course{
			ID:      row.CourseID,
			Name:    row.CourseName,
			Credits: row.Credits,
			Type:    row.Type,
			Year:    row.Year,
			Shared:  truthy(row.Shared),
		})
	}
	return courses, nil
}

// ParseInstructors reads the staff CSV. A blank InstructorID falls back to
// the instructor's name.
func ParseInstructors(r io.Reader) ([]models.Instructor, error) {
	rows, err := readRows(r, "instructors", []string{"Name", "Role"})
	if err != nil {
		return nil, err
	}
	instructors := make([]models.Instructor, 0, len(rows))
	for i, raw := range rows {
		var row instructorRow
		if err := decodeRow(raw, &row); err != nil {
			return nil, fmt.Errorf("instructors row %d: %w", i+2, err)
		}
		if row.Name == "" && row.InstructorID == "" {
			continue
		}
		id := row.InstructorID
		if id == "" {
			id = row.Name
		}
		instructors = append(instructors, models.Instructor{
			ID:            id,
			Name:          row.Name,
			Role:          row.Role,
			Qualified:     splitList(row.QualifiedCourses),
			PreferredDays: parsePreferredDays(row.PreferredDays),
		})
	}
	return instructors, nil
}

// ParseRooms reads the room inventory CSV.
func ParseRooms(r io.Reader) ([]models.Room, error) {
	rows, err := readRows(r, "rooms", []string{"RoomID", "Type"})
	if err != nil {
		return nil, err
	}
	rooms := make([]models.Room, 0, len(rows))
	for i, raw := range rows {
		var row roomRow
		if err := decodeRow(raw, &row); err != nil {
			return nil, fmt.Errorf("rooms row %d: %w", i+2, err)
		}
		if row.RoomID == "" {
			continue
		}
		rooms = append(rooms, models.Room{ID: row.RoomID, Type: row.Type, Capacity: row.Capacity})
	}
	return rooms, nil
}

// ParseTimeSlots reads the weekly grid CSV. Slot IDs are synthesised from
// day and start time; a missing Duration column defaults to 90 minutes.
func ParseTimeSlots(r io.Reader) ([]models.TimeSlot, error) {
	rows, err := readRows(r, "timeslots", []string{"Day", "StartTime", "EndTime"})
	if err != nil {
		return nil, err
	}
	slots := make([]models.TimeSlot, 0, len(rows))
	for i, raw := range rows {
		var row timeSlotRow
		if err := decodeRow(raw, &row); err != nil {
			return nil, fmt.Errorf("timeslots row %d: %w", i+2, err)
		}
		if row.Day == "" || row.StartTime == "" {
			continue
		}
		duration := row.Duration
		if duration <= 0 {
			duration = 90
		}
		slots = append(slots, models.TimeSlot{
			ID:       fmt.Sprintf("%s@%s", row.Day, row.StartTime),
			Day:      row.Day,
			Start:    row.StartTime,
			End:      row.EndTime,
			Duration: duration,
		})
	}
	return slots, nil
}

// ParseSections reads the cohort CSV.
func ParseSections(r io.Reader) ([]models.Section, error) {
	rows, err := readRows(r, "sections", []string{"SectionID"})
	if err != nil {
		return nil, err
	}
	sections := make([]models.Section, 0, len(rows))
	for i, raw := range rows {
		var row sectionRow
		if err := decodeRow(raw, &row); err != nil {
			return nil, fmt.Errorf("sections row %d: %w", i+2, err)
		}
		if row.SectionID == "" {
			continue
		}
		sections = append(sections, models.Section{ID: row.SectionID, Capacity: row.Capacity})
	}
	return sections, nil
}

// readRows materialises a CSV into header-keyed maps and verifies required
// columns exist.
func readRows(r io.Reader, name string, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s csv: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s csv is empty", name)
	}
	header := make([]string, len(records[0]))
	seen := make(map[string]struct{}, len(records[0]))
	for i, col := range records[0] {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))
		header[i] = col
		seen[col] = struct{}{}
	}
	var missing []string
	for _, col := range required {
		if _, ok := seen[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s csv missing columns: %s", name, strings.Join(missing, ", "))
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeRow maps a header-keyed row onto a typed struct, coercing numerics
// from their string cells.
func decodeRow(raw map[string]string, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build row decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parsePreferredDays understands both positive day lists and "Not on <Day>"
// exclusions. Exclusions subtract from the full week unless explicit
// preferences were also given.
func parsePreferredDays(raw string) []string {
	entries := splitList(raw)
	if len(entries) == 0 {
		return nil
	}
	excluded := make(map[string]bool)
	var preferred []string
	for _, entry := range entries {
		lower := strings.ToLower(entry)
		if day, ok := strings.CutPrefix(lower, "not on "); ok {
			excluded[strings.TrimSpace(day)] = true
			continue
		}
		preferred = append(preferred, entry)
	}
	if len(excluded) == 0 {
		return preferred
	}
	if len(preferred) == 0 {
		for _, day := range weekDays {
			if !excluded[strings.ToLower(day)] {
				preferred = append(preferred, day)
			}
		}
		return preferred
	}
	kept := preferred[:0]
	for _, day := range preferred {
		if !excluded[strings.ToLower(day)] {
			kept = append(kept, day)
		}
	}
	return kept
}
