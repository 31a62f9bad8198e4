package solver

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/csit-edu/timetable-api/internal/models"
)

const (
	lectureDuration = 90
	labDuration     = 90
	// Tutorials shrink to 45 minutes when the course also runs both a
	// lecture and a lab, to fit the cohort's weekly contact budget.
	shortTutorialDuration = 45
	fullTutorialDuration  = 90
)

// BuildGroups derives the schedulable groups for every course: the course's
// eligible sections, sorted by ID, chunked per session kind. Tutorials meet
// one section at a time, labs two, lectures three or four depending on
// cohort parity.
//
// A course whose delivery descriptor names no recognised session kind
// contributes nothing. A course whose cohort has no sections at all is a
// data inconsistency and fails the build.
func BuildGroups(in Input) ([]Group, error) {
	groups := make([]Group, 0, len(in.Courses)*2)
	for _, course := range in.Courses {
		kinds := course.SessionKinds()
		if len(kinds) == 0 {
			continue
		}
		cohort := cohortSections(course, in.Sections)
		if len(cohort) == 0 {
			return nil, &ConfigurationError{CourseID: course.ID, Detail: "no sections match its cohort"}
		}
		for _, kind := range kinds {
			size := groupSize(kind, len(cohort))
			for idx, chunk := range lo.Chunk(cohort, size) {
				groups = append(groups, Group{
					ID:         fmt.Sprintf("%s::G%d::%s", course.ID, idx+1, kind),
					CourseID:   course.ID,
					CourseName: course.Name,
					Kind:       kind,
					SectionIDs: chunk,
					Duration:   sessionDuration(course, kind),
				})
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func cohortSections(course models.Course, sections []models.Section) []string {
	ids := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.EligibleForCourse(course) {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func groupSize(kind models.SessionType, cohortSize int) int {
	switch kind {
	case models.SessionTutorial:
		return 1
	case models.SessionLab:
		return 2
	default:
		if cohortSize%2 == 0 {
			return 4
		}
		return 3
	}
}

func sessionDuration(course models.Course, kind models.SessionType) int {
	switch kind {
	case models.SessionLab:
		return labDuration
	case models.SessionTutorial:
		if course.HasLecture() && course.HasLab() {
			return shortTutorialDuration
		}
		return fullTutorialDuration
	default:
		return lectureDuration
	}
}
