package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csit-edu/timetable-api/internal/models"
)

func sectionsNamed(ids ...string) []models.Section {
	out := make([]models.Section, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Section{ID: id, Capacity: 30})
	}
	return out
}

func TestBuildGroupsLectureChunkParity(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "CSC101", Name: "Intro to Computing", Type: "Lecture", Year: 1}},
		Sections: sectionsNamed("1/1", "1/2", "1/3", "1/4"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "CSC101::G1::Lecture", groups[0].ID)
	require.Equal(t, []string{"1/1", "1/2", "1/3", "1/4"}, groups[0].SectionIDs)
	require.Equal(t, 90, groups[0].Duration)

	// An odd cohort chunks by three instead.
	in.Sections = sectionsNamed("1/1", "1/2", "1/3", "1/4", "1/5")
	groups, err = BuildGroups(in)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].SectionIDs, 3)
	require.Len(t, groups[1].SectionIDs, 2)
}

func TestBuildGroupsPerSessionKind(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "CSC202", Name: "Systems", Type: "Lecture + Lab + Tutorial", Year: 2}},
		Sections: sectionsNamed("2/1", "2/2", "2/3", "2/4"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)

	byKind := map[models.SessionType]int{}
	for _, g := range groups {
		byKind[g.Kind]++
	}
	require.Equal(t, 1, byKind[models.SessionLecture])
	require.Equal(t, 2, byKind[models.SessionLab])
	require.Equal(t, 4, byKind[models.SessionTutorial])

	for _, g := range groups {
		switch g.Kind {
		case models.SessionLab:
			require.Len(t, g.SectionIDs, 2)
			require.Equal(t, 90, g.Duration)
		case models.SessionTutorial:
			require.Len(t, g.SectionIDs, 1)
			require.Equal(t, 45, g.Duration, "tutorials shrink when the course also runs lecture and lab")
		}
	}
}

func TestBuildGroupsTutorialKeepsFullLengthWithoutLab(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "MTH110", Name: "Calculus", Type: "Lecture + Tutorial", Year: 1}},
		Sections: sectionsNamed("1/1"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)
	for _, g := range groups {
		if g.Kind == models.SessionTutorial {
			require.Equal(t, 90, g.Duration)
		}
	}
}

func TestBuildGroupsCohortRules(t *testing.T) {
	courses := []models.Course{
		{ID: "CSC301", Name: "Algorithms", Type: "Lecture", Year: 3, Shared: true},
	}
	in := Input{
		Courses:  courses,
		Sections: sectionsNamed("3/AID/1", "3/BIF/1", "3/MEC/1", "2/1"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	// Shared third-year courses pool the participating programmes only;
	// 3/MEC/1 is outside the pool and 2/1 is the wrong year.
	require.Equal(t, []string{"3/AID/1", "3/BIF/1"}, groups[0].SectionIDs)

	// Non-shared senior courses match on department prefix.
	in.Courses = []models.Course{{ID: "csc401", Name: "Compilers", Type: "Lecture", Year: 4}}
	in.Sections = sectionsNamed("4/CSC/1", "4/AID/1")
	groups, err = BuildGroups(in)
	require.NoError(t, err)
	require.Equal(t, []string{"4/CSC/1"}, groups[0].SectionIDs)
}

func TestBuildGroupsUnparseableSectionMatchesEverything(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "CSC301", Name: "Algorithms", Type: "Lecture", Year: 3}},
		Sections: sectionsNamed("EXT"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []string{"EXT"}, groups[0].SectionIDs)
}

func TestBuildGroupsEmptyCohortFails(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "CSC301", Name: "Algorithms", Type: "Lecture", Year: 3}},
		Sections: sectionsNamed("1/1"),
	}
	_, err := BuildGroups(in)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	require.Equal(t, "CSC301", confErr.CourseID)
}

func TestBuildGroupsSkipsUnrecognisedDelivery(t *testing.T) {
	in := Input{
		Courses:  []models.Course{{ID: "SEM100", Name: "Seminar", Type: "Seminar", Year: 1}},
		Sections: sectionsNamed("1/1"),
	}
	groups, err := BuildGroups(in)
	require.NoError(t, err)
	require.Empty(t, groups)
}
