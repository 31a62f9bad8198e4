package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csit-edu/timetable-api/internal/models"
)

func solveFixtureInput() Input {
	return Input{
		Courses: []models.Course{
			{ID: "CSC101", Name: "Intro to Computing", Type: "Lecture", Year: 1},
			{ID: "MTH110", Name: "Calculus", Type: "Lecture", Year: 1},
		},
		Instructors: []models.Instructor{
			{ID: "P1", Name: "Dr. Hana", Role: "Professor", Qualified: []string{"CSC101"}},
			{ID: "P2", Name: "Dr. Imad", Role: "Professor", Qualified: []string{"MTH110"}},
		},
		Rooms: []models.Room{
			{ID: "R101", Type: "Lecture", Capacity: 120},
			{ID: "R102", Type: "Lecture", Capacity: 80},
		},
		TimeSlots: []models.TimeSlot{
			slot("Sunday@9:00 AM", "Sunday", "9:00 AM", "10:30 AM", 90),
			slot("Monday@9:00 AM", "Monday", "9:00 AM", "10:30 AM", 90),
			slot("Tuesday@9:00 AM", "Tuesday", "9:00 AM", "10:30 AM", 90),
		},
		Sections: sectionsNamed("1/1", "1/2"),
	}
}

// assertNoDoubleBooking checks the occupancy invariants on a final result:
// within one timeslot no instructor, room or section appears twice.
func assertNoDoubleBooking(t *testing.T, res *Result) {
	t.Helper()
	type slotKey struct{ slotID, resource string }
	seen := map[slotKey]string{}
	record := func(slotID, resource, groupID string) {
		key := slotKey{slotID, resource}
		if prev, dup := seen[key]; dup {
			t.Fatalf("%s double-booked in %s by %s and %s", resource, slotID, prev, groupID)
		}
		seen[key] = groupID
	}
	for _, a := range res.Assignments {
		record(a.Slot.ID, "instructor:"+a.InstructorID, a.Group.ID)
		record(a.Slot.ID, "room:"+a.RoomID, a.Group.ID)
		for _, sec := range a.Group.SectionIDs {
			record(a.Slot.ID, "section:"+sec, a.Group.ID)
		}
	}
}

func TestSolveCleanDatasetFullySolves(t *testing.T) {
	in := solveFixtureInput()
	res, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)

	require.Equal(t, StateSolved, res.State)
	require.InDelta(t, 1.0, res.Completion, 1e-9)
	require.Len(t, res.Assignments, 2)
	require.Empty(t, res.Diagnostics.EmptyDomains)
	for _, tally := range res.Diagnostics.Rejections {
		require.Zero(t, tally[ReasonRoleMismatch])
	}
	assertNoDoubleBooking(t, res)
}

func TestSolveStaffedLectureAndLabCourse(t *testing.T) {
	in := Input{
		Courses: []models.Course{
			{ID: "CSC110", Name: "Programming I", Type: "Lecture + Lab", Year: 1},
		},
		Instructors: []models.Instructor{
			{ID: "P1", Name: "Dr. Hana", Role: "Professor", Qualified: []string{"CSC110"}},
			{ID: "A1", Name: "Sami", Role: "Teaching Assistant", Qualified: []string{"CSC110"}},
		},
		Rooms: []models.Room{
			{ID: "R101", Type: "Lecture", Capacity: 120},
			{ID: "L201", Type: "Lab A", Capacity: 40},
		},
		TimeSlots: []models.TimeSlot{
			slot("Sunday@9:00 AM", "Sunday", "9:00 AM", "10:30 AM", 90),
			slot("Sunday@11:00 AM", "Sunday", "11:00 AM", "12:30 PM", 90),
			slot("Monday@9:00 AM", "Monday", "9:00 AM", "10:30 AM", 90),
			slot("Monday@11:00 AM", "Monday", "11:00 AM", "12:30 PM", 90),
		},
		Sections: sectionsNamed("1/1", "1/2", "1/3", "1/4"),
	}
	res, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)

	// One lecture group of four sections plus two lab pairs.
	require.Equal(t, StateSolved, res.State)
	require.InDelta(t, 1.0, res.Completion, 1e-9)
	require.Len(t, res.Assignments, 3)
	require.Empty(t, res.Diagnostics.EmptyDomains)

	for _, a := range res.Assignments {
		switch a.Group.Kind {
		case models.SessionLab:
			require.Equal(t, "A1", a.InstructorID)
			require.Equal(t, "L201", a.RoomID)
		case models.SessionLecture:
			require.Equal(t, "P1", a.InstructorID)
			require.Equal(t, "R101", a.RoomID)
		}
	}
	assertNoDoubleBooking(t, res)
}

func TestSolveRoleMismatchPartiallySolvesEvenPermissive(t *testing.T) {
	in := solveFixtureInput()
	in.Courses = append(in.Courses, models.Course{
		ID: "CSC120", Name: "Programming Lab", Type: "Lecture+Lab", Year: 1,
	})
	in.Rooms = append(in.Rooms, models.Room{ID: "L201", Type: "Lab A", Capacity: 40})
	// Nobody on staff may run labs: professors are excluded by role and the
	// rule never relaxes.
	res, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second, Permissive: true})
	require.NoError(t, err)

	require.Equal(t, StatePartiallySolved, res.State)
	require.Less(t, res.Completion, 1.0)
	require.NotEmpty(t, res.Diagnostics.EmptyDomains)
	for _, failure := range res.Diagnostics.EmptyDomains {
		require.Contains(t, failure.GroupID, "Lab")
		require.Positive(t, failure.Reasons[ReasonRoleMismatch])
	}
	assertNoDoubleBooking(t, res)
}

func TestSolveZeroBudgetTimesOut(t *testing.T) {
	in := solveFixtureInput()
	res, err := Solve(context.Background(), in, Options{TimeBudget: 0})
	require.NoError(t, err)

	require.Equal(t, StateTimedOut, res.State)
	require.Zero(t, res.Completion)
	require.Empty(t, res.Assignments)
}

func TestSolveContendingGroupsSpreadAcrossSlots(t *testing.T) {
	// Eight sections chunk into two lecture groups that want the same
	// professor and the only room, so they must land on distinct timeslots.
	in := Input{
		Courses: []models.Course{
			{ID: "CSC101", Name: "Intro to Computing", Type: "Lecture", Year: 1},
		},
		Instructors: []models.Instructor{
			{ID: "P1", Name: "Dr. Hana", Role: "Professor", Qualified: []string{"CSC101"}},
		},
		Rooms: []models.Room{
			{ID: "R101", Type: "Lecture", Capacity: 240},
		},
		TimeSlots: []models.TimeSlot{
			slot("Sunday@9:00 AM", "Sunday", "9:00 AM", "10:30 AM", 90),
			slot("Monday@9:00 AM", "Monday", "9:00 AM", "10:30 AM", 90),
		},
		Sections: sectionsNamed("1/1", "1/2", "1/3", "1/4", "1/5", "1/6", "1/7", "1/8"),
	}
	res, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)

	require.Equal(t, StateSolved, res.State)
	require.Len(t, res.Assignments, 2)
	require.NotEqual(t, res.Assignments[0].Slot.ID, res.Assignments[1].Slot.ID)
	assertNoDoubleBooking(t, res)
}

func TestSolveExhaustsWhenSlotsCannotFit(t *testing.T) {
	// Two groups, one slot, one room: no complete assignment exists and the
	// search space is tiny enough to explore fully.
	in := Input{
		Courses: []models.Course{
			{ID: "CSC101", Name: "Intro to Computing", Type: "Lecture", Year: 1},
		},
		Instructors: []models.Instructor{
			{ID: "P1", Name: "Dr. Hana", Role: "Professor", Qualified: []string{"CSC101"}},
		},
		Rooms: []models.Room{
			{ID: "R101", Type: "Lecture", Capacity: 240},
		},
		TimeSlots: []models.TimeSlot{
			slot("Sunday@9:00 AM", "Sunday", "9:00 AM", "10:30 AM", 90),
		},
		Sections: sectionsNamed("1/1", "1/2", "1/3", "1/4", "1/5", "1/6", "1/7", "1/8"),
	}
	res, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)

	require.Equal(t, StateExhausted, res.State)
	require.Len(t, res.Assignments, 1, "best partial keeps the deepest attempt")
	require.InDelta(t, 0.5, res.Completion, 1e-9)
	require.Positive(t, res.Diagnostics.Nodes)
}

func TestSolveCancelledContextTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Solve(ctx, solveFixtureInput(), Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, StateTimedOut, res.State)
}

func TestSolveValidatesInput(t *testing.T) {
	in := solveFixtureInput()
	in.Courses = nil
	_, err := Solve(context.Background(), in, Options{TimeBudget: time.Second})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "courses", valErr.Field)

	in = solveFixtureInput()
	in.TimeSlots = append(in.TimeSlots, in.TimeSlots[0])
	_, err = Solve(context.Background(), in, Options{TimeBudget: time.Second})
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "timeslots", valErr.Field)
}

func TestSolveIsDeterministic(t *testing.T) {
	in := solveFixtureInput()
	in.Courses = append(in.Courses, models.Course{ID: "PHY150", Name: "Mechanics", Type: "Lecture", Year: 1})
	in.Instructors = append(in.Instructors, models.Instructor{ID: "P3", Name: "Dr. Rime", Role: "Professor", Qualified: []string{"PHY150"}})

	first, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)
	second, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)

	require.Equal(t, first.State, second.State)
	require.Equal(t, first.Assignments, second.Assignments)
}

func TestSolvePermissiveLadderFillsUnqualified(t *testing.T) {
	in := solveFixtureInput()
	// P2 is the only instructor and is not qualified for CSC101.
	in.Courses = in.Courses[:1]
	in.Instructors = []models.Instructor{
		{ID: "P2", Name: "Dr. Imad", Role: "Professor", Qualified: []string{"MTH110"}},
	}

	strict, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, StatePartiallySolved, strict.State)
	require.Zero(t, strict.Completion)

	relaxed, err := Solve(context.Background(), in, Options{TimeBudget: 5 * time.Second, Permissive: true})
	require.NoError(t, err)
	require.Equal(t, StateSolved, relaxed.State)
	require.InDelta(t, 1.0, relaxed.Completion, 1e-9)
	require.NotEmpty(t, relaxed.Diagnostics.Relaxations)
}
