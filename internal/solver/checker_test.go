package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csit-edu/timetable-api/internal/models"
)

func checkerFixture() (Group, Candidate) {
	g := Group{ID: "CSC101::G1::Lecture", SectionIDs: []string{"1/1", "1/2"}}
	c := Candidate{
		Slot:         models.TimeSlot{ID: "Sunday@9:00 AM", Day: "Sunday", Start: "9:00 AM", End: "10:30 AM", Duration: 90},
		RoomID:       "R101",
		InstructorID: "P1",
	}
	return g, c
}

func TestOccupancyConflictsPerResource(t *testing.T) {
	g, c := checkerFixture()
	occ := newOccupancy()
	require.False(t, occ.conflicts(g, c), "empty trackers accept anything")
	occ.place(g, c)

	other := Group{ID: "MTH110::G1::Lecture", SectionIDs: []string{"1/3"}}

	sameInstructor := c
	sameInstructor.RoomID = "R102"
	require.True(t, occ.conflicts(other, sameInstructor))

	sameRoom := c
	sameRoom.InstructorID = "P2"
	require.True(t, occ.conflicts(other, sameRoom))

	free := c
	free.RoomID = "R102"
	free.InstructorID = "P2"
	require.False(t, occ.conflicts(other, free))

	// Any overlap in section membership blocks the slot.
	overlapping := Group{ID: "MTH110::G2::Lecture", SectionIDs: []string{"1/2", "1/4"}}
	require.True(t, occ.conflicts(overlapping, free))

	// The same contention is invisible on a different timeslot.
	elsewhere := c
	elsewhere.Slot = models.TimeSlot{ID: "Monday@9:00 AM", Day: "Monday", Start: "9:00 AM", End: "10:30 AM", Duration: 90}
	require.False(t, occ.conflicts(g, elsewhere))
}

func TestOccupancyRemoveRestoresCleanState(t *testing.T) {
	g, c := checkerFixture()
	occ := newOccupancy()

	occ.place(g, c)
	require.True(t, occ.conflicts(g, c))

	occ.remove(g, c)
	require.False(t, occ.conflicts(g, c))
	require.Empty(t, occ.instructors, "emptied slot sets are dropped, not kept as stale keys")
	require.Empty(t, occ.rooms)
	require.Empty(t, occ.sections)
}

func TestOccupancyRemoveLeavesOtherOccupantsAlone(t *testing.T) {
	g, c := checkerFixture()
	occ := newOccupancy()
	occ.place(g, c)

	other := Group{ID: "MTH110::G1::Lecture", SectionIDs: []string{"1/3"}}
	otherVal := Candidate{Slot: c.Slot, RoomID: "R102", InstructorID: "P2"}
	occ.place(other, otherVal)

	occ.remove(g, c)
	require.True(t, occ.conflicts(g, otherVal), "the remaining occupant still holds its resources")
	require.False(t, occ.conflicts(g, c))
}
