package solver

// occupancy tracks what every timeslot already hosts, one set per resource
// dimension. Per-slot sets are deleted once emptied so the maps never keep
// stale keys after backtracking.
type occupancy struct {
	instructors map[string]map[string]struct{}
	rooms       map[string]map[string]struct{}
	sections    map[string]map[string]struct{}
}

func newOccupancy() *occupancy {
	return &occupancy{
		instructors: make(map[string]map[string]struct{}),
		rooms:       make(map[string]map[string]struct{}),
		sections:    make(map[string]map[string]struct{}),
	}
}

// conflicts reports whether placing the candidate would double-book its
// timeslot: same instructor, same room, or any section the group contains.
// Static filters (role, duration, room type, qualification) are already baked
// into the domains, so this is the only check the search repeats per node.
func (o *occupancy) conflicts(g Group, c Candidate) bool {
	slotID := c.Slot.ID
	if _, busy := o.instructors[slotID][c.InstructorID]; busy {
		return true
	}
	if _, busy := o.rooms[slotID][c.RoomID]; busy {
		return true
	}
	if taken := o.sections[slotID]; taken != nil {
		for _, sec := range g.SectionIDs {
			if _, busy := taken[sec]; busy {
				return true
			}
		}
	}
	return false
}

func (o *occupancy) place(g Group, c Candidate) {
	slotID := c.Slot.ID
	occupy(o.instructors, slotID, c.InstructorID)
	occupy(o.rooms, slotID, c.RoomID)
	for _, sec := range g.SectionIDs {
		occupy(o.sections, slotID, sec)
	}
}

func (o *occupancy) remove(g Group, c Candidate) {
	slotID := c.Slot.ID
	release(o.instructors, slotID, c.InstructorID)
	release(o.rooms, slotID, c.RoomID)
	for _, sec := range g.SectionIDs {
		release(o.sections, slotID, sec)
	}
}

func occupy(m map[string]map[string]struct{}, slotID, id string) {
	set := m[slotID]
	if set == nil {
		set = make(map[string]struct{})
		m[slotID] = set
	}
	set[id] = struct{}{}
}

func release(m map[string]map[string]struct{}, slotID, id string) {
	set := m[slotID]
	if set == nil {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, slotID)
	}
}
