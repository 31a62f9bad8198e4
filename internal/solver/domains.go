package solver

import "github.com/csit-edu/timetable-api/internal/models"

// DomainSet is the output of domain construction: per-group candidate lists,
// the strict-pass rejection tallies, which fallback rungs each group needed,
// and the groups set aside because nothing survived.
type DomainSet struct {
	ByGroup     map[string][]Candidate
	Rejections  map[string]GroupRejections
	Relaxations map[string][]Relaxation
	SetAside    []EmptyDomainError
}

// candidateFilter selects which medium constraints a generation pass skips.
// Role fit and duration are hard and never skipped.
type candidateFilter struct {
	allowUnqualified  bool
	allowRoomMismatch bool
}

// fallbackRungs is the permissive ladder, mildest relaxation first. The
// strict rung is index zero.
var fallbackRungs = []struct {
	filter      candidateFilter
	relaxations []Relaxation
}{
	{candidateFilter{}, nil},
	{candidateFilter{allowUnqualified: true}, []Relaxation{RelaxQualification}},
	{candidateFilter{allowRoomMismatch: true}, []Relaxation{RelaxRoomType}},
	{candidateFilter{allowUnqualified: true, allowRoomMismatch: true}, []Relaxation{RelaxQualification, RelaxRoomType}},
}

func (t GroupRejections) bump(reason RejectReason) {
	if t != nil {
		t[reason]++
	}
}

// BuildDomains computes the candidate domain for every group. Each group is
// filtered strictly first; in permissive mode a group with an empty strict
// domain walks the fallback ladder and keeps the first rung that yields
// values. Groups that stay empty are set aside with their strict tallies.
//
// Rejection tallies always describe the strict pass, so diagnostics explain
// why relaxation was needed rather than what the winning rung kept.
func BuildDomains(in Input, groups []Group, permissive bool) DomainSet {
	ds := DomainSet{
		ByGroup:     make(map[string][]Candidate, len(groups)),
		Rejections:  make(map[string]GroupRejections, len(groups)),
		Relaxations: make(map[string][]Relaxation),
	}
	for _, g := range groups {
		tally := GroupRejections{}
		domain := generateCandidates(in, g, fallbackRungs[0].filter, tally)
		ds.Rejections[g.ID] = tally

		if len(domain) == 0 && permissive {
			for _, rung := range fallbackRungs[1:] {
				domain = generateCandidates(in, g, rung.filter, nil)
				if len(domain) > 0 {
					ds.Relaxations[g.ID] = rung.relaxations
					break
				}
			}
		}
		if len(domain) == 0 {
			ds.SetAside = append(ds.SetAside, EmptyDomainError{GroupID: g.ID, Reasons: tally})
			continue
		}
		ds.ByGroup[g.ID] = domain
	}
	return ds
}

// generateCandidates enumerates (timeslot, room, instructor) placements for
// one group under the given filter. The tally may be nil on relaxed passes.
func generateCandidates(in Input, g Group, f candidateFilter, tally GroupRejections) []Candidate {
	slots := make([]models.TimeSlot, 0, len(in.TimeSlots))
	for _, slot := range in.TimeSlots {
		if slot.Duration != g.Duration {
			tally.bump(ReasonDuration)
			continue
		}
		slots = append(slots, slot)
	}

	rooms := make([]models.Room, 0, len(in.Rooms))
	for _, room := range in.Rooms {
		if !roomFits(g.Kind, room, f.allowRoomMismatch) {
			tally.bump(ReasonRoomType)
			continue
		}
		rooms = append(rooms, room)
	}

	staff := make([]models.Instructor, 0, len(in.Instructors))
	for _, inst := range in.Instructors {
		if reason, ok := instructorFits(g, inst, f.allowUnqualified); !ok {
			tally.bump(reason)
			continue
		}
		staff = append(staff, inst)
	}

	candidates := make([]Candidate, 0, len(slots)*len(rooms)*len(staff))
	for _, slot := range slots {
		for _, room := range rooms {
			for _, inst := range staff {
				offDay := !inst.PrefersDay(slot.Day)
				if offDay {
					tally.bump(ReasonDayPreference)
				}
				candidates = append(candidates, Candidate{
					Slot:         slot,
					RoomID:       room.ID,
					InstructorID: inst.ID,
					OffDay:       offDay,
				})
			}
		}
	}
	return candidates
}

// roomFits applies the room-type rules. Lab rooms pair with lab sessions in
// both directions regardless of relaxation; the lecture and tutorial
// mappings are the relaxable part.
func roomFits(kind models.SessionType, room models.Room, relaxed bool) bool {
	if kind == models.SessionLab {
		return room.IsLab()
	}
	if room.IsLab() {
		return false
	}
	if relaxed {
		return true
	}
	if kind == models.SessionTutorial {
		return room.IsTutorialRoom()
	}
	return !room.IsTutorialRoom()
}

// instructorFits applies role and qualification rules. Assistants take labs
// and tutorials, professorial staff take lectures; the role rule never
// relaxes, so it is checked first and dominates the tally.
func instructorFits(g Group, inst models.Instructor, allowUnqualified bool) (RejectReason, bool) {
	switch g.Kind {
	case models.SessionLab, models.SessionTutorial:
		if inst.IsProfessor() {
			return ReasonRoleMismatch, false
		}
	default:
		if inst.IsAssistant() {
			return ReasonRoleMismatch, false
		}
	}
	if !allowUnqualified && !inst.QualifiedFor(g.CourseID) {
		return ReasonUnqualified, false
	}
	return "", true
}
