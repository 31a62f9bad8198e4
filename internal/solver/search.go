package solver

import (
	"context"
	"sort"
	"time"
)

type searchOutcome int

const (
	outcomeExhausted searchOutcome = iota
	outcomeSolved
	outcomeTimedOut
)

// searcher runs forward-checking backtracking over the live groups. Groups
// stay sorted by ID so heuristic ties resolve deterministically.
type searcher struct {
	ctx      context.Context
	deadline time.Time

	groups    []Group
	byID      map[string]Group
	domains   map[string][]Candidate
	neighbors map[string][]string
	shared    map[string]map[string]bool

	assigned map[string]Candidate
	occupied *occupancy
	best     map[string]Candidate

	nodes      int
	backtracks int
	prunes     int
	maxDepth   int
}

func newSearcher(ctx context.Context, groups []Group, domains map[string][]Candidate, deadline time.Time) *searcher {
	byID := make(map[string]Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	return &searcher{
		ctx:       ctx,
		deadline:  deadline,
		groups:    groups,
		byID:      byID,
		domains:   domains,
		neighbors: computeNeighbors(groups, domains),
		shared:    computeSharedSections(groups),
		assigned:  make(map[string]Candidate, len(groups)),
		occupied:  newOccupancy(),
		best:      map[string]Candidate{},
	}
}

// computeNeighbors links groups whose initial domains share at least one
// timeslot. Only neighbors can ever contend for a resource, so forward
// checking is restricted to them.
func computeNeighbors(groups []Group, domains map[string][]Candidate) map[string][]string {
	slotSets := make(map[string]map[string]struct{}, len(groups))
	for _, g := range groups {
		set := make(map[string]struct{})
		for _, c := range domains[g.ID] {
			set[c.Slot.ID] = struct{}{}
		}
		slotSets[g.ID] = set
	}
	neighbors := make(map[string][]string, len(groups))
	for i, a := range groups {
		for _, b := range groups[i+1:] {
			if slotSetsIntersect(slotSets[a.ID], slotSets[b.ID]) {
				neighbors[a.ID] = append(neighbors[a.ID], b.ID)
				neighbors[b.ID] = append(neighbors[b.ID], a.ID)
			}
		}
	}
	return neighbors
}

func slotSetsIntersect(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for id := range a {
		if _, ok := b[id]; ok {
			return true
		}
	}
	return false
}

func computeSharedSections(groups []Group) map[string]map[string]bool {
	bySection := make(map[string][]string)
	for _, g := range groups {
		for _, sec := range g.SectionIDs {
			bySection[sec] = append(bySection[sec], g.ID)
		}
	}
	shared := make(map[string]map[string]bool, len(groups))
	mark := func(a, b string) {
		if shared[a] == nil {
			shared[a] = make(map[string]bool)
		}
		shared[a][b] = true
	}
	for _, ids := range bySection {
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				if a == b {
					continue
				}
				mark(a, b)
				mark(b, a)
			}
		}
	}
	return shared
}

func (s *searcher) sharesSection(a, b string) bool {
	return s.shared[a][b]
}

func (s *searcher) expired() bool {
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			return true
		default:
		}
	}
	return !time.Now().Before(s.deadline)
}

// nextGroup picks the unassigned group with the smallest live domain,
// breaking ties by the larger count of unassigned neighbors and finally by
// group ID.
func (s *searcher) nextGroup() (Group, bool) {
	var pick Group
	var bestSize, bestDegree int
	found := false
	for _, g := range s.groups {
		if _, done := s.assigned[g.ID]; done {
			continue
		}
		size := len(s.domains[g.ID])
		degree := 0
		for _, n := range s.neighbors[g.ID] {
			if _, done := s.assigned[n]; !done {
				degree++
			}
		}
		if !found || size < bestSize || (size == bestSize && degree > bestDegree) {
			pick, bestSize, bestDegree, found = g, size, degree, true
		}
	}
	return pick, found
}

// orderValues sorts the live domain least-constraining first: ascending by
// how many values the candidate would eliminate from unassigned neighbors,
// then preferring candidates on the instructor's preferred days.
func (s *searcher) orderValues(g Group) []Candidate {
	domain := s.domains[g.ID]
	type scored struct {
		c    Candidate
		elim int
		day  int
	}
	vals := make([]scored, len(domain))
	for i, c := range domain {
		elim := 0
		for _, nID := range s.neighbors[g.ID] {
			if _, done := s.assigned[nID]; done {
				continue
			}
			shareSec := s.sharesSection(g.ID, nID)
			for _, v := range s.domains[nID] {
				if v.Slot.ID != c.Slot.ID {
					continue
				}
				if shareSec || v.InstructorID == c.InstructorID || v.RoomID == c.RoomID {
					elim++
				}
			}
		}
		day := 0
		if c.OffDay {
			day = 1
		}
		vals[i] = scored{c: c, elim: elim, day: day}
	}
	sort.SliceStable(vals, func(i, j int) bool {
		if vals[i].elim != vals[j].elim {
			return vals[i].elim < vals[j].elim
		}
		return vals[i].day < vals[j].day
	})
	ordered := make([]Candidate, len(domain))
	for i, v := range vals {
		ordered[i] = v.c
	}
	return ordered
}

// forwardCheck prunes neighbor values that collide with the tentative
// placement: same timeslot and a shared instructor, room or section. It
// reports the pruned values per neighbor and whether every neighbor kept a
// non-empty domain.
func (s *searcher) forwardCheck(g Group, c Candidate) (map[string][]Candidate, bool) {
	removed := make(map[string][]Candidate)
	for _, nID := range s.neighbors[g.ID] {
		if _, done := s.assigned[nID]; done {
			continue
		}
		shareSec := s.sharesSection(g.ID, nID)
		var keep, cut []Candidate
		for _, v := range s.domains[nID] {
			if v.Slot.ID == c.Slot.ID && (shareSec || v.InstructorID == c.InstructorID || v.RoomID == c.RoomID) {
				cut = append(cut, v)
			} else {
				keep = append(keep, v)
			}
		}
		if len(cut) == 0 {
			continue
		}
		s.domains[nID] = keep
		removed[nID] = cut
		s.prunes += len(cut)
		if len(keep) == 0 {
			return removed, false
		}
	}
	return removed, true
}

func (s *searcher) restore(removed map[string][]Candidate) {
	for id, vals := range removed {
		s.domains[id] = append(s.domains[id], vals...)
	}
}

// noteProgress snapshots the deepest assignment reached so far, so timeouts
// and exhaustion can still report the best partial schedule.
func (s *searcher) noteProgress() {
	if len(s.assigned) <= len(s.best) {
		return
	}
	snap := make(map[string]Candidate, len(s.assigned))
	for id, c := range s.assigned {
		snap[id] = c
	}
	s.best = snap
}

// search recursively extends the assignment. The budget check runs once per
// node, before anything else.
func (s *searcher) search(depth int) searchOutcome {
	s.nodes++
	if s.expired() {
		return outcomeTimedOut
	}
	if len(s.assigned) == len(s.groups) {
		return outcomeSolved
	}
	g, ok := s.nextGroup()
	if !ok {
		return outcomeSolved
	}
	if len(s.domains[g.ID]) == 0 {
		return outcomeExhausted
	}
	for _, c := range s.orderValues(g) {
		if s.occupied.conflicts(g, c) {
			continue
		}
		s.assigned[g.ID] = c
		s.occupied.place(g, c)
		if depth+1 > s.maxDepth {
			s.maxDepth = depth + 1
		}
		s.noteProgress()

		removed, viable := s.forwardCheck(g, c)
		if !viable {
			s.restore(removed)
			s.occupied.remove(g, c)
			delete(s.assigned, g.ID)
			continue
		}
		out := s.search(depth + 1)
		if out != outcomeExhausted {
			return out
		}
		s.restore(removed)
		s.occupied.remove(g, c)
		delete(s.assigned, g.ID)
		s.backtracks++
	}
	return outcomeExhausted
}

// bestAssignments materialises the deepest snapshot, ordered by group ID.
func (s *searcher) bestAssignments() []Assignment {
	out := make([]Assignment, 0, len(s.best))
	for id, c := range s.best {
		g := s.byID[id]
		out = append(out, Assignment{Group: g, Slot: c.Slot, RoomID: c.RoomID, InstructorID: c.InstructorID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group.ID < out[j].Group.ID })
	return out
}
