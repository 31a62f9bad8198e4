package solver

import (
	"context"
	"time"
)

// Solve runs one complete scheduling attempt: group construction, domain
// filtering, then forward-checking search over the groups that kept a
// non-empty domain. Groups set aside during domain construction count
// against completion and force a PARTIALLY_SOLVED outcome at best.
//
// The context cancels the run early; cancellation reports TIMED_OUT like an
// elapsed budget.
func Solve(ctx context.Context, in Input, opts Options) (*Result, error) {
	started := time.Now()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	groups, err := BuildGroups(in)
	if err != nil {
		return nil, err
	}

	ds := BuildDomains(in, groups, opts.Permissive)
	diag := Diagnostics{
		Rejections:   ds.Rejections,
		Relaxations:  ds.Relaxations,
		EmptyDomains: ds.SetAside,
	}

	if len(groups) == 0 {
		diag.Elapsed = time.Since(started)
		return &Result{State: StateSolved, Assignments: []Assignment{}, Groups: 0, Completion: 1.0, Diagnostics: diag}, nil
	}

	live := make([]Group, 0, len(groups))
	for _, g := range groups {
		if _, ok := ds.ByGroup[g.ID]; ok {
			live = append(live, g)
		}
	}

	s := newSearcher(ctx, live, ds.ByGroup, started.Add(opts.TimeBudget))
	outcome := s.search(0)

	diag.Nodes = s.nodes
	diag.Backtracks = s.backtracks
	diag.Prunes = s.prunes
	diag.MaxDepth = s.maxDepth
	diag.Elapsed = time.Since(started)

	assignments := s.bestAssignments()
	completion := float64(len(assignments)) / float64(len(groups))

	var state State
	switch outcome {
	case outcomeTimedOut:
		state = StateTimedOut
	case outcomeSolved:
		if len(ds.SetAside) == 0 {
			state = StateSolved
		} else {
			state = StatePartiallySolved
		}
	default:
		state = StateExhausted
	}

	return &Result{
		State:       state,
		Assignments: assignments,
		Groups:      len(groups),
		Completion:  completion,
		Diagnostics: diag,
	}, nil
}

func validateInput(in Input) error {
	switch {
	case len(in.Courses) == 0:
		return &ValidationError{Field: "courses", Detail: "at least one course is required"}
	case len(in.Instructors) == 0:
		return &ValidationError{Field: "instructors", Detail: "at least one instructor is required"}
	case len(in.Rooms) == 0:
		return &ValidationError{Field: "rooms", Detail: "at least one room is required"}
	case len(in.TimeSlots) == 0:
		return &ValidationError{Field: "timeslots", Detail: "at least one timeslot is required"}
	case len(in.Sections) == 0:
		return &ValidationError{Field: "sections", Detail: "at least one section is required"}
	}
	seen := make(map[string]struct{}, len(in.TimeSlots))
	for _, slot := range in.TimeSlots {
		if slot.ID == "" {
			return &ValidationError{Field: "timeslots", Detail: "timeslot without an ID"}
		}
		if _, dup := seen[slot.ID]; dup {
			return &ValidationError{Field: "timeslots", Detail: "duplicate timeslot " + slot.ID}
		}
		seen[slot.ID] = struct{}{}
	}
	return nil
}
