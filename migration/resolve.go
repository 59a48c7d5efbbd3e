package migration

import (
	"slices"
)

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Order returns an execution order for targets such that every migration
// appears after all of its transitive dependencies. Dependencies are included
// in the result even if they're not targets themselves. Targets are visited in
// the given order, and the dependencies of each migration in ascending ID
// order, so unrelated migrations keep the order of targets.
//
// It fails with an *Error of CodeMissingDependency if a target or any
// dependency is not in all, and CodeCircularDependency if a cycle is found.
func Order(targets []string, all map[string]Migration) ([]string, error) {
	r := &resolver{all: all, state: map[string]visitState{}, strict: true}
	for _, id := range targets {
		if _, ok := all[id]; !ok {
			return nil, &Error{Code: CodeMissingDependency, Related: id}
		}
		if err := r.visit(id); err != nil {
			return nil, err
		}
	}

	return r.order, nil
}

type resolver struct {
	all   map[string]Migration
	state map[string]visitState
	stack []string
	order []string
	// strict makes missing dependencies and cycles errors. Otherwise missing
	// dependencies are ignored, and cycles are broken at the re-entered node.
	strict bool
}

func (r *resolver) visit(id string) error {
	switch r.state[id] {
	case visited:
		return nil
	case visiting:
		if !r.strict {
			return nil
		}
		return &Error{
			Code: CodeCircularDependency,
			ID:   id,
			Path: append(slices.Clone(r.stack), id),
		}
	}

	m := r.all[id]
	r.state[id] = visiting
	r.stack = append(r.stack, id)

	deps := slices.Clone(m.Depends)
	slices.Sort(deps)
	for _, dep := range slices.Compact(deps) {
		if _, ok := r.all[dep]; !ok {
			if !r.strict {
				continue
			}
			return &Error{Code: CodeMissingDependency, ID: id, Related: dep}
		}
		if err := r.visit(dep); err != nil {
			return err
		}
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[id] = visited
	r.order = append(r.order, id)

	return nil
}

// rollbackOrder returns the order in which the selected migrations should be
// rolled back: the reverse of the selection, except that a selected migration
// always comes before any selected migration it depends on, directly or
// transitively. Broken dependency edges don't prevent a rollback, so missing
// dependencies and cycles are tolerated.
func rollbackOrder(selection []string, all map[string]Migration) []string {
	r := &resolver{all: all, state: map[string]visitState{}}
	for _, id := range selection {
		// The error is always nil in non-strict mode.
		_ = r.visit(id)
	}

	selected := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		selected[id] = struct{}{}
	}

	order := make([]string, 0, len(selection))
	for i := len(r.order) - 1; i >= 0; i-- {
		if _, ok := selected[r.order[i]]; ok {
			order = append(order, r.order[i])
		}
	}

	return order
}
