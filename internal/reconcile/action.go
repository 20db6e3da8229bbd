package reconcile

import (
	"context"
)

// ActionType is the decision for one resource.
type ActionType string

const (
	ActionNoop   ActionType = "noop"
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
)

// Observed is the inspected state of one resource.
type Observed[T any] struct {
	Value  T
	Exists bool
}

// Found wraps an existing observed value.
func Found[T any](v T) Observed[T] {
	return Observed[T]{Value: v, Exists: true}
}

// Absent is the observation of a resource that does not exist.
func Absent[T any]() Observed[T] {
	return Observed[T]{}
}

// Decide compares desired with observed. A missing resource is created, a
// differing one updated, an equal one left alone.
func Decide[T any](desired T, observed Observed[T], equal func(desired, observed T) bool) ActionType {
	if !observed.Exists {
		return ActionCreate
	}
	if equal(desired, observed.Value) {
		return ActionNoop
	}
	return ActionUpdate
}

// DecideEnsure is Decide for resources that are only ever created, never
// modified once present (installed packages, generated keys).
func DecideEnsure[T any](observed Observed[T]) ActionType {
	if observed.Exists {
		return ActionNoop
	}
	return ActionCreate
}

// DecideAbsent is the decision for a resource that must not exist.
func DecideAbsent[T any](observed Observed[T]) ActionType {
	if observed.Exists {
		return ActionDelete
	}
	return ActionNoop
}

// Action is one planned change. Desired and Observed are human-readable
// renderings used in diagnostics only; they must never carry secrets.
type Action struct {
	Kind     string
	Target   string
	Name     string
	Type     ActionType
	Desired  string
	Observed string

	// Subsystem marks actions belonging to an optional subsystem. Their
	// failures are reported as OptionalSubsystemFailure.
	Subsystem string

	Apply func(ctx context.Context) error
}

// Plan is an ordered set of actions.
type Plan struct {
	Actions []Action
}

// Add appends an action to the plan.
func (p *Plan) Add(a Action) {
	p.Actions = append(p.Actions, a)
}

// Changes counts the actions that will call a backend.
func (p *Plan) Changes() int {
	n := 0
	for _, a := range p.Actions {
		if a.Type != ActionNoop {
			n++
		}
	}
	return n
}

// Empty reports whether the plan would change nothing.
func (p *Plan) Empty() bool {
	return p.Changes() == 0
}

// targets groups actions by target, keeping first-seen target order and
// action order within each target.
func (p *Plan) targets() [][]Action {
	index := make(map[string]int)
	var groups [][]Action
	for _, a := range p.Actions {
		i, ok := index[a.Target]
		if !ok {
			i = len(groups)
			index[a.Target] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], a)
	}
	return groups
}
