// Package evaluator implements the deterministic step-completion registry
// that sits beneath the LLM-driven re-planning loop.
package evaluator

import (
	"strings"

	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// Status is the outcome of evaluating one step against a world snapshot.
type Status int

const (
	NotApplicable Status = iota
	InProgress
	Complete
	Blocked
)

// Snapshot is the read-only world view an evaluator is judged against.
// Evaluators never mutate any of it.
type Snapshot struct {
	Npc   *worldmodel.Npc
	Room  *worldmodel.Room
	World *worldmodel.World
}

// Result is what Evaluate returns.
type Result struct {
	Status          Status
	Reason          string
	SuggestedAction string // e.g. "[cmd:go north]"
}

// Evaluator is one pluggable deterministic step check.
type Evaluator interface {
	// Name identifies the evaluator for tracing.
	Name() string
	// AppliesToGoal reports whether this evaluator applies to the given
	// goal type. Empty applicable-list evaluators apply to every goal.
	AppliesToGoal(goalType string) bool
	// AppliesToStep reports whether this evaluator applies to the given
	// step text. Empty applicable-list evaluators apply to every step.
	AppliesToStep(stepText string) bool
	// Evaluate judges one step against the current world snapshot.
	Evaluate(goal *npctypes.NpcGoal, stepText string, snap Snapshot) Result
}

// Registry tries registered evaluators in insertion order; the first
// result that is not NotApplicable wins.
type Registry struct {
	evaluators []Evaluator
}

// NewRegistry builds a registry, preserving insertion order.
func NewRegistry(evaluators ...Evaluator) *Registry {
	return &Registry{evaluators: append([]Evaluator(nil), evaluators...)}
}

// Register appends an evaluator to the end of the try order.
func (r *Registry) Register(e Evaluator) {
	r.evaluators = append(r.evaluators, e)
}

// Evaluate runs the registry against one step, returning the first
// non-NotApplicable result, or {NotApplicable} if nothing matched.
func (r *Registry) Evaluate(goal *npctypes.NpcGoal, stepText string, snap Snapshot) Result {
	goalType := ""
	if goal != nil {
		goalType = goal.GoalType
	}
	for _, e := range r.evaluators {
		if !e.AppliesToGoal(goalType) || !e.AppliesToStep(stepText) {
			continue
		}
		res := e.Evaluate(goal, stepText, snap)
		if res.Status != NotApplicable {
			return res
		}
	}
	return Result{Status: NotApplicable}
}

// containsAnyFold reports whether text contains any of the needles,
// case-insensitively.
func containsAnyFold(text string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// fuzzyEquals reports a case-insensitive substring match in either
// direction.
func fuzzyEquals(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
