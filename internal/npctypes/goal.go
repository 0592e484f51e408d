package npctypes

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved goal importance values. Lower is higher priority.
const (
	ImportanceCombat     = 5
	ImportanceUrgent     = 10
	ImportanceDefault    = 50
	ImportanceBackground = 100
)

// SurviveGoalType is the synthetic drive goal — it is never persisted
// under (npcId, goalType) as a real goal row; it is conjured by the
// need-to-goal derivation whenever nothing else is active.
const SurviveGoalType = "survive"

// NpcGoal is a row keyed by (NpcID, GoalType). At most one active goal
// exists per key (enforced by the store's upsert).
type NpcGoal struct {
	NpcID         string
	GoalType      string
	TargetPlayer  string // normalized lowercase, "" if none
	Params        map[string]any
	Status        string
	Importance    int
	UpdatedAt     time.Time
}

// GoalStatus values.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
)

// GoalPlan is the ordered step list embedded in NpcGoal.Params["plan"].
type GoalPlan struct {
	Steps          []string
	CurrentStep    int // -1 = no plan / complete
	CompletedSteps map[int]struct{}
}

// NewGoalPlan builds an empty plan (no steps).
func NewGoalPlan() GoalPlan {
	return GoalPlan{CurrentStep: -1, CompletedSteps: map[int]struct{}{}}
}

// PlanFromSteps builds a plan starting at step 0, or an empty/complete
// plan (CurrentStep -1) when steps is empty.
func PlanFromSteps(steps []string) GoalPlan {
	p := GoalPlan{Steps: steps, CompletedSteps: map[int]struct{}{}}
	if len(steps) == 0 {
		p.CurrentStep = -1
	} else {
		p.CurrentStep = 0
	}
	return p
}

// IsComplete reports whether every step index is covered by CompletedSteps.
func (p *GoalPlan) IsComplete() bool {
	if len(p.Steps) == 0 {
		return p.CurrentStep == -1
	}
	for i := range p.Steps {
		if _, ok := p.CompletedSteps[i]; !ok {
			return false
		}
	}
	return true
}

// CurrentStepText returns the text of the current step, or "" if there is
// no current step (CurrentStep == -1 or out of range).
func (p *GoalPlan) CurrentStepText() string {
	if p.CurrentStep < 0 || p.CurrentStep >= len(p.Steps) {
		return ""
	}
	return p.Steps[p.CurrentStep]
}

// Summary renders a short human-readable progress string, e.g.
// `step 2/3: "negotiate price"` — used by the context builder.
func (p *GoalPlan) Summary() string {
	if len(p.Steps) == 0 {
		return ""
	}
	if p.CurrentStep < 0 || p.CurrentStep >= len(p.Steps) {
		return fmt.Sprintf("plan complete (%d steps)", len(p.Steps))
	}
	return fmt.Sprintf("step %d/%d: %q", p.CurrentStep+1, len(p.Steps), p.Steps[p.CurrentStep])
}

// AdvanceOnComplete marks the current step complete, then scans forward
// from CurrentStep+1 for the next uncompleted index; if none is found it
// scans from 0 up to (but not including) the original CurrentStep. If
// still none, the plan is done: CurrentStep is set to -1.
//
// Calling this when CurrentStep is already -1 is a no-op, not an error.
func (p *GoalPlan) AdvanceOnComplete() {
	if p.CurrentStep < 0 || p.CurrentStep >= len(p.Steps) {
		return
	}
	if p.CompletedSteps == nil {
		p.CompletedSteps = map[int]struct{}{}
	}
	done := p.CurrentStep
	p.CompletedSteps[done] = struct{}{}

	for i := done + 1; i < len(p.Steps); i++ {
		if _, ok := p.CompletedSteps[i]; !ok {
			p.CurrentStep = i
			return
		}
	}
	for i := 0; i < done; i++ {
		if _, ok := p.CompletedSteps[i]; !ok {
			p.CurrentStep = i
			return
		}
	}
	p.CurrentStep = -1
}

// AdvanceSkip increments CurrentStep without marking the current step
// complete, bounded by the step count. A no-op when there is no current
// step or the step count is exhausted.
func (p *GoalPlan) AdvanceSkip() {
	if p.CurrentStep < 0 {
		return
	}
	if p.CurrentStep+1 < len(p.Steps) {
		p.CurrentStep++
	}
}

// planJSON is the wire shape of a GoalPlan inside NpcGoal.Params["plan"].
type planJSON struct {
	Steps          []string `json:"steps"`
	CurrentStep    int      `json:"current_step"`
	CompletedSteps []int    `json:"completed_steps"`
}

// ToParams merges the plan into an existing params map under the "plan"
// key, preserving every other key untouched. A nil input map is treated
// as empty.
func (p *GoalPlan) ToParams(existing map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+1)
	for k, v := range existing {
		if k == "plan" {
			continue
		}
		out[k] = v
	}
	completed := make([]int, 0, len(p.CompletedSteps))
	for idx := range p.CompletedSteps {
		completed = append(completed, idx)
	}
	out["plan"] = planJSON{
		Steps:          p.Steps,
		CurrentStep:    p.CurrentStep,
		CompletedSteps: completed,
	}
	return out
}

// PlanFromParams extracts the GoalPlan embedded in a goal's params map.
// Returns an empty plan (no error) if the "plan" key is absent or
// unparseable — a goal with no plan is a normal, expected state.
func PlanFromParams(params map[string]any) GoalPlan {
	raw, ok := params["plan"]
	if !ok || raw == nil {
		return NewGoalPlan()
	}

	var pj planJSON
	switch v := raw.(type) {
	case planJSON:
		pj = v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return NewGoalPlan()
		}
		if err := json.Unmarshal(b, &pj); err != nil {
			return NewGoalPlan()
		}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return NewGoalPlan()
		}
		if err := json.Unmarshal(b, &pj); err != nil {
			return NewGoalPlan()
		}
	}

	completed := make(map[int]struct{}, len(pj.CompletedSteps))
	for _, idx := range pj.CompletedSteps {
		completed[idx] = struct{}{}
	}
	return GoalPlan{
		Steps:          pj.Steps,
		CurrentStep:    pj.CurrentStep,
		CompletedSteps: completed,
	}
}

// NpcNeed is a row keyed by (NpcID, NeedType). Level 1 is the strongest
// drive (survive); higher levels are weaker. Needs never complete.
type NpcNeed struct {
	NpcID     string
	NeedType  string
	Level     int
	Params    map[string]any
	Status    string
	UpdatedAt time.Time
}

// SurviveNeedType is the need type of the level-1 survive drive. Nothing
// in this module applies it automatically: an NPC has a survive need only
// where a caller has upserted one.
const SurviveNeedType = "survive"
