// Package goal implements the hierarchical motivation system: goal/plan
// markup semantics, default-goal bootstrap, and need-to-goal derivation.
package goal

import (
	"context"

	"github.com/hollowmere/npccore/internal/memory"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/parser"
)

// Manager applies parsed goal/plan/step directives against the goal and
// need stores.
type Manager struct {
	Goals memory.NpcGoalStore
	Needs memory.NpcNeedStore
}

func New(goals memory.NpcGoalStore, needs memory.NpcNeedStore) *Manager {
	return &Manager{Goals: goals, Needs: needs}
}

// Bootstrap upserts an NPC's default goal the first time it is loaded,
// if (and only if) no goal of that type exists yet.
func (m *Manager) Bootstrap(ctx context.Context, npcID string, profile Profile) error {
	if profile.DefaultGoal == nil {
		return nil
	}
	return m.restoreDefault(ctx, npcID, profile)
}

func (m *Manager) restoreDefault(ctx context.Context, npcID string, profile Profile) error {
	dg := profile.DefaultGoal
	if dg == nil {
		return nil
	}
	existing, err := m.Goals.Get(ctx, npcID, dg.GoalType)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	importance := dg.Importance
	if importance == 0 {
		importance = npctypes.ImportanceDefault
	}
	plan := npctypes.PlanFromSteps(dg.PlanTemplate)
	return m.Goals.Upsert(ctx, npctypes.NpcGoal{
		NpcID:        npcID,
		GoalType:     dg.GoalType,
		TargetPlayer: dg.Target,
		Status:       npctypes.GoalStatusActive,
		Importance:   importance,
		Params:       plan.ToParams(nil),
	})
}

// ApplyGoal applies a parsed [goal:...] directive.
func (m *Manager) ApplyGoal(ctx context.Context, npcID string, d *parser.GoalDirective, profile Profile) error {
	switch d.Kind {
	case parser.GoalKindSet:
		if d.GoalType == npctypes.SurviveGoalType {
			return nil // a drive, never set via markup
		}
		return m.Goals.Upsert(ctx, npctypes.NpcGoal{
			NpcID:        npcID,
			GoalType:     d.GoalType,
			TargetPlayer: d.Target,
			Status:       npctypes.GoalStatusActive,
			Importance:   npctypes.ImportanceDefault,
			Params:       map[string]any{},
		})

	case parser.GoalKindClearAll:
		if err := m.Goals.ClearAll(ctx, npcID, true); err != nil {
			return err
		}
		return m.restoreDefault(ctx, npcID, profile)

	case parser.GoalKindClear:
		if err := m.Goals.Clear(ctx, npcID, d.GoalType); err != nil {
			return err
		}
		if profile.DefaultGoal != nil && profile.DefaultGoal.GoalType == d.GoalType {
			return m.restoreDefault(ctx, npcID, profile)
		}
		return nil
	}
	return nil
}

// ApplyPlan applies a parsed [plan:...] directive. Without a goal-type
// prefix it targets the top (lowest-importance) active goal.
func (m *Manager) ApplyPlan(ctx context.Context, npcID string, d *parser.PlanDirective) error {
	goalType, goalRow, err := m.resolveTargetGoal(ctx, npcID, d.GoalType)
	if err != nil || goalRow == nil {
		return err
	}

	plan := npctypes.PlanFromSteps(d.Steps)
	return m.Goals.UpdateParams(ctx, npcID, goalType, plan.ToParams(goalRow.Params))
}

// ApplyStep applies a parsed [step:...] directive.
func (m *Manager) ApplyStep(ctx context.Context, npcID string, d *parser.StepDirective, profile Profile) error {
	goalType, goalRow, err := m.resolveTargetGoal(ctx, npcID, d.GoalType)
	if err != nil || goalRow == nil {
		return err
	}

	plan := npctypes.PlanFromParams(goalRow.Params)
	switch d.Action {
	case parser.StepDone, parser.StepComplete:
		plan.AdvanceOnComplete()
	case parser.StepSkip, parser.StepNext:
		plan.AdvanceSkip()
	default:
		return nil
	}

	if plan.IsComplete() {
		if err := m.Goals.Clear(ctx, npcID, goalType); err != nil {
			return err
		}
		if profile.DefaultGoal != nil && profile.DefaultGoal.GoalType == goalType {
			return m.restoreDefault(ctx, npcID, profile)
		}
		return nil
	}

	return m.Goals.UpdateParams(ctx, npcID, goalType, plan.ToParams(goalRow.Params))
}

// resolveTargetGoal picks the goal a prefix-less plan/step directive
// applies to: the named type if given, else the top active goal.
func (m *Manager) resolveTargetGoal(ctx context.Context, npcID, goalType string) (string, *npctypes.NpcGoal, error) {
	if goalType != "" {
		row, err := m.Goals.Get(ctx, npcID, goalType)
		return goalType, row, err
	}
	all, err := m.Goals.GetAll(ctx, npcID)
	if err != nil || len(all) == 0 {
		return "", nil, err
	}
	top := all[0]
	return top.GoalType, &top, nil
}

// DeriveFromNeeds synthesizes a goal from the NPC's strongest (lowest
// level) need when it has no active goal. Returns nil if the NPC already
// has a goal, has no needs, or no mapping matches.
func (m *Manager) DeriveFromNeeds(ctx context.Context, npcID string, profile Profile) (*npctypes.NpcGoal, error) {
	existing, err := m.Goals.GetAll(ctx, npcID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	needs, err := m.Needs.GetAll(ctx, npcID)
	if err != nil || len(needs) == 0 {
		return nil, err
	}
	top := needs[0] // store orders ascending by level

	mapping, ok := profile.needMapping(top.NeedType)
	goalType := top.NeedType
	var template []string
	if ok {
		if mapping.GoalType != "" {
			goalType = mapping.GoalType
		}
		template = mapping.PlanTemplate
	}

	plan := npctypes.PlanFromSteps(template)
	synthesized := npctypes.NpcGoal{
		NpcID:      npcID,
		GoalType:   goalType,
		Status:     npctypes.GoalStatusActive,
		Importance: npctypes.ImportanceDefault,
		Params:     plan.ToParams(nil),
	}
	if goalType == npctypes.SurviveGoalType {
		return &synthesized, nil // a drive, never persisted as a goal row
	}
	if err := m.Goals.Upsert(ctx, synthesized); err != nil {
		return nil, err
	}
	return &synthesized, nil
}
