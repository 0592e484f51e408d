// Package npcturn wires the per-turn cognition loop: build a prompt from
// live world state, call the LLM, parse its reply into actions, execute
// or apply them, promote witnessed events into memory candidates, and
// trace every step. It is the single place that assembles the context
// builder, the LLM client, the parser, the executor, the goal manager,
// and the promotion rules into one runnable cycle, registered against
// the world tick scheduler as a per-NPC heartbeat.
package npcturn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hollowmere/npccore/internal/contextbuilder"
	"github.com/hollowmere/npccore/internal/evaluator"
	"github.com/hollowmere/npccore/internal/executor"
	"github.com/hollowmere/npccore/internal/goal"
	"github.com/hollowmere/npccore/internal/llmclient"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/parser"
	"github.com/hollowmere/npccore/internal/promotion"
	"github.com/hollowmere/npccore/internal/scheduler"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// Tracer receives category-tagged trace lines. trace.StringTracer
// satisfies both this and executor.Tracer — the same shape, declared
// separately per package to avoid an import cycle.
type Tracer interface {
	Emit(npcID, category, message string)
}

// MemoryWriter enqueues a promoted memory write without blocking the
// turn. *memory.BoundedWriter satisfies this.
type MemoryWriter interface {
	Enqueue(write npctypes.MemoryWrite) bool
}

// npcEntry is the runtime registration for one NPC this runner drives.
type npcEntry struct {
	npc     *worldmodel.Npc
	profile goal.Profile
}

// Runner drives one decision cycle per registered NPC: context build →
// LLM call → parse → execute/goal-apply → evaluator auto-advance, plus
// promotion of events witnessed by other registered NPCs in the room.
type Runner struct {
	World      *worldmodel.World
	Builder    *contextbuilder.Builder
	LLM        llmclient.Client
	Goals      *goal.Manager
	Evaluators *evaluator.Registry
	Executor   *executor.Executor
	Writer     MemoryWriter // nil disables promotion persistence
	Tracer     Tracer       // nil disables tracing
	SystemPrompt string

	// Now is overridable for deterministic tests.
	Now func() time.Time

	mu      sync.Mutex
	npcs    map[string]*npcEntry
	pending map[string][]npctypes.RoomEvent
}

// New builds a Runner and wires it as the executor's event sink and
// tracer, so every command the executor runs reports through the same
// trace fabric and feeds witnessed events back into this runner.
func New(world *worldmodel.World, builder *contextbuilder.Builder, llm llmclient.Client, goals *goal.Manager, evaluators *evaluator.Registry, exec *executor.Executor, writer MemoryWriter, tracer Tracer, systemPrompt string) *Runner {
	r := &Runner{
		World:        world,
		Builder:      builder,
		LLM:          llm,
		Goals:        goals,
		Evaluators:   evaluators,
		Executor:     exec,
		Writer:       writer,
		Tracer:       tracer,
		SystemPrompt: systemPrompt,
		Now:          time.Now,
		npcs:         map[string]*npcEntry{},
		pending:      map[string][]npctypes.RoomEvent{},
	}
	exec.Events = r
	exec.Trace = tracer
	return r
}

// RegisterNpc adds npc to the set this runner drives and bootstraps its
// default goal, if profile names one.
func (r *Runner) RegisterNpc(ctx context.Context, npc *worldmodel.Npc, profile goal.Profile) error {
	r.mu.Lock()
	r.npcs[npc.ID] = &npcEntry{npc: npc, profile: profile}
	r.mu.Unlock()
	return r.Goals.Bootstrap(ctx, npc.ID, profile)
}

// QueueEvent appends ev to npcID's pending witnessed-event list, read by
// its next RunTurn. Used both by Emit (events generated by commands this
// runner's executor runs) and directly by callers dispatching raw room
// occurrences, e.g. player speech, per the "triggered by room events"
// rule.
func (r *Runner) QueueEvent(npcID string, ev npctypes.RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.npcs[npcID]; !ok {
		return
	}
	r.pending[npcID] = append(r.pending[npcID], ev)
}

// Emit implements executor.EventSink. Every registered NPC other than
// the actor, if currently present in the event's room, gets the event
// queued for its next turn and evaluated for promotion to memory.
func (r *Runner) Emit(ev npctypes.RoomEvent) {
	room, ok := r.World.Resident(ev.RoomID)
	if !ok {
		return
	}
	now := r.now()

	r.mu.Lock()
	witnesses := make([]*npcEntry, 0, len(r.npcs))
	for id, entry := range r.npcs {
		if id == ev.ActorID {
			continue
		}
		if _, present := room.Npcs[id]; !present {
			continue
		}
		witnesses = append(witnesses, entry)
	}
	r.mu.Unlock()

	for _, entry := range witnesses {
		r.QueueEvent(entry.npc.ID, ev)
		write := promotion.Promote(ev, entry.npc, room, now)
		if write == nil {
			continue
		}
		if r.Writer != nil {
			r.Writer.Enqueue(*write)
		}
		r.trace(entry.npc.ID, "MEM", fmt.Sprintf("promoted %s memory re %s", write.Kind, write.SubjectPlayer))
	}
}

// Heartbeat builds a scheduler.Heartbeat that runs one turn for npcID
// every interval. Errors are traced, never returned to the scheduler —
// one failing NPC must not stall the tick.
func (r *Runner) Heartbeat(npcID string, interval time.Duration) *scheduler.Heartbeat {
	return &scheduler.Heartbeat{
		ID:       "npcturn:" + npcID,
		Interval: interval,
		Run: func(ctx context.Context) {
			if err := r.RunTurn(ctx, npcID); err != nil {
				r.trace(npcID, "EVENT", "turn failed: "+err.Error())
			}
		},
	}
}

// RunTurn drives one full decision cycle for npcID: derive/refresh its
// goal, build the prompt from its drained event backlog, call the LLM,
// parse the reply, apply every action in order, then let the evaluator
// registry auto-advance the current step against the resulting world
// state.
func (r *Runner) RunTurn(ctx context.Context, npcID string) error {
	r.mu.Lock()
	entry, ok := r.npcs[npcID]
	events := r.pending[npcID]
	delete(r.pending, npcID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("npcturn: npc %q is not registered", npcID)
	}

	npc := entry.npc
	room, ok := r.World.Resident(npc.RoomID)
	if !ok {
		return fmt.Errorf("npcturn: npc %q's room %q is not resident", npcID, npc.RoomID)
	}

	if _, err := r.Goals.DeriveFromNeeds(ctx, npcID, entry.profile); err != nil {
		return fmt.Errorf("npcturn: deriving goal from needs: %w", err)
	}

	goalRow, plan, err := r.loadGoalPlan(ctx, npcID)
	if err != nil {
		return fmt.Errorf("npcturn: loading goal/plan: %w", err)
	}

	prompt := r.Builder.Build(ctx, contextbuilder.Input{
		Npc: npc, Room: room, Events: events, Goal: goalRow, Plan: plan,
	})

	reply, err := r.LLM.Complete(ctx, r.SystemPrompt, prompt, llmclient.ProfileNPC)
	if err != nil {
		r.trace(npcID, "LLM", "call failed: "+err.Error())
		return fmt.Errorf("npcturn: LLM call: %w", err)
	}
	if reply == nil {
		r.trace(npcID, "LLM", "no response")
		return nil
	}
	r.trace(npcID, "LLM", *reply)

	for _, action := range parser.Parse(*reply) {
		room = r.applyAction(ctx, npc, room, entry.profile, action)
	}

	r.advanceStep(ctx, npc, room, entry.profile)
	return nil
}

// loadGoalPlan resolves the top (lowest-importance) active goal for
// npcID and its embedded plan, or (nil, empty plan) if it has none.
func (r *Runner) loadGoalPlan(ctx context.Context, npcID string) (*npctypes.NpcGoal, npctypes.GoalPlan, error) {
	all, err := r.Goals.Goals.GetAll(ctx, npcID)
	if err != nil {
		return nil, npctypes.NewGoalPlan(), err
	}
	if len(all) == 0 {
		return nil, npctypes.NewGoalPlan(), nil
	}
	top := all[0]
	return &top, npctypes.PlanFromParams(top.Params), nil
}

// applyAction executes or applies one parsed action, returning the NPC's
// (possibly new, after a move command) current room.
func (r *Runner) applyAction(ctx context.Context, npc *worldmodel.Npc, room *worldmodel.Room, profile goal.Profile, a parser.Action) *worldmodel.Room {
	switch a.Kind {
	case parser.ActionSpeech:
		return r.Executor.Execute(ctx, npc, room, parser.CommandMarkup{Name: "say", Args: a.Text})
	case parser.ActionEmote:
		return r.Executor.Execute(ctx, npc, room, parser.CommandMarkup{Name: "emote", Args: a.Text})
	case parser.ActionCommand:
		return r.Executor.Execute(ctx, npc, room, *a.Command)
	case parser.ActionGoal:
		if err := r.Goals.ApplyGoal(ctx, npc.ID, a.Goal, profile); err != nil {
			r.trace(npc.ID, "GOAL", "apply failed: "+err.Error())
		} else {
			r.trace(npc.ID, "GOAL", a.Goal.Kind+" "+a.Goal.GoalType)
		}
	case parser.ActionPlan:
		if err := r.Goals.ApplyPlan(ctx, npc.ID, a.Plan); err != nil {
			r.trace(npc.ID, "PLAN", "apply failed: "+err.Error())
		} else {
			r.trace(npc.ID, "PLAN", fmt.Sprintf("%d step(s) set", len(a.Plan.Steps)))
		}
	case parser.ActionStep:
		if err := r.Goals.ApplyStep(ctx, npc.ID, a.Step, profile); err != nil {
			r.trace(npc.ID, "STEP", "apply failed: "+err.Error())
		} else {
			r.trace(npc.ID, "STEP", a.Step.Action)
		}
	}
	return room
}

// advanceStep lets the evaluator registry judge the current goal's
// current step against the post-action world state, auto-advancing on
// Complete the same way an explicit [step:done] directive would.
func (r *Runner) advanceStep(ctx context.Context, npc *worldmodel.Npc, room *worldmodel.Room, profile goal.Profile) {
	if r.Evaluators == nil {
		return
	}
	goalRow, plan, err := r.loadGoalPlan(ctx, npc.ID)
	if err != nil || goalRow == nil {
		return
	}
	step := plan.CurrentStepText()
	if step == "" {
		return
	}

	res := r.Evaluators.Evaluate(goalRow, step, evaluator.Snapshot{Npc: npc, Room: room, World: r.World})
	switch res.Status {
	case evaluator.Complete:
		r.trace(npc.ID, "STEP", "auto-advance: "+res.Reason)
		directive := &parser.StepDirective{GoalType: goalRow.GoalType, Action: parser.StepDone}
		if err := r.Goals.ApplyStep(ctx, npc.ID, directive, profile); err != nil {
			r.trace(npc.ID, "STEP", "auto-advance failed: "+err.Error())
		}
	case evaluator.Blocked:
		r.trace(npc.ID, "STEP", "blocked: "+res.Reason)
	}
}

func (r *Runner) trace(npcID, category, message string) {
	if r.Tracer != nil {
		r.Tracer.Emit(npcID, category, message)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
