// Package contextbuilder deterministically renders the per-turn user
// prompt an NPC's LLM call is grounded on.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollowmere/npccore/internal/capability"
	"github.com/hollowmere/npccore/internal/memory"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// MaxWitnessedEvents bounds how many recent room events are rendered.
const MaxWitnessedEvents = 5

// RePlanFailureThreshold is the number of consecutive [FAILED] feedback
// entries the count must exceed before the re-plan hint is attached.
const RePlanFailureThreshold = 2

// Builder renders prompts from live world state plus the memory/KB stores.
type Builder struct {
	Memory          memory.NpcMemoryStore
	KB              memory.WorldKnowledgeBase
	Embed           func(ctx context.Context, text string) ([]float32, error) // nil disables vector recall
	UsePgvector     bool
	DefaultMemoryTopK int
	DefaultKbTopK     int
}

// Input bundles everything one turn's prompt needs beyond the stores.
type Input struct {
	Npc    *worldmodel.Npc
	Room   *worldmodel.Room
	Events []npctypes.RoomEvent // most recent last
	Goal   *npctypes.NpcGoal
	Plan   npctypes.GoalPlan
}

// Build renders the full user prompt for one decision turn.
func (b *Builder) Build(ctx context.Context, in Input) string {
	var sb strings.Builder

	writeLine := func(s string) {
		sb.WriteString(s)
		sb.WriteString("\n")
	}

	writeLine(healthLine(in.Npc.Health))
	writeLine(combatLine(in.Npc.InCombat))
	writeLine("")
	writeLine(roomLine(in.Room))
	writeLine(playersLine(in.Room))
	writeLine(npcsLine(in.Room, in.Npc.ID))
	writeLine(itemsLine(in.Room))
	writeLine("")
	writeLine(eventsLine(in.Events))
	writeLine("")
	writeLine(goalLine(in.Goal, in.Plan))
	writeLine("")
	writeLine(capability.ActionInventory(in.Npc.Capabilities))
	writeLine("")

	failures := in.Npc.Results.TrailingFailures()
	writeLine(memoriesLine(ctx, b, in, failures))
	writeLine(kbLine(ctx, b, in))
	writeLine("")
	writeLine(resultsLine(in.Npc.Results.Drain()))

	if failures > RePlanFailureThreshold {
		writeLine("")
		writeLine(fmt.Sprintf("You have failed %d actions in a row. Consider a different plan.", failures))
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func healthLine(pct int) string {
	bucket := "healthy"
	switch {
	case pct <= 10:
		bucket = "near death"
	case pct <= 25:
		bucket = "badly wounded"
	case pct <= 50:
		bucket = "wounded"
	case pct <= 75:
		bucket = "slightly hurt"
	}
	return fmt.Sprintf("Health: %d%% (%s)", pct, bucket)
}

func combatLine(inCombat bool) string {
	if inCombat {
		return "You are in combat."
	}
	return "You are not in combat."
}

func roomLine(r *worldmodel.Room) string {
	if r == nil {
		return "Room: (unknown)"
	}
	var exits []string
	for _, e := range r.Exits {
		exits = append(exits, e.Direction)
	}
	return fmt.Sprintf("Room: %s\n%s\nExits: %s", r.Name, r.Description, strings.Join(exits, ", "))
}

func playersLine(r *worldmodel.Room) string {
	if r == nil || len(r.Players) == 0 {
		return "Players present: none"
	}
	var names []string
	for _, p := range r.Players {
		name := p.Name
		if p.Fighting {
			name += " (fighting)"
		}
		names = append(names, name)
	}
	return "Players present: " + strings.Join(names, ", ")
}

func npcsLine(r *worldmodel.Room, selfID string) string {
	if r == nil {
		return "Other NPCs present: none"
	}
	var names []string
	for _, n := range r.Npcs {
		if n.ID == selfID {
			continue
		}
		names = append(names, n.Name)
	}
	if len(names) == 0 {
		return "Other NPCs present: none"
	}
	return "Other NPCs present: " + strings.Join(names, ", ")
}

func itemsLine(r *worldmodel.Room) string {
	if r == nil || len(r.Items) == 0 {
		return "Items here: none"
	}
	var names []string
	for _, it := range r.Items {
		names = append(names, it.Name)
	}
	return "Items here: " + strings.Join(names, ", ")
}

func eventsLine(events []npctypes.RoomEvent) string {
	if len(events) == 0 {
		return "Recent events: none"
	}
	start := 0
	if len(events) > MaxWitnessedEvents {
		start = len(events) - MaxWitnessedEvents
	}
	var lines []string
	for _, e := range events[start:] {
		lines = append(lines, "- "+describeEvent(e))
	}
	return "Recent events:\n" + strings.Join(lines, "\n")
}

func describeEvent(e npctypes.RoomEvent) string {
	switch e.Kind {
	case npctypes.RoomEventSpeech:
		return fmt.Sprintf("%s said: %q", e.ActorName, e.Message)
	case npctypes.RoomEventEmote:
		return fmt.Sprintf("%s %s", e.ActorName, e.Message)
	case npctypes.RoomEventArrival:
		return fmt.Sprintf("%s arrived", e.ActorName)
	case npctypes.RoomEventDeparture:
		return fmt.Sprintf("%s left", e.ActorName)
	case npctypes.RoomEventCombat:
		return fmt.Sprintf("%s fought %s", e.ActorName, e.Target)
	case npctypes.RoomEventDeath:
		return fmt.Sprintf("%s died", e.ActorName)
	case npctypes.RoomEventItemTaken:
		return fmt.Sprintf("%s took %s", e.ActorName, e.Target)
	case npctypes.RoomEventItemDropped:
		return fmt.Sprintf("%s dropped %s", e.ActorName, e.Target)
	case npctypes.RoomEventItemGiven:
		return fmt.Sprintf("%s gave %s to %s", e.ActorName, e.Target, e.Direction)
	default:
		return e.Message
	}
}

func goalLine(goal *npctypes.NpcGoal, plan npctypes.GoalPlan) string {
	if goal == nil {
		return "Active goal: none"
	}
	line := fmt.Sprintf("Active goal: %s", goal.GoalType)
	if goal.TargetPlayer != "" {
		line += " (" + goal.TargetPlayer + ")"
	}
	if summary := plan.Summary(); summary != "" {
		line += "\nPlan: " + summary
	}
	return line
}

func resultsLine(results []npctypes.CommandOutcome) string {
	if len(results) == 0 {
		return "Previous action results: none"
	}
	var lines []string
	for _, r := range results {
		lines = append(lines, r.String())
	}
	return "Previous action results:\n" + strings.Join(lines, "\n")
}

func memoriesLine(ctx context.Context, b *Builder, in Input, failures int) string {
	if b.Memory == nil {
		return "Relevant memories: none"
	}
	topK := b.DefaultMemoryTopK
	if topK == 0 {
		topK = 5
	}

	query := npctypes.MemoryQuery{NpcID: in.Npc.ID, TopK: topK, CandidateLimit: npctypes.DefaultCandidateLimit}
	if b.UsePgvector && b.Embed != nil {
		query.QueryEmbedding, _ = b.Embed(ctx, embeddingSeed(in.Events, failures))
	}

	rows, err := b.Memory.Recall(ctx, query)
	if err != nil || len(rows) == 0 {
		return "Relevant memories: none"
	}
	var lines []string
	for _, m := range rows {
		lines = append(lines, "- "+m.Content)
	}
	return "Relevant memories:\n" + strings.Join(lines, "\n")
}

func kbLine(ctx context.Context, b *Builder, in Input) string {
	if b.KB == nil {
		return "Relevant knowledge: none"
	}
	topK := b.DefaultKbTopK
	if topK == 0 {
		topK = 5
	}

	var rows []npctypes.WorldKbEntry
	var err error
	if b.UsePgvector && b.Embed != nil {
		var vec []float32
		vec, err = b.Embed(ctx, embeddingSeed(in.Events, 0))
		if err == nil && vec != nil {
			rows, err = b.KB.Search(ctx, vec, in.Npc.ID, topK)
		}
	}
	if len(rows) == 0 {
		rows, err = b.KB.SearchByTags(ctx, []string{"room:" + roomID(in.Room)}, in.Npc.ID, topK)
	}
	if err != nil || len(rows) == 0 {
		return "Relevant knowledge: none"
	}
	var lines []string
	for _, e := range rows {
		if e.Summary != "" {
			lines = append(lines, "- "+e.Summary)
		} else {
			lines = append(lines, "- "+e.Key)
		}
	}
	return "Relevant knowledge:\n" + strings.Join(lines, "\n")
}

func roomID(r *worldmodel.Room) string {
	if r == nil {
		return ""
	}
	return r.ID
}

// embeddingSeed derives the text fed to the embedder from recent events
// plus a failure summary.
func embeddingSeed(events []npctypes.RoomEvent, failures int) string {
	var sb strings.Builder
	start := 0
	if len(events) > MaxWitnessedEvents {
		start = len(events) - MaxWitnessedEvents
	}
	for _, e := range events[start:] {
		sb.WriteString(describeEvent(e))
		sb.WriteString(". ")
	}
	if failures > 0 {
		fmt.Fprintf(&sb, "%d consecutive failed actions.", failures)
	}
	return sb.String()
}
