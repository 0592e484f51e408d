// Package executor implements the per-command state machine: parse →
// capability gate → target resolution → side-effect → event emit →
// feedback record → trace.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/hollowmere/npccore/internal/capability"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/parser"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// EventSink receives room events emitted by executed commands.
type EventSink interface {
	Emit(npctypes.RoomEvent)
}

// Tracer receives category-tagged trace lines.
type Tracer interface {
	Emit(npcID, category, message string)
}

// directionAliases expands single-letter movement shorthands to a verb.
var directionAliases = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west", "u": "up", "d": "down",
}

// Executor runs commands against live world state. It never suspends
// between reading and writing that state.
type Executor struct {
	World  *worldmodel.World
	Bus    *worldmodel.MessageBus
	Events EventSink
	Trace  Tracer

	// LocalCommands is the room-scoped fallback table for verbs with no
	// builtin handler (e.g. "draw" on a well).
	LocalCommands map[string]func(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome

	// Rand returns a float in [0,1); overridable for deterministic tests.
	Rand func() float64

	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time
}

// New builds an Executor wired to the given world and message bus.
func New(world *worldmodel.World, bus *worldmodel.MessageBus) *Executor {
	return &Executor{World: world, Bus: bus, Rand: defaultRand, Now: time.Now}
}

func defaultRand() float64 { return rand.Float64() }

// Execute runs one parsed command markup against npc, currently in room.
// It returns the NPC's (possibly new, after a move) current room.
func (e *Executor) Execute(ctx context.Context, npc *worldmodel.Npc, room *worldmodel.Room, cmd parser.CommandMarkup) *worldmodel.Room {
	verb, args := canonicalVerb(cmd.Name), strings.TrimSpace(cmd.Args)

	outcome, newRoom := e.dispatch(ctx, npc, room, verb, args)
	npc.Results.Record(outcome)
	e.trace(npc.ID, "CMD", outcome.String())

	if newRoom == nil {
		return room
	}
	return newRoom
}

func canonicalVerb(name string) string {
	v := strings.ToLower(strings.TrimSpace(name))
	if expanded, ok := directionAliases[v]; ok {
		return "go:" + expanded
	}
	return v
}

func (e *Executor) dispatch(ctx context.Context, npc *worldmodel.Npc, room *worldmodel.Room, verb, args string) (npctypes.CommandOutcome, *worldmodel.Room) {
	switch {
	case verb == "say":
		return e.handleSay(npc, room, args), nil

	case verb == "emote" || verb == "me":
		return e.handleEmote(npc, room, args), nil

	case verb == "go":
		return e.handleGo(npc, room, args)
	case strings.HasPrefix(verb, "go:"):
		return e.handleGo(npc, room, strings.TrimPrefix(verb, "go:"))

	case verb == "get" || verb == "take":
		return e.handleTake(npc, room, args), nil
	case verb == "drop":
		return e.handleDrop(npc, room, args), nil
	case verb == "give":
		return e.handleGive(npc, room, args), nil

	case verb == "equip" || verb == "wield" || verb == "wear":
		return e.handleEquip(npc, args), nil
	case verb == "unequip" || verb == "remove":
		return e.handleUnequip(npc, args), nil

	case verb == "kill" || verb == "attack":
		return e.handleAttack(npc, room, args), nil

	case verb == "flee" || verb == "retreat":
		return e.handleFlee(npc, room)

	case verb == "use" || verb == "drink" || verb == "eat":
		return e.handleUse(npc, room, verb, args), nil

	default:
		return e.handleLocal(npc, room, verb, args), nil
	}
}

func (e *Executor) require(npc *worldmodel.Npc, flag capability.Flag, cmd, args string) (npctypes.CommandOutcome, bool) {
	if npc.Capabilities.Can(flag) {
		return npctypes.CommandOutcome{}, true
	}
	return fail(cmd, args, "missing capability"), false
}

func ok(cmd, args string) npctypes.CommandOutcome {
	return npctypes.CommandOutcome{OK: true, Cmd: cmd, Args: args}
}

func fail(cmd, args, reason string) npctypes.CommandOutcome {
	return npctypes.CommandOutcome{OK: false, Cmd: cmd, Args: args, Reason: reason}
}

func (e *Executor) emit(ev npctypes.RoomEvent) {
	if e.Events != nil {
		e.Events.Emit(ev)
	}
}

func (e *Executor) trace(npcID, category, message string) {
	if e.Trace != nil {
		e.Trace.Emit(npcID, category, message)
	}
}

func (e *Executor) handleSay(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanSpeak, "say", args); !allowed {
		return o
	}
	if args == "" {
		return fail("say", args, "nothing to say")
	}
	now := e.Now()
	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Message: args, At: now})
	if e.Bus != nil {
		e.Bus.Enqueue(worldmodel.Message{RoomID: room.ID, SenderID: npc.ID, Text: args, Kind: npctypes.RoomEventSpeech, At: now})
	}
	return ok("say", args)
}

func (e *Executor) handleEmote(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanEmote, "emote", args); !allowed {
		return o
	}
	if args == "" {
		return fail("emote", args, "nothing to emote")
	}
	rewritten := parser.RewriteEmoteToThirdPerson(args)
	now := e.Now()
	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventEmote, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Message: rewritten, At: now})
	if e.Bus != nil {
		e.Bus.Enqueue(worldmodel.Message{RoomID: room.ID, SenderID: npc.ID, Text: rewritten, Kind: npctypes.RoomEventEmote, At: now})
	}
	return ok("emote", args)
}

// handleGo validates the exit, lazily loads the destination (firing
// linked-room spawn processing via World.OnRoomLoaded), and moves the
// NPC's container across rooms.
func (e *Executor) handleGo(npc *worldmodel.Npc, room *worldmodel.Room, direction string) (npctypes.CommandOutcome, *worldmodel.Room) {
	if o, allowed := e.require(npc, capability.CanWander, "go", direction); !allowed {
		return o, nil
	}
	exit, found := room.ExitTo(direction)
	if !found {
		return fail("go", direction, "no exit that way"), nil
	}
	dest, err := e.World.LoadRoom(exit.ToRoomID)
	if err != nil {
		return fail("go", direction, "destination blocked"), nil
	}

	now := e.Now()
	room.RemoveNpc(npc.ID)
	npc.RoomID = dest.ID
	dest.AddNpc(npc)

	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventDeparture, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Direction: direction, At: now})
	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventArrival, RoomID: dest.ID, ActorID: npc.ID, ActorName: npc.Name, Direction: direction, At: now})

	return ok("go", direction), dest
}

func (e *Executor) handleTake(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, "get", args); !allowed {
		return o
	}
	idx := indexOfMatch(room.Items, args)
	if idx == -1 {
		return fail("get", args, "no such item here")
	}
	it := room.Items[idx]
	room.Items = append(room.Items[:idx], room.Items[idx+1:]...)
	npc.Inventory.Add(it)

	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventItemTaken, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Target: it.Name, At: e.Now()})
	return ok("get", args)
}

func (e *Executor) handleDrop(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, "drop", args); !allowed {
		return o
	}
	it := npc.Inventory.Remove(args)
	if it == nil {
		return fail("drop", args, "not carrying that")
	}
	room.Items = append(room.Items, it)

	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventItemDropped, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Target: it.Name, At: e.Now()})
	return ok("drop", args)
}

// handleGive accepts both "give item to target" and "give target item".
func (e *Executor) handleGive(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, "give", args); !allowed {
		return o
	}
	itemName, targetName, ok2 := parseGiveArgs(args)
	if !ok2 {
		return fail("give", args, "could not parse item/target")
	}

	it := npc.Inventory.Find(itemName)
	if it == nil {
		return fail("give", args, "not carrying "+itemName)
	}

	targetID, targetInv, resolvedName := e.resolveGiveTarget(npc, room, targetName)
	if targetID == "" {
		return fail("give", args, "no such recipient here")
	}

	npc.Inventory.Remove(itemName)
	if targetInv != nil {
		targetInv.Add(it)
	}

	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventItemGiven, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Target: it.Name, Direction: resolvedName, At: e.Now()})
	return ok("give", args)
}

// resolveGiveTarget resolves "player" (or a name) against the current
// interactor first, then against the room roster.
func (e *Executor) resolveGiveTarget(npc *worldmodel.Npc, room *worldmodel.Room, targetName string) (id string, inv *worldmodel.Container, name string) {
	if strings.EqualFold(targetName, "player") && npc.InteractorID != "" {
		if p, ok := room.Players[npc.InteractorID]; ok {
			return p.ID, p.Inventory, p.Name
		}
	}
	if p, ok := room.Players[npc.InteractorID]; ok && targetMatchesPlayer(p, targetName) {
		return p.ID, p.Inventory, p.Name
	}
	for _, p := range room.Players {
		if targetMatchesPlayer(p, targetName) {
			return p.ID, p.Inventory, p.Name
		}
	}
	for _, n := range room.Npcs {
		if n.ID != npc.ID && n.MatchesName(targetName) {
			return n.ID, n.Inventory, n.Name
		}
	}
	return "", nil, ""
}

func targetMatchesPlayer(p *worldmodel.Player, name string) bool {
	return strings.Contains(strings.ToLower(p.Name), strings.ToLower(strings.TrimSpace(name)))
}

// parseGiveArgs handles "<item> to <target>" and "<target> <item>" forms.
func parseGiveArgs(args string) (item, target string, ok bool) {
	if idx := strings.Index(strings.ToLower(args), " to "); idx != -1 {
		return strings.TrimSpace(args[:idx]), strings.TrimSpace(args[idx+4:]), true
	}
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", false
	}
	// "give target item": first token is the target, remainder the item.
	return strings.Join(fields[1:], " "), fields[0], true
}

func (e *Executor) handleEquip(npc *worldmodel.Npc, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, "equip", args); !allowed {
		return o
	}
	it := npc.Inventory.Find(args)
	if it == nil {
		return fail("equip", args, "not carrying that")
	}
	if it.EquipSlot == "" {
		return fail("equip", args, "not equippable")
	}
	npc.Inventory.Equip(it.EquipSlot, it)
	return ok("equip", args)
}

func (e *Executor) handleUnequip(npc *worldmodel.Npc, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, "unequip", args); !allowed {
		return o
	}
	for slot, it := range npc.Inventory.Equipped {
		if it.Matches(args) {
			npc.Inventory.Unequip(slot)
			return ok("unequip", args)
		}
	}
	return fail("unequip", args, "not wearing that")
}

func (e *Executor) handleAttack(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanAttack, "attack", args); !allowed {
		return o
	}
	playerID, npcID := room.FindLiving(args)
	if playerID == "" && npcID == "" {
		return fail("attack", args, "not here")
	}

	npc.InCombat = true
	name := args
	if playerID != "" {
		if p, ok := room.Players[playerID]; ok {
			p.Fighting = true
			name = p.Name
		}
	} else if other, ok := room.Npcs[npcID]; ok {
		other.InCombat = true
		name = other.Name
	}

	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventCombat, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Target: name, At: e.Now()})
	return ok("attack", args)
}

// handleFlee succeeds with probability 0.5; on success it ends combat and
// moves the NPC through a random exit, otherwise it narrates the failed
// attempt without penalizing the feedback loop.
func (e *Executor) handleFlee(npc *worldmodel.Npc, room *worldmodel.Room) (npctypes.CommandOutcome, *worldmodel.Room) {
	if o, allowed := e.require(npc, capability.CanFlee, "flee", ""); !allowed {
		return o, nil
	}
	if !npc.InCombat {
		return fail("flee", "", "not in combat"), nil
	}

	if e.Rand() >= 0.5 || len(room.Exits) == 0 {
		e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventOther, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Message: fmt.Sprintf("%s tries to flee but fails", npc.Name), At: e.Now()})
		return ok("flee", ""), nil
	}

	exit := room.Exits[int(e.Rand()*float64(len(room.Exits)))%len(room.Exits)]
	dest, err := e.World.LoadRoom(exit.ToRoomID)
	if err != nil {
		return ok("flee", ""), nil
	}
	npc.InCombat = false
	room.RemoveNpc(npc.ID)
	npc.RoomID = dest.ID
	dest.AddNpc(npc)
	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventDeparture, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Direction: exit.Direction, At: e.Now()})
	return ok("flee", ""), dest
}

func (e *Executor) handleUse(npc *worldmodel.Npc, room *worldmodel.Room, verb, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, verb, args); !allowed {
		return o
	}
	it := npc.Inventory.Find(args)
	if it == nil {
		idx := indexOfMatch(room.Items, args)
		if idx != -1 {
			it = room.Items[idx]
		}
	}
	if it == nil {
		return fail(verb, args, "no such item")
	}
	if !it.Usable {
		return fail(verb, args, "not usable")
	}
	e.emit(npctypes.RoomEvent{Kind: npctypes.RoomEventOther, RoomID: room.ID, ActorID: npc.ID, ActorName: npc.Name, Message: fmt.Sprintf("%s %ss the %s", npc.Name, verb, it.Name), At: e.Now()})
	return ok(verb, args)
}

func (e *Executor) handleLocal(npc *worldmodel.Npc, room *worldmodel.Room, verb, args string) npctypes.CommandOutcome {
	if o, allowed := e.require(npc, capability.CanManipulateItems, verb, args); !allowed {
		return o
	}
	if e.LocalCommands != nil {
		if h, found := e.LocalCommands[verb]; found {
			return h(npc, room, args)
		}
	}
	return fail(verb, args, "unknown command")
}

func indexOfMatch(items []*worldmodel.Item, name string) int {
	for i, it := range items {
		if it.Matches(name) {
			return i
		}
	}
	return -1
}
