// Package worldmodel holds the minimal in-memory stand-ins for the
// surrounding game world that the NPC cognition core acts against: rooms,
// players, containers and the message bus. None of this is the game
// engine itself — it is the narrow contract the executor and scheduler
// need to exercise real behavior end to end.
package worldmodel

import (
	"strings"
	"sync"
	"time"

	"github.com/hollowmere/npccore/internal/capability"
	"github.com/hollowmere/npccore/internal/npctypes"
)

// Item is a world object that can be carried, worn, or used.
type Item struct {
	ID         string
	Name       string
	ShortDesc  string
	Aliases    []string
	Usable     bool
	EquipSlot  string // "" if not equippable
}

// Matches reports whether name fuzzy-matches this item by name, short
// description, or alias (case-insensitive substring).
func (it *Item) Matches(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if strings.Contains(strings.ToLower(it.Name), name) {
		return true
	}
	if strings.Contains(strings.ToLower(it.ShortDesc), name) {
		return true
	}
	for _, a := range it.Aliases {
		if strings.Contains(strings.ToLower(a), name) {
			return true
		}
	}
	return false
}

// Container holds items, worn equipment, and is shared by players and NPCs.
type Container struct {
	mu        sync.Mutex
	Items     []*Item
	Equipped  map[string]*Item // slot -> item
}

func NewContainer() *Container {
	return &Container{Equipped: map[string]*Item{}}
}

func (c *Container) Add(it *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Items = append(c.Items, it)
}

// Remove takes an item matching name out of the container, returning it.
func (c *Container) Remove(name string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.Items {
		if it.Matches(name) {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return it
		}
	}
	return nil
}

func (c *Container) Find(name string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.Items {
		if it.Matches(name) {
			return it
		}
	}
	return nil
}

func (c *Container) Equip(slot string, it *Item) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.Equipped[slot]
	c.Equipped[slot] = it
	return prev
}

func (c *Container) Unequip(slot string) *Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := c.Equipped[slot]
	delete(c.Equipped, slot)
	return it
}

// Player is a connected human-controlled entity.
type Player struct {
	ID        string
	Name      string
	RoomID    string
	Inventory *Container
	Fighting  bool
	SessionID string
}

// Npc is the live, in-memory runtime state for one NPC — the entity the
// cognition core reads and mutates every turn.
type Npc struct {
	ID           string
	Name         string
	Aliases      []string
	RoomID       string
	Capabilities capability.Set
	Inventory    *Container
	Health       int // percent, 0-100
	InCombat     bool
	Results      *npctypes.CommandResultLog
	InteractorID string // co-located entity this NPC is currently responding to
}

func NewNpc(id, name string, caps capability.Set) *Npc {
	return &Npc{
		ID: id, Name: name, Capabilities: caps,
		Inventory: NewContainer(), Health: 100,
		Results: npctypes.NewCommandResultLog(),
	}
}

// MatchesName reports whether the NPC answers to the given name or alias.
func (n *Npc) MatchesName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(strings.ToLower(n.Name), name) {
		return true
	}
	for _, a := range n.Aliases {
		if strings.Contains(strings.ToLower(a), name) {
			return true
		}
	}
	return false
}

// Exit links one room to another in a direction.
type Exit struct {
	Direction string
	ToRoomID  string
}

// Room is a lazily-loaded location. World.RoomLoader is consulted by World.LoadRoom
// when a room is referenced but not yet resident in memory.
type Room struct {
	ID          string
	Name        string
	Description string
	Exits       []Exit
	Items       []*Item

	mu      sync.Mutex
	Players map[string]*Player
	Npcs    map[string]*Npc
}

func NewRoom(id, name, description string) *Room {
	return &Room{ID: id, Name: name, Description: description, Players: map[string]*Player{}, Npcs: map[string]*Npc{}}
}

func (r *Room) ExitTo(direction string) (Exit, bool) {
	direction = strings.ToLower(direction)
	for _, e := range r.Exits {
		if strings.ToLower(e.Direction) == direction {
			return e, true
		}
	}
	return Exit{}, false
}

func (r *Room) AddPlayer(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Players[p.ID] = p
}

func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Players, id)
}

func (r *Room) AddNpc(n *Npc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Npcs[n.ID] = n
}

func (r *Room) RemoveNpc(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Npcs, id)
}

// LivingCount returns the number of players + NPCs present — used by the
// promotion rules' "1-on-1 room" test.
func (r *Room) LivingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Players) + len(r.Npcs)
}

// FindLiving resolves a name against both players and NPCs in the room.
func (r *Room) FindLiving(name string) (playerID, npcID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Players {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			return p.ID, ""
		}
	}
	for _, n := range r.Npcs {
		if n.MatchesName(name) {
			return "", n.ID
		}
	}
	return "", ""
}

// Message is a pending say/emote/tell delivery.
type Message struct {
	RoomID   string // "" for a directed tell
	TargetID string // player/session id for tells
	SenderID string
	Text     string
	Kind     npctypes.RoomEventKind
	At       time.Time
}

// ImmediateDeliveryHandler, when set on MessageBus, is invoked
// synchronously by Enqueue for every message, which is then not queued —
// the bridge that lets LLM-driven NPC speech reach players immediately
// instead of waiting for the next tick's drain. The bus does not check
// whether recipients are connected.
type ImmediateDeliveryHandler func(Message)

// MessageBus collects pending messages for delivery at tick phase 6;
// while an immediate-delivery handler is set, every message goes to it
// instead.
type MessageBus struct {
	mu                sync.Mutex
	pending           []Message
	ImmediateDelivery ImmediateDeliveryHandler
}

func NewMessageBus() *MessageBus { return &MessageBus{} }

func (b *MessageBus) Enqueue(m Message) {
	if b.ImmediateDelivery != nil {
		b.ImmediateDelivery(m)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, m)
}

// Drain returns and clears all pending messages — called at tick phase 6.
func (b *MessageBus) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// World owns rooms, resolved lazily through RoomLoader when a referenced
// room is not yet resident.
type World struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// RoomLoader loads a room by id from persistent world data. A nil
	// loader means only pre-seeded rooms (via AddRoom) can be resolved.
	RoomLoader func(id string) (*Room, error)

	// OnRoomLoaded runs linked-room spawn processing (shops, storage)
	// after a room is lazily loaded and added to the world.
	OnRoomLoaded func(r *Room)
}

func NewWorld() *World {
	return &World{rooms: map[string]*Room{}}
}

func (w *World) AddRoom(r *Room) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rooms[r.ID] = r
}

// LoadRoom returns a resident room, lazily invoking RoomLoader and
// firing OnRoomLoaded exactly once per room if it was not already
// resident.
func (w *World) LoadRoom(id string) (*Room, error) {
	w.mu.Lock()
	if r, ok := w.rooms[id]; ok {
		w.mu.Unlock()
		return r, nil
	}
	loader := w.RoomLoader
	w.mu.Unlock()

	if loader == nil {
		return nil, errRoomNotFound(id)
	}
	r, err := loader(id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.rooms[id] = r
	onLoaded := w.OnRoomLoaded
	w.mu.Unlock()

	if onLoaded != nil {
		onLoaded(r)
	}
	return r, nil
}

// Resident returns a room only if it is already loaded into memory,
// without consulting RoomLoader — used by read-only graph walks (e.g.
// pathing) that must not trigger lazy loads as a side effect.
func (w *World) Resident(id string) (*Room, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rooms[id]
	return r, ok
}

type roomNotFoundError struct{ id string }

func (e roomNotFoundError) Error() string { return "worldmodel: room not found: " + e.id }

func errRoomNotFound(id string) error { return roomNotFoundError{id: id} }
