package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowmere/npccore/internal/capability"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/parser"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

func newTestWorld() (*worldmodel.World, *worldmodel.Room, *worldmodel.Room) {
	world := worldmodel.NewWorld()
	a := worldmodel.NewRoom("square", "Town Square", "")
	b := worldmodel.NewRoom("tavern", "Old Tavern", "")
	a.Exits = []worldmodel.Exit{{Direction: "north", ToRoomID: "tavern"}}
	world.AddRoom(a)
	world.AddRoom(b)
	return world, a, b
}

func TestHandleSayRequiresCapability(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "say", Args: "hello"})

	got := npc.Results.Peek()
	require.Len(t, got, 1)
	assert.False(t, got[0].OK)
	assert.Equal(t, "missing capability", got[0].Reason)
}

func TestHandleSaySucceedsAndEnqueues(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanSpeak))
	room.AddNpc(npc)

	bus := worldmodel.NewMessageBus()
	var delivered []worldmodel.Message
	bus.ImmediateDelivery = func(m worldmodel.Message) { delivered = append(delivered, m) }

	ex := New(world, bus)
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "say", Args: "hello there"})

	require.Len(t, delivered, 1)
	assert.Equal(t, "hello there", delivered[0].Text)
	assert.True(t, npc.Results.Peek()[0].OK)
}

func TestHandleGoMovesNpcAndEmitsEvents(t *testing.T) {
	world, square, tavern := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanWander))
	square.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	newRoom := ex.Execute(context.Background(), npc, square, parser.CommandMarkup{Name: "go", Args: "north"})

	assert.Equal(t, tavern.ID, newRoom.ID)
	assert.Equal(t, "tavern", npc.RoomID)
	_, stillThere := square.Npcs[npc.ID]
	assert.False(t, stillThere)
	_, nowThere := tavern.Npcs[npc.ID]
	assert.True(t, nowThere)
	assert.True(t, npc.Results.Peek()[0].OK)
}

func TestHandleGoDirectionShorthand(t *testing.T) {
	world, square, tavern := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanWander))
	square.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	newRoom := ex.Execute(context.Background(), npc, square, parser.CommandMarkup{Name: "n", Args: ""})

	assert.Equal(t, tavern.ID, newRoom.ID)
}

func TestHandleGoNoExitFails(t *testing.T) {
	world, square, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanWander))
	square.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, square, parser.CommandMarkup{Name: "go", Args: "south"})

	got := npc.Results.Peek()
	assert.False(t, got[0].OK)
	assert.Equal(t, "no exit that way", got[0].Reason)
}

func TestHandleTakeAndDrop(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	room.AddNpc(npc)
	room.Items = append(room.Items, &worldmodel.Item{ID: "i1", Name: "rusty key"})

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "get", Args: "key"})
	assert.NotNil(t, npc.Inventory.Find("key"))
	assert.Len(t, room.Items, 0)

	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "drop", Args: "key"})
	assert.Nil(t, npc.Inventory.Find("key"))
	assert.Len(t, room.Items, 1)
}

func TestHandleGiveToInteractor(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	npc.Inventory.Add(&worldmodel.Item{ID: "i1", Name: "package"})
	room.AddNpc(npc)

	player := &worldmodel.Player{ID: "alice", Name: "Alice", Inventory: worldmodel.NewContainer()}
	room.AddPlayer(player)
	npc.InteractorID = "alice"

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "give", Args: "package to player"})

	assert.Nil(t, npc.Inventory.Find("package"))
	assert.NotNil(t, player.Inventory.Find("package"))
	assert.True(t, npc.Results.Peek()[0].OK)
}

func TestHandleGiveTargetItemForm(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	npc.Inventory.Add(&worldmodel.Item{ID: "i1", Name: "rusty key"})
	room.AddNpc(npc)

	player := &worldmodel.Player{ID: "alice", Name: "Alice", Inventory: worldmodel.NewContainer()}
	room.AddPlayer(player)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "give", Args: "alice rusty key"})

	assert.NotNil(t, player.Inventory.Find("key"))
}

func TestHandleEquipRequiresEquipSlot(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	npc.Inventory.Add(&worldmodel.Item{ID: "i1", Name: "rock"})
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "equip", Args: "rock"})

	got := npc.Results.Peek()
	assert.False(t, got[0].OK)
}

func TestHandleEquipSwapsSlot(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	npc.Inventory.Add(&worldmodel.Item{ID: "i1", Name: "sword", EquipSlot: "hand"})
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "equip", Args: "sword"})

	assert.NotNil(t, npc.Inventory.Equipped["hand"])
	assert.True(t, npc.Results.Peek()[0].OK)
}

func TestHandleAttackStartsCombat(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanAttack))
	room.AddNpc(npc)
	player := &worldmodel.Player{ID: "alice", Name: "Alice"}
	room.AddPlayer(player)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "attack", Args: "alice"})

	assert.True(t, npc.InCombat)
	assert.True(t, player.Fighting)
}

func TestHandleFleeSuccessEndsCombatAndMoves(t *testing.T) {
	world, square, tavern := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanFlee))
	npc.InCombat = true
	square.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Rand = func() float64 { return 0.1 } // < 0.5 => success
	ex.Execute(context.Background(), npc, square, parser.CommandMarkup{Name: "flee"})

	assert.False(t, npc.InCombat)
	assert.Equal(t, tavern.ID, npc.RoomID)
}

func TestHandleFleeFailureStaysInCombat(t *testing.T) {
	world, square, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanFlee))
	npc.InCombat = true
	square.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Rand = func() float64 { return 0.9 } // >= 0.5 => failure
	ex.Execute(context.Background(), npc, square, parser.CommandMarkup{Name: "flee"})

	assert.True(t, npc.InCombat)
	assert.Equal(t, "square", npc.RoomID)
	assert.True(t, npc.Results.Peek()[0].OK) // narrative failure, not a feedback failure
}

func TestHandleUseRequiresUsableFlag(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	npc.Inventory.Add(&worldmodel.Item{ID: "i1", Name: "potion", Usable: false})
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "drink", Args: "potion"})

	got := npc.Results.Peek()
	assert.False(t, got[0].OK)
	assert.Equal(t, "not usable", got[0].Reason)
}

func TestHandleLocalCommandFallback(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	called := false
	ex.LocalCommands = map[string]func(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome{
		"draw": func(npc *worldmodel.Npc, room *worldmodel.Room, args string) npctypes.CommandOutcome {
			called = true
			return npctypes.CommandOutcome{OK: true, Cmd: "draw", Args: args}
		},
	}

	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "draw", Args: "well"})

	assert.True(t, called)
	assert.True(t, npc.Results.Peek()[0].OK)
}

func TestHandleLocalCommandUnknownFails(t *testing.T) {
	world, room, _ := newTestWorld()
	npc := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0).With(capability.CanManipulateItems))
	room.AddNpc(npc)

	ex := New(world, worldmodel.NewMessageBus())
	ex.Execute(context.Background(), npc, room, parser.CommandMarkup{Name: "juggle", Args: ""})

	got := npc.Results.Peek()
	assert.False(t, got[0].OK)
	assert.Equal(t, "unknown command", got[0].Reason)
}
