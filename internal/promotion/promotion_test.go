package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowmere/npccore/internal/capability"
	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

func roomWith(players, npcs int) *worldmodel.Room {
	r := worldmodel.NewRoom("tavern", "Old Tavern", "")
	for i := 0; i < players; i++ {
		id := "p" + string(rune('0'+i))
		r.AddPlayer(&worldmodel.Player{ID: id, Name: "Alice"})
	}
	for i := 0; i < npcs; i++ {
		id := "n" + string(rune('0'+i))
		r.AddNpc(worldmodel.NewNpc(id, "Guard", capability.Set(0)))
	}
	return r
}

func TestPromoteSkipsSelfObservation(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := roomWith(1, 1)
	ev := npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, ActorID: "barnaby", ActorName: "Barnaby", Message: "hi"}

	got := Promote(ev, observer, room, time.Now())
	assert.Nil(t, got)
}

func TestPromoteSkipsNonPlayerActor(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := roomWith(0, 2)
	ev := npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, ActorID: "n0", ActorName: "Guard", Message: "halt"}

	got := Promote(ev, observer, room, time.Now())
	assert.Nil(t, got)
}

func TestPromoteSpeechAlwaysDirectedInOneOnOneRoom(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := worldmodel.NewRoom("tavern", "Old Tavern", "")
	room.AddPlayer(&worldmodel.Player{ID: "alice", Name: "Alice"})
	room.AddNpc(observer)

	ev := npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, ActorID: "alice", ActorName: "Alice", Message: "good day", RoomID: "tavern"}
	got := Promote(ev, observer, room, time.Now())

	require.NotNil(t, got)
	assert.Equal(t, "conversation", got.Kind)
	assert.Equal(t, 30, got.Importance)
	assert.NotNil(t, got.ExpiresAt)
	assert.Contains(t, got.Tags, "room:tavern")
}

func TestPromoteSpeechRequiresNameMentionInCrowdedRoom(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := worldmodel.NewRoom("tavern", "Old Tavern", "")
	room.AddPlayer(&worldmodel.Player{ID: "alice", Name: "Alice"})
	room.AddPlayer(&worldmodel.Player{ID: "bob", Name: "Bob"})
	room.AddNpc(observer)

	untargeted := npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, ActorID: "alice", ActorName: "Alice", Message: "nice weather today"}
	assert.Nil(t, Promote(untargeted, observer, room, time.Now()))

	targeted := npctypes.RoomEvent{Kind: npctypes.RoomEventSpeech, ActorID: "alice", ActorName: "Alice", Message: "hey Barnaby, over here"}
	assert.NotNil(t, Promote(targeted, observer, room, time.Now()))
}

func TestPromoteCombatAndDeathAndGift(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := worldmodel.NewRoom("tavern", "Old Tavern", "")
	room.AddPlayer(&worldmodel.Player{ID: "alice", Name: "Alice"})
	room.AddPlayer(&worldmodel.Player{ID: "bob", Name: "Bob"})
	room.AddNpc(observer)

	combat := npctypes.RoomEvent{Kind: npctypes.RoomEventCombat, ActorID: "alice", ActorName: "Alice", Target: "Bob"}
	got := Promote(combat, observer, room, time.Now())
	require.NotNil(t, got)
	assert.Equal(t, "combat", got.Kind)
	assert.Equal(t, 80, got.Importance)
	assert.Nil(t, got.ExpiresAt)

	death := npctypes.RoomEvent{Kind: npctypes.RoomEventDeath, ActorID: "alice", ActorName: "Alice"}
	got = Promote(death, observer, room, time.Now())
	require.NotNil(t, got)
	assert.Equal(t, "witnessed_death", got.Kind)
	assert.Equal(t, 90, got.Importance)

	gift := npctypes.RoomEvent{Kind: npctypes.RoomEventItemGiven, ActorID: "alice", ActorName: "Alice", Target: "flower"}
	got = Promote(gift, observer, room, time.Now())
	require.NotNil(t, got)
	assert.Equal(t, "gift_received", got.Kind)
	assert.Contains(t, got.Content, "flower")
}

func TestPromoteSkipsUnmappedKinds(t *testing.T) {
	observer := worldmodel.NewNpc("barnaby", "Barnaby", capability.Set(0))
	room := worldmodel.NewRoom("tavern", "Old Tavern", "")
	room.AddPlayer(&worldmodel.Player{ID: "alice", Name: "Alice"})
	room.AddNpc(observer)

	arrival := npctypes.RoomEvent{Kind: npctypes.RoomEventArrival, ActorID: "alice", ActorName: "Alice"}
	assert.Nil(t, Promote(arrival, observer, room, time.Now()))
}
