// Package promotion turns observed room events into candidate memory
// writes for an observing NPC. Promotion is advisory: it only builds the
// write, the caller enqueues it through the bounded writer and never
// waits on persistence.
package promotion

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// ConversationExpiry is how long a promoted conversation memory lives
// before it expires; other kinds never expire.
const ConversationExpiry = 7 * 24 * time.Hour

type kindMapping struct {
	kind       string
	importance int
}

var kindMappings = map[npctypes.RoomEventKind]kindMapping{
	npctypes.RoomEventItemGiven: {"gift_received", 70},
	npctypes.RoomEventCombat:    {"combat", 80},
	npctypes.RoomEventDeath:     {"witnessed_death", 90},
	npctypes.RoomEventSpeech:    {"conversation", 30},
}

// Promote builds zero or one memory write candidate for observer witnessing
// ev in room. It never mutates ev, observer, or room.
func Promote(ev npctypes.RoomEvent, observer *worldmodel.Npc, room *worldmodel.Room, now time.Time) *npctypes.MemoryWrite {
	if observer == nil || ev.ActorID == "" || ev.ActorID == observer.ID {
		return nil
	}
	if !isRecognizablePlayer(ev, room) {
		return nil
	}

	if ev.Kind == npctypes.RoomEventSpeech && !directedAt(ev, observer, room) {
		return nil
	}

	mapping, ok := kindMappings[ev.Kind]
	if !ok {
		return nil
	}

	write := &npctypes.MemoryWrite{
		ID:            uuid.NewString(),
		NpcID:         observer.ID,
		SubjectPlayer: strings.ToLower(ev.ActorName),
		RoomID:        ev.RoomID,
		Kind:          mapping.kind,
		Importance:    npctypes.ClampImportance(mapping.importance),
		Tags:          []string{"room:" + ev.RoomID},
		Content:       narrate(ev, mapping.kind),
		CreatedAt:     now,
	}
	if ev.Kind == npctypes.RoomEventSpeech {
		expires := now.Add(ConversationExpiry)
		write.ExpiresAt = &expires
	}
	return write
}

// isRecognizablePlayer requires the actor to currently be a player
// present in room — NPCs-on-NPC events are never promoted.
func isRecognizablePlayer(ev npctypes.RoomEvent, room *worldmodel.Room) bool {
	if room == nil {
		return false
	}
	_, ok := room.Players[ev.ActorID]
	return ok
}

// directedAt implements the speech-targeting rule: always directed in a
// strict 1-on-1 room, otherwise only when the message names the observer.
func directedAt(ev npctypes.RoomEvent, observer *worldmodel.Npc, room *worldmodel.Room) bool {
	if room != nil && room.LivingCount() == 2 {
		return true
	}
	lower := strings.ToLower(ev.Message)
	if strings.Contains(lower, strings.ToLower(observer.Name)) {
		return true
	}
	for _, alias := range observer.Aliases {
		if strings.Contains(lower, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// narrate renders a short third-person description bounded to
// npctypes.MaxMemoryContentLen.
func narrate(ev npctypes.RoomEvent, kind string) string {
	var s string
	switch ev.Kind {
	case npctypes.RoomEventSpeech:
		s = ev.ActorName + " said: \"" + ev.Message + "\""
	case npctypes.RoomEventItemGiven:
		s = ev.ActorName + " gave you " + ev.Target
	case npctypes.RoomEventCombat:
		s = ev.ActorName + " fought " + ev.Target
	case npctypes.RoomEventDeath:
		s = ev.ActorName + " died"
	default:
		s = ev.ActorName + " did something (" + kind + ")"
	}
	if len(s) > npctypes.MaxMemoryContentLen {
		s = s[:npctypes.MaxMemoryContentLen]
	}
	return s
}
