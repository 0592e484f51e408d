package npctypes

import "time"

// RoomEventKind tags the variant carried by a RoomEvent.
type RoomEventKind string

const (
	RoomEventSpeech     RoomEventKind = "speech"
	RoomEventEmote      RoomEventKind = "emote"
	RoomEventArrival    RoomEventKind = "arrival"
	RoomEventDeparture  RoomEventKind = "departure"
	RoomEventCombat     RoomEventKind = "combat"
	RoomEventItemTaken  RoomEventKind = "item_taken"
	RoomEventItemDropped RoomEventKind = "item_dropped"
	RoomEventItemGiven  RoomEventKind = "item_given"
	RoomEventDeath      RoomEventKind = "death"
	RoomEventOther      RoomEventKind = "other"
)

// RoomEvent is an immutable observation of something that happened in a
// room. NPCs (and promotion rules) consume these; nothing mutates a
// RoomEvent after construction.
type RoomEvent struct {
	Kind      RoomEventKind
	RoomID    string
	ActorID   string
	ActorName string
	Message   string // present for Speech/Emote/Other narration
	Target    string // present for Combat/ItemGiven/...
	Direction string // present for Arrival/Departure; the recipient's name for ItemGiven
	At        time.Time
}

// NewRoomEvent constructs a RoomEvent stamped with the given time.
func NewRoomEvent(kind RoomEventKind, roomID, actorID, actorName string, at time.Time) RoomEvent {
	return RoomEvent{Kind: kind, RoomID: roomID, ActorID: actorID, ActorName: actorName, At: at}
}

// CommandOutcome is one feedback entry from the command executor.
type CommandOutcome struct {
	OK     bool
	Cmd    string
	Args   string
	Reason string // populated when !OK
}

// String renders the outcome the way the context builder drains it:
// "[OK] <cmd> <args>" or "[FAILED] <cmd> <args> - <reason>".
func (o CommandOutcome) String() string {
	if o.OK {
		if o.Args == "" {
			return "[OK] " + o.Cmd
		}
		return "[OK] " + o.Cmd + " " + o.Args
	}
	s := "[FAILED] " + o.Cmd
	if o.Args != "" {
		s += " " + o.Args
	}
	if o.Reason != "" {
		s += " - " + o.Reason
	}
	return s
}

// CommandResultLog keeps the last N command outcomes for one NPC.
// It is peek-able by the context builder and cleared on read (Drain).
type CommandResultLog struct {
	entries []CommandOutcome
	cap     int
}

// MaxCommandResults is the number of outcomes retained.
const MaxCommandResults = 3

// NewCommandResultLog builds a log bounded to MaxCommandResults entries.
func NewCommandResultLog() *CommandResultLog {
	return &CommandResultLog{cap: MaxCommandResults}
}

// Record appends an outcome, dropping the oldest entry once full.
func (l *CommandResultLog) Record(o CommandOutcome) {
	l.entries = append(l.entries, o)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Peek returns a copy of the current entries without clearing them.
func (l *CommandResultLog) Peek() []CommandOutcome {
	out := make([]CommandOutcome, len(l.entries))
	copy(out, l.entries)
	return out
}

// Drain returns the current entries and clears the log.
func (l *CommandResultLog) Drain() []CommandOutcome {
	out := l.Peek()
	l.entries = nil
	return out
}

// TrailingFailures counts the consecutive [FAILED] entries at the end of
// the log, without draining it.
func (l *CommandResultLog) TrailingFailures() int {
	n := 0
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].OK {
			break
		}
		n++
	}
	return n
}
