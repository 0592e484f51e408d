package evaluator

import (
	"fmt"
	"strings"

	"github.com/hollowmere/npccore/internal/npctypes"
	"github.com/hollowmere/npccore/internal/worldmodel"
)

// reachRoomKeywords are the step-text phrases ReachRoom applies to.
var reachRoomKeywords = []string{"go to", "visit", "travel to", "head to"}

// Pather answers "what direction from fromRoomID gets closer to a room
// matching target", walking only rooms already resident in the world —
// the pathing collaborator ReachRoom asks when it isn't there yet.
type Pather interface {
	NextDirection(world *worldmodel.World, fromRoomID, target string) (direction string, ok bool)
}

// BFSPather is a breadth-first walk over rooms already resident in the
// world snapshot. It never triggers a lazy room load, keeping the
// evaluator pass read-only.
type BFSPather struct{}

func (BFSPather) NextDirection(world *worldmodel.World, fromRoomID, target string) (string, bool) {
	if world == nil {
		return "", false
	}
	type frame struct {
		roomID string
		first  string // the first hop direction taken from fromRoomID
	}

	start, ok := world.Resident(fromRoomID)
	if !ok {
		return "", false
	}
	visited := map[string]bool{fromRoomID: true}
	queue := []frame{}
	for _, e := range start.Exits {
		queue = append(queue, frame{roomID: e.ToRoomID, first: e.Direction})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.roomID] {
			continue
		}
		visited[cur.roomID] = true

		room, ok := world.Resident(cur.roomID)
		if !ok {
			continue
		}
		if fuzzyEquals(room.Name, target) || fuzzyEquals(room.ID, target) {
			return cur.first, true
		}
		for _, e := range room.Exits {
			if !visited[e.ToRoomID] {
				queue = append(queue, frame{roomID: e.ToRoomID, first: cur.first})
			}
		}
	}
	return "", false
}

// ReachRoom is Complete once the NPC's current room fuzzy-matches the
// step's target room name; otherwise it suggests the next hop.
type ReachRoom struct {
	Pather Pather
}

// NewReachRoom builds a ReachRoom evaluator with the default BFS pather.
func NewReachRoom() *ReachRoom {
	return &ReachRoom{Pather: BFSPather{}}
}

func (r *ReachRoom) Name() string { return "reach_room" }

func (r *ReachRoom) AppliesToGoal(string) bool { return true }

func (r *ReachRoom) AppliesToStep(stepText string) bool {
	return containsAnyFold(stepText, reachRoomKeywords)
}

func (r *ReachRoom) Evaluate(_ *npctypes.NpcGoal, stepText string, snap Snapshot) Result {
	target := parseReachTarget(stepText)
	if target == "" {
		return Result{Status: NotApplicable}
	}
	if snap.Room == nil {
		return Result{Status: Blocked, Reason: "current room unknown"}
	}
	if fuzzyEquals(snap.Room.Name, target) || fuzzyEquals(snap.Room.ID, target) {
		return Result{Status: Complete, Reason: fmt.Sprintf("arrived at %s", snap.Room.Name)}
	}

	pather := r.Pather
	if pather == nil {
		pather = BFSPather{}
	}
	dir, ok := pather.NextDirection(snap.World, snap.Room.ID, target)
	if !ok {
		return Result{Status: Blocked, Reason: fmt.Sprintf("no known path to %s", target)}
	}
	return Result{
		Status:          InProgress,
		Reason:          fmt.Sprintf("heading toward %s", target),
		SuggestedAction: fmt.Sprintf("[cmd:go %s]", dir),
	}
}

// parseReachTarget extracts the room name following a reach-room keyword.
func parseReachTarget(stepText string) string {
	lower := strings.ToLower(stepText)
	for _, kw := range reachRoomKeywords {
		if idx := strings.Index(lower, kw); idx != -1 {
			rest := stepText[idx+len(kw):]
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
