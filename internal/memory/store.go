// Package memory implements the hybrid episodic/semantic memory store:
// NPC episodic memories, the shared world knowledge base, and the
// goal/need rows that back the motivation system.
package memory

import (
	"context"
	"time"

	"github.com/hollowmere/npccore/internal/npctypes"
)

// NpcMemoryStore is the episodic memory interface.
type NpcMemoryStore interface {
	// Add inserts a memory write. Returns an error if NpcID or ID is
	// empty — an invariant violation, not a transient failure.
	Add(ctx context.Context, write npctypes.MemoryWrite) error

	// Recall performs the two-stage candidate-then-rank retrieval: pull a
	// bounded candidate set, then rank it down to TopK.
	Recall(ctx context.Context, query npctypes.MemoryQuery) ([]npctypes.NpcMemory, error)
}

// WorldKnowledgeBase is the shared, NPC-scoped knowledge base.
type WorldKnowledgeBase interface {
	Upsert(ctx context.Context, entry npctypes.WorldKbEntry) error
	Get(ctx context.Context, key string) (*npctypes.WorldKbEntry, error)
	SearchByTags(ctx context.Context, tags []string, callerNpcID string, limit int) ([]npctypes.WorldKbEntry, error)
	Search(ctx context.Context, queryEmbedding []float32, callerNpcID string, topK int) ([]npctypes.WorldKbEntry, error)
	Delete(ctx context.Context, key string) error
}

// NpcGoalStore persists the per-NPC goal table.
type NpcGoalStore interface {
	Upsert(ctx context.Context, goal npctypes.NpcGoal) error
	Get(ctx context.Context, npcID, goalType string) (*npctypes.NpcGoal, error)
	GetAll(ctx context.Context, npcID string) ([]npctypes.NpcGoal, error)
	UpdateParams(ctx context.Context, npcID, goalType string, params map[string]any) error
	Clear(ctx context.Context, npcID, goalType string) error
	ClearAll(ctx context.Context, npcID string, preserveSurvival bool) error
}

// NpcNeedStore persists the always-on drive table.
type NpcNeedStore interface {
	Upsert(ctx context.Context, need npctypes.NpcNeed) error
	GetAll(ctx context.Context, npcID string) ([]npctypes.NpcNeed, error)
	Clear(ctx context.Context, npcID, needType string) error
}

// BootstrapResult reports what schema bootstrap actually did.
type BootstrapResult struct {
	DatabaseCreated bool
	VectorActivated bool
}

// clampCandidateLimit and clampTopK re-export the npctypes clamps so the
// store package reads naturally without an import alias at every call
// site.
func clampCandidateLimit(v int) int { return npctypes.ClampCandidateLimit(v) }
func clampTopK(v int) int           { return npctypes.ClampTopK(v) }

// now exists so tests can reason about timestamps without depending on
// wall-clock time inside pure logic helpers.
func now() time.Time { return time.Now().UTC() }
