package memory

import (
	"context"

	"github.com/hollowmere/npccore/internal/npctypes"
)

// GoalStore and NeedStore present the NpcGoalStore/NpcNeedStore
// interfaces over a shared PostgresStore. They exist as separate types
// because Upsert/Get/GetAll/Clear on the goal and need tables would
// otherwise collide with WorldKnowledgeBase's identically-named methods
// on the same underlying connection pool.
type GoalStore struct{ store *PostgresStore }

func (s *PostgresStore) GoalStore() GoalStore { return GoalStore{store: s} }

func (g GoalStore) Upsert(ctx context.Context, goal npctypes.NpcGoal) error {
	return g.store.UpsertGoal(ctx, goal)
}

func (g GoalStore) Get(ctx context.Context, npcID, goalType string) (*npctypes.NpcGoal, error) {
	return g.store.GetGoal(ctx, npcID, goalType)
}

func (g GoalStore) GetAll(ctx context.Context, npcID string) ([]npctypes.NpcGoal, error) {
	return g.store.GetAllGoals(ctx, npcID)
}

func (g GoalStore) UpdateParams(ctx context.Context, npcID, goalType string, params map[string]any) error {
	return g.store.UpdateGoalParams(ctx, npcID, goalType, params)
}

func (g GoalStore) Clear(ctx context.Context, npcID, goalType string) error {
	return g.store.ClearGoal(ctx, npcID, goalType)
}

func (g GoalStore) ClearAll(ctx context.Context, npcID string, preserveSurvival bool) error {
	return g.store.ClearAllGoals(ctx, npcID, preserveSurvival)
}

type NeedStore struct{ store *PostgresStore }

func (s *PostgresStore) NeedStore() NeedStore { return NeedStore{store: s} }

func (n NeedStore) Upsert(ctx context.Context, need npctypes.NpcNeed) error {
	return n.store.UpsertNeed(ctx, need)
}

func (n NeedStore) GetAll(ctx context.Context, npcID string) ([]npctypes.NpcNeed, error) {
	return n.store.GetAllNeeds(ctx, npcID)
}

func (n NeedStore) Clear(ctx context.Context, npcID, needType string) error {
	return n.store.ClearNeed(ctx, npcID, needType)
}

var (
	_ NpcMemoryStore     = (*PostgresStore)(nil)
	_ WorldKnowledgeBase = (*PostgresStore)(nil)
	_ NpcGoalStore       = GoalStore{}
	_ NpcNeedStore       = NeedStore{}
)
