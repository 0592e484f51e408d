package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hollowmere/npccore/internal/npctypes"
)

// newTestStore spins up a disposable Postgres container, bootstraps the
// schema against it, and returns a ready PostgresStore. The container is
// terminated automatically when the test completes.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed memory store test in -short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("npccore"),
		postgres.WithUsername("npccore"),
		postgres.WithPassword("npccore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, err = Bootstrap(ctx, connStr, false)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool, false, nil)
}

func TestMemoryAddAndRecallOrdersByImportanceThenRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, npctypes.MemoryWrite{ID: "m1", NpcID: "barnaby", Kind: "conversation", Importance: 30, Content: "talked to alice"}))
	require.NoError(t, store.Add(ctx, npctypes.MemoryWrite{ID: "m2", NpcID: "barnaby", Kind: "combat", Importance: 80, Content: "fought a goblin"}))

	got, err := store.Recall(ctx, npctypes.MemoryQuery{NpcID: "barnaby", TopK: 5, CandidateLimit: 50})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "m2", got[0].ID) // importance 80 sorts first
}

func TestMemoryRecallTopKZeroSkipsQuery(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recall(context.Background(), npctypes.MemoryQuery{NpcID: "barnaby", TopK: 0})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryRecallScopesByNpcAndExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Add(ctx, npctypes.MemoryWrite{ID: "expired", NpcID: "barnaby", Kind: "conversation", Importance: 50, Content: "stale", ExpiresAt: &past}))
	require.NoError(t, store.Add(ctx, npctypes.MemoryWrite{ID: "other-npc", NpcID: "someone-else", Kind: "conversation", Importance: 50, Content: "not mine"}))

	got, err := store.Recall(ctx, npctypes.MemoryQuery{NpcID: "barnaby", TopK: 10, CandidateLimit: 50})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWorldKbUpsertGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := npctypes.WorldKbEntry{
		Key:        "lore:tavern",
		Value:      []byte(`{"name":"Old Tavern"}`),
		Tags:       []string{"lore", "tavern"},
		Visibility: npctypes.KBVisibilityPublic,
		Summary:    "the old tavern's history",
	}
	require.NoError(t, store.Upsert(ctx, entry))

	got, err := store.Get(ctx, "lore:tavern")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, entry.Tags, got.Tags)
	require.Equal(t, entry.Visibility, got.Visibility)
	require.Equal(t, entry.Summary, got.Summary)
	require.Nil(t, got.NpcIDs)
}

func TestWorldKbScopedVisibilityExcludesNonMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, npctypes.WorldKbEntry{
		Key: "secret:barnaby-only", Value: []byte(`{}`), Visibility: npctypes.KBVisibilityNpc,
		NpcIDs: map[string]struct{}{"barnaby": {}},
	}))

	visible, err := store.SearchByTags(ctx, nil, "someone-else", 10)
	require.NoError(t, err)
	for _, e := range visible {
		require.NotEqual(t, "secret:barnaby-only", e.Key)
	}
}

func TestGoalStoreUpsertExcludesSurviveFromGetAll(t *testing.T) {
	store := newTestStore(t)
	goals := store.GoalStore()
	ctx := context.Background()

	require.NoError(t, goals.Upsert(ctx, npctypes.NpcGoal{NpcID: "barnaby", GoalType: npctypes.SurviveGoalType, Status: npctypes.GoalStatusActive, Importance: 1}))
	require.NoError(t, goals.Upsert(ctx, npctypes.NpcGoal{NpcID: "barnaby", GoalType: "deliver", Status: npctypes.GoalStatusActive, Importance: npctypes.ImportanceDefault}))

	all, err := goals.GetAll(ctx, "barnaby")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "deliver", all[0].GoalType)
}

func TestGoalStoreClearAllPreservesSurvival(t *testing.T) {
	store := newTestStore(t)
	goals := store.GoalStore()
	ctx := context.Background()

	require.NoError(t, goals.Upsert(ctx, npctypes.NpcGoal{NpcID: "barnaby", GoalType: npctypes.SurviveGoalType, Importance: 1}))
	require.NoError(t, goals.Upsert(ctx, npctypes.NpcGoal{NpcID: "barnaby", GoalType: "deliver", Importance: npctypes.ImportanceDefault}))

	require.NoError(t, goals.ClearAll(ctx, "barnaby", true))

	survive, err := goals.Get(ctx, "barnaby", npctypes.SurviveGoalType)
	require.NoError(t, err)
	require.NotNil(t, survive)
}

func TestNeedStoreUpsertAndClear(t *testing.T) {
	store := newTestStore(t)
	needs := store.NeedStore()
	ctx := context.Background()

	require.NoError(t, needs.Upsert(ctx, npctypes.NpcNeed{NpcID: "barnaby", NeedType: npctypes.SurviveNeedType, Level: 1}))
	all, err := needs.GetAll(ctx, "barnaby")
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, needs.Clear(ctx, "barnaby", npctypes.SurviveNeedType))
	all, err = needs.GetAll(ctx, "barnaby")
	require.NoError(t, err)
	require.Empty(t, all)
}
