package memory

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	stdsql "database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" for database/sql, used by golang-migrate
	"github.com/pgvector/pgvector-go"

	"github.com/hollowmere/npccore/internal/npctypes"
)

//go:embed migrations
var migrationsFS embed.FS

// EmbedFunc produces a dense embedding for text; nil means no embedder is
// configured and auto-embed on upsert is skipped.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// PostgresStore implements NpcMemoryStore and WorldKnowledgeBase against a
// single Postgres datasource; its GoalStore and NeedStore methods return
// the NpcGoalStore and NpcNeedStore views over the same pool.
type PostgresStore struct {
	pool        *pgxpool.Pool
	usePgvector bool
	embed       EmbedFunc
}

// NewPostgresStore wraps an already-connected pool. Call Bootstrap first
// to create the database/extension/tables.
func NewPostgresStore(pool *pgxpool.Pool, usePgvector bool, embed EmbedFunc) *PostgresStore {
	return &PostgresStore{pool: pool, usePgvector: usePgvector, embed: embed}
}

// Bootstrap creates the target database if absent (connecting to the
// admin "postgres" database derived from dsn), enables the vector
// extension when requested, and applies embedded migrations. It reports
// whether vector support actually activated.
func Bootstrap(ctx context.Context, dsn string, usePgvector bool) (BootstrapResult, error) {
	var result BootstrapResult

	dbName, adminDSN, err := adminDSNFor(dsn)
	if err != nil {
		return result, fmt.Errorf("memory: resolve admin dsn: %w", err)
	}

	adminPool, err := pgxpool.New(ctx, adminDSN)
	if err != nil {
		return result, fmt.Errorf("memory: connect to admin database: %w", err)
	}
	defer adminPool.Close()

	var exists bool
	err = adminPool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists)
	if err != nil {
		return result, fmt.Errorf("memory: check database existence: %w", err)
	}
	if !exists {
		// Database names cannot be parameterized; dbName was parsed out of
		// our own configured DSN, not user input.
		_, err = adminPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize()))
		if err != nil {
			return result, fmt.Errorf("memory: create database: %w", err)
		}
		result.DatabaseCreated = true
	}

	targetPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return result, fmt.Errorf("memory: connect to target database: %w", err)
	}
	defer targetPool.Close()

	if usePgvector {
		if _, err := targetPool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			slog.Warn("memory: failed to enable vector extension, continuing without it", "error", err)
		} else {
			result.VectorActivated = true
		}
	}

	if err := runMigrations(dsn, result.VectorActivated); err != nil {
		return result, fmt.Errorf("memory: run migrations: %w", err)
	}

	return result, nil
}

// adminDSNFor swaps a postgres:// DSN's path (database name) for
// "postgres", returning the original database name alongside it.
func adminDSNFor(dsn string) (dbName string, adminDSN string, err error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", err
	}
	dbName = strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", "", errors.New("dsn has no database name")
	}
	admin := *u
	admin.Path = "/postgres"
	return dbName, admin.String(), nil
}

// runMigrations applies the embedded schema. Migration 000002 (the
// vector column) is skipped entirely unless the vector extension was
// actually activated, since the `vector` type would not exist otherwise.
func runMigrations(dsn string, vectorActivated bool) error {
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	defer func() { _ = sourceDriver.Close() }()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "npccore", driver)
	if err != nil {
		return err
	}

	target := uint(1)
	if vectorActivated {
		target = 2
	}
	if err := m.Migrate(target); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// --- NpcMemoryStore ---------------------------------------------------

func (s *PostgresStore) Add(ctx context.Context, w npctypes.MemoryWrite) error {
	if w.ID == "" || w.NpcID == "" {
		return errors.New("memory: id and npc id are required")
	}
	importance := npctypes.ClampImportance(w.Importance)

	if s.usePgvector && w.Embedding != nil {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO npc_memories (id, npc_id, subject_player, room_id, area_id, kind, importance, tags, content, expires_at, embedding)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO NOTHING`,
			w.ID, w.NpcID, nullable(w.SubjectPlayer), nullable(w.RoomID), nullable(w.AreaID),
			w.Kind, importance, w.Tags, w.Content, w.ExpiresAt, pgvector.NewVector(w.Embedding))
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO npc_memories (id, npc_id, subject_player, room_id, area_id, kind, importance, tags, content, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		w.ID, w.NpcID, nullable(w.SubjectPlayer), nullable(w.RoomID), nullable(w.AreaID),
		w.Kind, importance, w.Tags, w.Content, w.ExpiresAt)
	return err
}

func (s *PostgresStore) Recall(ctx context.Context, q npctypes.MemoryQuery) ([]npctypes.NpcMemory, error) {
	topK := clampTopK(q.TopK)
	if topK == 0 {
		return nil, nil
	}
	limit := q.CandidateLimit
	if limit == 0 {
		limit = npctypes.DefaultCandidateLimit
	}
	candidateLimit := clampCandidateLimit(limit)

	orderBy := "importance DESC, created_at DESC"
	args := []any{q.NpcID, nullable(q.Subject), tagsOrNil(q.Tags), candidateLimit, topK}
	if s.usePgvector && len(q.QueryEmbedding) > 0 {
		orderBy = "embedding <=> $6"
		args = append(args, pgvector.NewVector(q.QueryEmbedding))
	}

	sqlText := fmt.Sprintf(`
		WITH candidates AS (
			SELECT id, npc_id, subject_player, room_id, area_id, kind, importance, tags, content, created_at, expires_at, embedding
			FROM npc_memories
			WHERE npc_id = $1
			  AND (expires_at IS NULL OR expires_at > now())
			  AND ($2::text IS NULL OR subject_player = $2)
			  AND ($3::text[] IS NULL OR tags && $3)
			ORDER BY created_at DESC
			LIMIT $4
		)
		SELECT id, npc_id, subject_player, room_id, area_id, kind, importance, tags, content, created_at, expires_at
		FROM candidates
		ORDER BY %s
		LIMIT $5`, orderBy)

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []npctypes.NpcMemory
	for rows.Next() {
		var m npctypes.NpcMemory
		var subject, room, area stdsql.NullString
		if err := rows.Scan(&m.ID, &m.NpcID, &subject, &room, &area, &m.Kind, &m.Importance, &m.Tags, &m.Content, &m.CreatedAt, &m.ExpiresAt); err != nil {
			return nil, err
		}
		m.SubjectPlayer = subject.String
		m.RoomID = room.String
		m.AreaID = area.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- WorldKnowledgeBase ------------------------------------------------

func (s *PostgresStore) Upsert(ctx context.Context, entry npctypes.WorldKbEntry) error {
	if entry.Key == "" {
		return errors.New("memory: kb key is required")
	}

	if s.usePgvector && entry.Embedding == nil && s.embed != nil {
		if vec, err := s.embed(ctx, entry.Summary+" "+string(entry.Value)); err == nil && vec != nil {
			entry.Embedding = vec
		}
	}

	npcIDs := npcIDsOrNil(entry.NpcIDs)
	valueJSON := entry.Value
	if valueJSON == nil {
		valueJSON = []byte("{}")
	}

	if s.usePgvector && entry.Embedding != nil {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO world_kb (key, value, tags, visibility, npc_ids, summary, updated_at, embedding)
			VALUES ($1,$2,$3,$4,$5,$6, now(), $7)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value, tags = excluded.tags, visibility = excluded.visibility,
				npc_ids = excluded.npc_ids, summary = excluded.summary, updated_at = now(), embedding = excluded.embedding`,
			entry.Key, valueJSON, entry.Tags, string(entry.Visibility), npcIDs, nullable(entry.Summary), pgvector.NewVector(entry.Embedding))
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO world_kb (key, value, tags, visibility, npc_ids, summary, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value, tags = excluded.tags, visibility = excluded.visibility,
			npc_ids = excluded.npc_ids, summary = excluded.summary, updated_at = now()`,
		entry.Key, valueJSON, entry.Tags, string(entry.Visibility), npcIDs, nullable(entry.Summary))
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*npctypes.WorldKbEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT key, value, tags, visibility, npc_ids, summary, updated_at
		FROM world_kb WHERE key = $1`, key)
	return scanKbRow(row)
}

func (s *PostgresStore) SearchByTags(ctx context.Context, tags []string, callerNpcID string, limit int) ([]npctypes.WorldKbEntry, error) {
	visClause, args := visibilityClause(callerNpcID, 2)
	args = append([]any{tags}, args...)
	args = append(args, limit)

	sqlText := fmt.Sprintf(`
		SELECT key, value, tags, visibility, npc_ids, summary, updated_at
		FROM world_kb
		WHERE tags && $1 AND %s
		ORDER BY updated_at DESC
		LIMIT $%d`, visClause, len(args))

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKbRows(rows)
}

func (s *PostgresStore) Search(ctx context.Context, queryEmbedding []float32, callerNpcID string, topK int) ([]npctypes.WorldKbEntry, error) {
	topK = clampTopK(topK)
	if topK == 0 || !s.usePgvector {
		return nil, nil
	}
	visClause, visArgs := visibilityClause(callerNpcID, 2)
	args := append([]any{pgvector.NewVector(queryEmbedding)}, visArgs...)
	args = append(args, topK)

	sqlText := fmt.Sprintf(`
		SELECT key, value, tags, visibility, npc_ids, summary, updated_at
		FROM world_kb
		WHERE embedding IS NOT NULL AND %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, visClause, len(args))

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKbRows(rows)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM world_kb WHERE key = $1`, key)
	return err
}

// visibilityClause returns a SQL predicate fragment and its bind args,
// starting parameter numbering at startIdx.
func visibilityClause(callerNpcID string, startIdx int) (string, []any) {
	if callerNpcID == "" {
		return "npc_ids IS NULL", nil
	}
	return fmt.Sprintf("(npc_ids IS NULL OR $%d = ANY(npc_ids))", startIdx), []any{callerNpcID}
}

func scanKbRow(row pgx.Row) (*npctypes.WorldKbEntry, error) {
	var e npctypes.WorldKbEntry
	var summary stdsql.NullString
	var npcIDs []string
	var visibility string
	if err := row.Scan(&e.Key, &e.Value, &e.Tags, &visibility, &npcIDs, &summary, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Visibility = npctypes.KBVisibility(visibility)
	e.Summary = summary.String
	if npcIDs != nil {
		e.NpcIDs = make(map[string]struct{}, len(npcIDs))
		for _, id := range npcIDs {
			e.NpcIDs[id] = struct{}{}
		}
	}
	return &e, nil
}

func scanKbRows(rows pgx.Rows) ([]npctypes.WorldKbEntry, error) {
	var out []npctypes.WorldKbEntry
	for rows.Next() {
		var e npctypes.WorldKbEntry
		var summary stdsql.NullString
		var npcIDs []string
		var visibility string
		if err := rows.Scan(&e.Key, &e.Value, &e.Tags, &visibility, &npcIDs, &summary, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Visibility = npctypes.KBVisibility(visibility)
		e.Summary = summary.String
		if npcIDs != nil {
			e.NpcIDs = make(map[string]struct{}, len(npcIDs))
			for _, id := range npcIDs {
				e.NpcIDs[id] = struct{}{}
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- NpcGoalStore -------------------------------------------------------

func (s *PostgresStore) UpsertGoal(ctx context.Context, g npctypes.NpcGoal) error {
	paramsJSON, err := json.Marshal(g.Params)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO npc_goals (npc_id, goal_type, target_player, params, status, importance, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		ON CONFLICT (npc_id, goal_type) DO UPDATE SET
			target_player = excluded.target_player, params = excluded.params,
			status = excluded.status, importance = excluded.importance, updated_at = now()`,
		g.NpcID, g.GoalType, nullable(g.TargetPlayer), paramsJSON, g.Status, g.Importance)
	return err
}

func (s *PostgresStore) GetGoal(ctx context.Context, npcID, goalType string) (*npctypes.NpcGoal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT npc_id, goal_type, target_player, params, status, importance, updated_at
		FROM npc_goals WHERE npc_id = $1 AND goal_type = $2`, npcID, goalType)
	return scanGoalRow(row)
}

func (s *PostgresStore) GetAllGoals(ctx context.Context, npcID string) ([]npctypes.NpcGoal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT npc_id, goal_type, target_player, params, status, importance, updated_at
		FROM npc_goals WHERE npc_id = $1 AND goal_type <> $2
		ORDER BY importance ASC, updated_at ASC`, npcID, npctypes.SurviveGoalType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []npctypes.NpcGoal
	for rows.Next() {
		var g npctypes.NpcGoal
		var target stdsql.NullString
		var paramsJSON []byte
		if err := rows.Scan(&g.NpcID, &g.GoalType, &target, &paramsJSON, &g.Status, &g.Importance, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.TargetPlayer = target.String
		_ = json.Unmarshal(paramsJSON, &g.Params)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateGoalParams(ctx context.Context, npcID, goalType string, params map[string]any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE npc_goals SET params = $3, updated_at = now()
		WHERE npc_id = $1 AND goal_type = $2`, npcID, goalType, paramsJSON)
	return err
}

func (s *PostgresStore) ClearGoal(ctx context.Context, npcID, goalType string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM npc_goals WHERE npc_id = $1 AND goal_type = $2`, npcID, goalType)
	return err
}

func (s *PostgresStore) ClearAllGoals(ctx context.Context, npcID string, preserveSurvival bool) error {
	if preserveSurvival {
		_, err := s.pool.Exec(ctx, `DELETE FROM npc_goals WHERE npc_id = $1 AND goal_type <> $2`, npcID, npctypes.SurviveGoalType)
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM npc_goals WHERE npc_id = $1`, npcID)
	return err
}

func scanGoalRow(row pgx.Row) (*npctypes.NpcGoal, error) {
	var g npctypes.NpcGoal
	var target stdsql.NullString
	var paramsJSON []byte
	if err := row.Scan(&g.NpcID, &g.GoalType, &target, &paramsJSON, &g.Status, &g.Importance, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.TargetPlayer = target.String
	_ = json.Unmarshal(paramsJSON, &g.Params)
	return &g, nil
}

// --- NpcNeedStore --------------------------------------------------------

func (s *PostgresStore) UpsertNeed(ctx context.Context, n npctypes.NpcNeed) error {
	paramsJSON, err := json.Marshal(n.Params)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO npc_needs (npc_id, need_type, level, params, status, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT (npc_id, need_type) DO UPDATE SET
			level = excluded.level, params = excluded.params, status = excluded.status, updated_at = now()`,
		n.NpcID, n.NeedType, n.Level, paramsJSON, n.Status)
	return err
}

func (s *PostgresStore) GetAllNeeds(ctx context.Context, npcID string) ([]npctypes.NpcNeed, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT npc_id, need_type, level, params, status, updated_at
		FROM npc_needs WHERE npc_id = $1 ORDER BY level ASC`, npcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []npctypes.NpcNeed
	for rows.Next() {
		var n npctypes.NpcNeed
		var paramsJSON []byte
		if err := rows.Scan(&n.NpcID, &n.NeedType, &n.Level, &paramsJSON, &n.Status, &n.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(paramsJSON, &n.Params)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearNeed(ctx context.Context, npcID, needType string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM npc_needs WHERE npc_id = $1 AND need_type = $2`, npcID, needType)
	return err
}

// --- helpers --------------------------------------------------------

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func tagsOrNil(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func npcIDsOrNil(set map[string]struct{}) []string {
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
