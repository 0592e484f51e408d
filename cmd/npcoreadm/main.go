// Command npcoreadm is the debug/introspection entrypoint: it loads
// configuration, optionally seeds the world knowledge base from a plain
// text file, and serves a small HTTP API: read-only endpoints over per-NPC
// goals, needs, memories and KB entries, plus subscribe/unsubscribe on the
// live trace fabric.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hollowmere/npccore/internal/config"
	"github.com/hollowmere/npccore/internal/kbseed"
	"github.com/hollowmere/npccore/internal/llmclient"
	"github.com/hollowmere/npccore/internal/memory"
	"github.com/hollowmere/npccore/internal/trace"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	kbSeedPath := flag.String("kb-seed", getEnv("KB_SEED_FILE", ""), "path to a KB seed file to load at startup")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8090")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	ctx := context.Background()
	cfgPath := filepath.Join(*configDir, "npccore.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	deps := &adminDeps{tracer: trace.New()}

	if cfg.Memory.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Memory.ConnectionString)
		if err != nil {
			log.Fatalf("failed to connect to memory store: %v", err)
		}
		defer pool.Close()

		var embed memory.EmbedFunc
		if cfg.LLM.Enabled {
			llm := llmclient.NewHTTPClient(cfg.LLM)
			embed = llm.Embed
		}

		store := memory.NewPostgresStore(pool, cfg.Memory.UsePgvector, embed)
		deps.goals = store.GoalStore()
		deps.needs = store.NeedStore()
		deps.memories = store
		deps.kb = store
		log.Println("connected to memory store")
	} else {
		log.Println("memory store disabled, goal/need/memory/kb endpoints will report unavailable")
	}

	if *kbSeedPath != "" {
		if deps.kb == nil {
			log.Fatalf("kb-seed given but memory store is disabled")
		}
		if err := loadKbSeedFile(ctx, deps.kb, *kbSeedPath); err != nil {
			log.Fatalf("failed to load kb seed file %s: %v", *kbSeedPath, err)
		}
	}

	router := gin.Default()
	registerRoutes(router, deps)

	log.Printf("npcoreadm listening on :%s", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// loadKbSeedFile parses path with kbseed.Parse and upserts every entry
// into kb, stopping at the first failure.
func loadKbSeedFile(ctx context.Context, kb memory.WorldKnowledgeBase, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := kbseed.Parse(f)
	if err != nil {
		return err
	}

	for _, e := range entries {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := kb.Upsert(reqCtx, e)
		cancel()
		if err != nil {
			return err
		}
	}
	log.Printf("kb seed: loaded %d entries from %s", len(entries), path)
	return nil
}
