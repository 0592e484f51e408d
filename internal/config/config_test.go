package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Memory.DefaultMemoryTopK)
	assert.Equal(t, 200, cfg.Memory.CandidateLimit)
	assert.Equal(t, "llama3", cfg.LLM.Model)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "npccore.yaml")
	err := os.WriteFile(path, []byte(`
memory:
  enabled: true
  connection_string: "postgres://localhost/npc"
  use_pgvector: true
  max_write_queue: 50
llm:
  enabled: true
  base_url: "http://localhost:11434"
  model: "mistral"
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Memory.Enabled)
	assert.True(t, cfg.Memory.UsePgvector)
	assert.Equal(t, 50, cfg.Memory.MaxWriteQueue)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	// Untouched fields still default.
	assert.Equal(t, 10, cfg.Memory.MaxWritesPerSec)
}

func TestValidateRejectsEnabledMemoryWithoutDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Memory.Enabled = true
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestEffectiveTimeoutIsMax(t *testing.T) {
	cfg := LLMConfig{TimeoutMs: 8000, StoryTimeoutMs: 30000}
	assert.Equal(t, int64(30000), cfg.EffectiveTimeout().Milliseconds())
}

func TestEnvOverridesConnectionString(t *testing.T) {
	t.Setenv("NPCCORE_MEMORY_DSN", "postgres://env/db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Memory.ConnectionString)
}
