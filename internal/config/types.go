// Package config loads and validates the npccore configuration: the
// memory store, the LLM client, and the world tick driver. It follows the
// teacher's pattern of a YAML file overlaid with environment variables,
// resolved once at startup into a single immutable Config.
package config

import "time"

// Config is the umbrella object returned by Load.
type Config struct {
	Memory MemoryConfig `yaml:"memory"`
	LLM    LLMConfig    `yaml:"llm"`
	Driver DriverConfig `yaml:"driver"`
}

// MemoryConfig configures the memory store.
type MemoryConfig struct {
	Enabled           bool   `yaml:"enabled"`
	ConnectionString  string `yaml:"connection_string"`
	UsePgvector       bool   `yaml:"use_pgvector"`
	DefaultMemoryTopK int    `yaml:"default_memory_top_k"`
	DefaultKbTopK     int    `yaml:"default_kb_top_k"`
	CandidateLimit    int    `yaml:"candidate_limit"`
	MaxWriteQueue     int    `yaml:"max_write_queue"`
	MaxWritesPerSec   int    `yaml:"max_writes_per_second"`
}

// LLMConfig configures the chat/embedding HTTP client.
type LLMConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	StoryModel      string        `yaml:"story_model"`
	APIKey          string        `yaml:"api_key"`
	Temperature     float64       `yaml:"temperature"`
	StoryTemperature float64      `yaml:"story_temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	StoryMaxTokens  int           `yaml:"story_max_tokens"`
	TimeoutMs       int           `yaml:"timeout_ms"`
	StoryTimeoutMs  int           `yaml:"story_timeout_ms"`
	EmbeddingModel  string        `yaml:"embedding_model"`
}

// EffectiveTimeout is the maximum of the NPC and Story profile timeouts.
func (c LLMConfig) EffectiveTimeout() time.Duration {
	npc := time.Duration(c.TimeoutMs) * time.Millisecond
	story := time.Duration(c.StoryTimeoutMs) * time.Millisecond
	if story > npc {
		return story
	}
	return npc
}

// DriverConfig configures the world tick scheduler.
type DriverConfig struct {
	LoopDelayMs int `yaml:"loop_delay_ms"`
}

// LoopDelay returns DriverConfig.LoopDelayMs as a time.Duration.
func (c DriverConfig) LoopDelay() time.Duration {
	return time.Duration(c.LoopDelayMs) * time.Millisecond
}
