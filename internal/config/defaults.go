package config

// Defaults returns the zero-config baseline: memory and LLM disabled,
// the driver loop running at the spec's ~50ms default.
func Defaults() *Config {
	return &Config{
		Memory: MemoryConfig{
			Enabled:           false,
			DefaultMemoryTopK: 5,
			DefaultKbTopK:     5,
			CandidateLimit:    200,
			MaxWriteQueue:     100,
			MaxWritesPerSec:   10,
		},
		LLM: LLMConfig{
			Enabled:          false,
			Model:            "llama3",
			StoryModel:       "llama3",
			Temperature:      0.8,
			StoryTemperature: 0.6,
			MaxTokens:        256,
			StoryMaxTokens:   1024,
			TimeoutMs:        8000,
			StoryTimeoutMs:   30000,
			EmbeddingModel:   "nomic-embed-text",
		},
		Driver: DriverConfig{
			LoopDelayMs: 50,
		},
	}
}

// applyDefaults fills zero-valued fields of cfg from Defaults(), mutating
// cfg in place, rather than pulling in a generic merge library for a
// single flat struct.
func applyDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Memory.DefaultMemoryTopK == 0 {
		cfg.Memory.DefaultMemoryTopK = d.Memory.DefaultMemoryTopK
	}
	if cfg.Memory.DefaultKbTopK == 0 {
		cfg.Memory.DefaultKbTopK = d.Memory.DefaultKbTopK
	}
	if cfg.Memory.CandidateLimit == 0 {
		cfg.Memory.CandidateLimit = d.Memory.CandidateLimit
	}
	if cfg.Memory.MaxWriteQueue == 0 {
		cfg.Memory.MaxWriteQueue = d.Memory.MaxWriteQueue
	}
	if cfg.Memory.MaxWritesPerSec == 0 {
		cfg.Memory.MaxWritesPerSec = d.Memory.MaxWritesPerSec
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.LLM.Model
	}
	if cfg.LLM.StoryModel == "" {
		cfg.LLM.StoryModel = d.LLM.StoryModel
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = d.LLM.Temperature
	}
	if cfg.LLM.StoryTemperature == 0 {
		cfg.LLM.StoryTemperature = d.LLM.StoryTemperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if cfg.LLM.StoryMaxTokens == 0 {
		cfg.LLM.StoryMaxTokens = d.LLM.StoryMaxTokens
	}
	if cfg.LLM.TimeoutMs == 0 {
		cfg.LLM.TimeoutMs = d.LLM.TimeoutMs
	}
	if cfg.LLM.StoryTimeoutMs == 0 {
		cfg.LLM.StoryTimeoutMs = d.LLM.StoryTimeoutMs
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = d.LLM.EmbeddingModel
	}

	if cfg.Driver.LoopDelayMs == 0 {
		cfg.Driver.LoopDelayMs = d.Driver.LoopDelayMs
	}
}
