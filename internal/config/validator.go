package config

import "fmt"

// Validate checks the resolved config for the combinations the rest of
// the core assumes hold (e.g. a memory DSN when memory is enabled).
func Validate(cfg *Config) error {
	if cfg.Memory.Enabled && cfg.Memory.ConnectionString == "" {
		return fmt.Errorf("memory.enabled is true but no connection string was configured")
	}
	if cfg.Memory.MaxWriteQueue < 0 {
		return fmt.Errorf("memory.max_write_queue must be >= 0, got %d", cfg.Memory.MaxWriteQueue)
	}
	if cfg.Memory.MaxWritesPerSec < 0 {
		return fmt.Errorf("memory.max_writes_per_second must be >= 0, got %d", cfg.Memory.MaxWritesPerSec)
	}
	if cfg.LLM.Enabled && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.enabled is true but no base_url was configured")
	}
	if cfg.Driver.LoopDelayMs < 0 {
		return fmt.Errorf("driver.loop_delay_ms must be >= 0, got %d", cfg.Driver.LoopDelayMs)
	}
	return nil
}
