package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads npccore.yaml from configPath, overlays a .env file from the
// working directory if present, applies defaults, and validates the result.
//
// Steps: load YAML, expand env overrides, apply defaults, validate.
func Load(configPath string) (*Config, error) {
	log := slog.With("config_path", configPath)

	// .env is best-effort: local dev convenience, never required in prod.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "error", err)
	}

	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			log.Info("no config file found, using defaults")
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets a handful of secrets and connection strings come
// from the environment instead of the YAML file
// ("memory.connectionString (else env vars)", "llm.apiKey ... or taken
// from the environment").
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NPCCORE_MEMORY_DSN"); v != "" {
		cfg.Memory.ConnectionString = v
	}
	if v := os.Getenv("NPCCORE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NPCCORE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
}
