package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all engram configuration.
type Config struct {
	Server     ServerConfig              `toml:"server"`
	Database   DatabaseConfig            `toml:"database"`
	Embedding  EmbeddingConfig           `toml:"embedding"`
	Categories map[string]CategoryConfig `toml:"categories"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	Provider    string `toml:"provider"` // "openai", "ollama", "tfidf"
	OpenAIKey   string `toml:"openai_key"`
	OpenAIModel string `toml:"openai_model"` // e.g. "text-embedding-3-small"
	OllamaURL   string `toml:"ollama_url"`
	OllamaModel string `toml:"ollama_model"` // e.g. "nomic-embed-text"
}

// CategoryConfig configures one memory category ("plugin type"): its decay
// behavior, dedup handling, and default retrieval bound.
type CategoryConfig struct {
	DecayStrategy        string  `toml:"decay_strategy"` // usage, time, hybrid, permanent
	InitialDecay         int     `toml:"initial_decay"`
	MinDecay             int     `toml:"min_decay"`
	MaxDecay             int     `toml:"max_decay"`
	DecayReduction       int     `toml:"decay_reduction"`
	DecayReinforcement   int     `toml:"decay_reinforcement"`
	AutoDelete           bool    `toml:"auto_delete"`
	AffectsSearchRanking bool    `toml:"affects_search_ranking"`
	DecayIntervalHours   int     `toml:"decay_interval_hours"`
	InactivityDays       int     `toml:"inactivity_days"`
	DedupEnabled         bool    `toml:"dedup_enabled"`
	DedupResolution      string  `toml:"dedup_resolution"` // REJECT, MERGE, UPDATE
	DedupSemantic        bool    `toml:"dedup_semantic"`
	DedupThreshold       float64 `toml:"dedup_threshold"`
	DedupNormalize       bool    `toml:"dedup_normalize"`
	ReinforceOnMerge     bool    `toml:"reinforce_on_merge"`
	MaxResults           int     `toml:"max_results"`
	MaxTokens            int     `toml:"max_tokens"`
	MinSimilarity        float64 `toml:"min_similarity"`
	LimitStrategy        string  `toml:"limit_strategy"` // ALL, ANY, GREEDY, FIRST_MET
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37790,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "nomic-embed-text",
			OpenAIModel: "text-embedding-3-small",
		},
		Categories: map[string]CategoryConfig{
			"fact": {
				DecayStrategy:        "hybrid",
				InitialDecay:         100,
				MaxDecay:             128,
				DecayReduction:       10,
				DecayReinforcement:   6,
				AutoDelete:           true,
				AffectsSearchRanking: true,
				InactivityDays:       14,
				DedupEnabled:         true,
				DedupResolution:      "MERGE",
				DedupSemantic:        true,
				DedupThreshold:       0.92,
				DedupNormalize:       true,
				ReinforceOnMerge:     true,
				MaxResults:           10,
				LimitStrategy:        "GREEDY",
			},
			"session": {
				DecayStrategy:      "usage",
				InitialDecay:       50,
				MaxDecay:           100,
				DecayReduction:     15,
				DecayReinforcement: 10,
				AutoDelete:         true,
				DedupEnabled:       true,
				DedupResolution:    "UPDATE",
				DedupNormalize:     true,
				MaxResults:         20,
				LimitStrategy:      "ALL",
			},
			"event": {
				DecayStrategy:      "time",
				InitialDecay:       100,
				DecayReduction:     5,
				DecayIntervalHours: 24,
				AutoDelete:         true,
				DedupEnabled:       true,
				DedupResolution:    "REJECT",
				DedupNormalize:     true,
				MaxResults:         10,
				LimitStrategy:      "GREEDY",
			},
			"core": {
				DecayStrategy: "permanent",
				InitialDecay:  100,
				MaxDecay:      100,
				MinSimilarity: 0.3,
				MaxResults:    5,
				LimitStrategy: "ALL",
			},
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error: defaults apply. OPENAI_API_KEY in the environment overrides the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.Provider = "openai"
		cfg.Embedding.OpenAIKey = key
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DecayInterval returns the configured decay interval as a duration.
func (c CategoryConfig) DecayInterval() time.Duration {
	return time.Duration(c.DecayIntervalHours) * time.Hour
}

// InactivityThreshold returns the configured inactivity threshold as a duration.
func (c CategoryConfig) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityDays) * 24 * time.Hour
}
