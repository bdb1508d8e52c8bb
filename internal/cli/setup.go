package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/engine"
	"github.com/engramd/engram/internal/store"
)

// openEngine loads config, opens the database, builds the category registry
// and embedder, and returns a ready engine. The caller closes the DB.
func openEngine() (*engine.Engine, *store.DB, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, cfg, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, cfg, fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("open database: %w", err)
	}

	eng := engine.New(db, buildRegistry(cfg))
	configureEmbedder(eng, db, cfg)
	return eng, db, cfg, nil
}

// buildRegistry turns the config's category blocks into the startup-time
// capability registry.
func buildRegistry(cfg config.Config) *engine.Registry {
	registry := engine.NewRegistry(engine.DefaultCapability())
	for name, cc := range cfg.Categories {
		registry.Register(name, capabilityFromConfig(cc))
	}
	return registry
}

func capabilityFromConfig(cc config.CategoryConfig) engine.Capability {
	maxDecay := cc.MaxDecay
	if maxDecay == 0 {
		maxDecay = cc.InitialDecay
	}
	return engine.Capability{
		Decay: engine.DecayConfig{
			Strategy:             cc.DecayStrategy,
			InitialDecay:         cc.InitialDecay,
			MinDecay:             cc.MinDecay,
			MaxDecay:             maxDecay,
			DecayReduction:       cc.DecayReduction,
			DecayReinforcement:   cc.DecayReinforcement,
			AutoDelete:           cc.AutoDelete,
			AffectsSearchRanking: cc.AffectsSearchRanking,
			DecayInterval:        cc.DecayInterval(),
			InactivityThreshold:  cc.InactivityThreshold(),
		},
		DefaultLimit: engine.QueryLimit{
			MaxCount:      cc.MaxResults,
			MaxTokens:     cc.MaxTokens,
			MinSimilarity: cc.MinSimilarity,
			Strategy:      engine.LimitStrategy(cc.LimitStrategy),
		},
		Dedup: engine.DedupConfig{
			Enabled:             cc.DedupEnabled,
			Resolution:          engine.Resolution(cc.DedupResolution),
			Semantic:            cc.DedupSemantic,
			SimilarityThreshold: cc.DedupThreshold,
			NormalizeContent:    cc.DedupNormalize,
			ReinforceOnMerge:    cc.ReinforceOnMerge,
		},
	}
}

// configureEmbedder picks the best available embedding provider:
// OpenAI when a key is configured, Ollama when reachable, TF-IDF otherwise.
func configureEmbedder(eng *engine.Engine, db *store.DB, cfg config.Config) {
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.OpenAIKey != "" {
		eng.SetEmbedder(engine.NewOpenAIEmbedder(cfg.Embedding.OpenAIKey, cfg.Embedding.OpenAIModel))
		fmt.Fprintf(os.Stderr, "  embedder: openai (%s)\n", cfg.Embedding.OpenAIModel)
		return
	}

	if engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.OllamaModel) {
		eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.OllamaModel, 768))
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embedding.OllamaModel)
		return
	}

	emb, err := engine.NewTFIDFEmbedder(db, 512)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", err)
		return
	}
	eng.SetEmbedder(emb)
	fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
}

// formatAge renders a millisecond timestamp as a rough age.
func formatAge(ms int64) string {
	d := time.Since(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
