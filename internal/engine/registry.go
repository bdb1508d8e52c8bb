package engine

import (
	"sort"
	"time"
)

// Capability is the fixed per-category behavior record: how its records decay,
// how duplicates are resolved, and the default bound on retrieval.
type Capability struct {
	Decay        DecayConfig
	DefaultLimit QueryLimit
	Dedup        DedupConfig
}

// Registry maps category names to capabilities. Populated by direct calls at
// startup; lookups after that are read-only.
type Registry struct {
	caps map[string]Capability
	def  Capability
}

// DefaultCapability is the behavior for categories nobody registered: hybrid
// decay with auto-delete, merge-on-duplicate with semantic checking, and a
// greedy ten-item retrieval bound.
func DefaultCapability() Capability {
	return Capability{
		Decay: DecayConfig{
			Strategy:            StrategyHybrid,
			InitialDecay:        100,
			MinDecay:            0,
			MaxDecay:            128,
			DecayReduction:      10,
			DecayReinforcement:  6,
			AutoDelete:          true,
			InactivityThreshold: 14 * 24 * time.Hour,
		},
		DefaultLimit: QueryLimit{
			MaxCount: 10,
			Strategy: LimitGreedy,
		},
		Dedup: DedupConfig{
			Enabled:             true,
			Resolution:          ResolveMerge,
			Semantic:            true,
			SimilarityThreshold: 0.92,
			NormalizeContent:    true,
			ReinforceOnMerge:    true,
		},
	}
}

// NewRegistry creates a registry with the given fallback capability.
func NewRegistry(def Capability) *Registry {
	return &Registry{
		caps: make(map[string]Capability),
		def:  def,
	}
}

// Register binds a category name to a capability, replacing any previous one.
func (r *Registry) Register(category string, c Capability) {
	r.caps[category] = c
}

// Capability returns the capability for a category, falling back to the
// registry default for unknown categories.
func (r *Registry) Capability(category string) Capability {
	if c, ok := r.caps[category]; ok {
		return c
	}
	return r.def
}

// Known reports whether a category was explicitly registered.
func (r *Registry) Known(category string) bool {
	_, ok := r.caps[category]
	return ok
}

// Categories returns the registered category names, sorted.
func (r *Registry) Categories() []string {
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
