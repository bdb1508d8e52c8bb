package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/engramd/engram/internal/store"
)

// Strategy names. The set is closed at compile time; RegisterStrategy extends
// it for callers that bring their own implementation.
const (
	StrategyUsage     = "usage"
	StrategyTime      = "time"
	StrategyHybrid    = "hybrid"
	StrategyPermanent = "permanent"
)

// DecayConfig is the immutable per-category decay configuration.
type DecayConfig struct {
	Strategy             string
	InitialDecay         int
	MinDecay             int
	MaxDecay             int
	DecayReduction       int
	DecayReinforcement   int
	AutoDelete           bool
	AffectsSearchRanking bool
	DecayInterval        time.Duration // time-driven strategy
	InactivityThreshold  time.Duration // hybrid strategy
	Params               map[string]float64
}

// DecayContext is the ephemeral per-record invocation context built by the
// lifecycle pass. Never persisted.
type DecayContext struct {
	Now                  time.Time
	WasUsedInSession     bool
	IsActiveSession      bool
	SessionsSinceLastUse int
	TimeSinceLastUse     time.Duration
	TimeSinceCreated     time.Duration
	UseCount             int
	Config               *DecayConfig
	Params               map[string]float64
}

// DecayStrategy maps (record, context) to a new decay value.
// Implementations must be pure: same inputs, same output.
type DecayStrategy interface {
	Name() string
	Apply(m *store.Memory, dc *DecayContext) int
}

// clampDecay bounds a decay value to [MinDecay, MaxDecay].
func clampDecay(v int, cfg *DecayConfig) int {
	if v < cfg.MinDecay {
		return cfg.MinDecay
	}
	if v > cfg.MaxDecay {
		return cfg.MaxDecay
	}
	return v
}

// InitialDecay returns the starting decay for a new record, scaled by
// importance: round(initialDecay * (0.5 + importance)). Importance 0.5 yields
// the unscaled default.
func InitialDecay(cfg *DecayConfig, importance float64) int {
	v := int(math.Round(float64(cfg.InitialDecay) * (0.5 + importance)))
	return clampDecay(v, cfg)
}

// ShouldAutoDelete reports whether a record has decayed out of existence.
// Permanent records never auto-delete regardless of configuration.
func ShouldAutoDelete(m *store.Memory, cfg *DecayConfig) bool {
	if cfg.Strategy == StrategyPermanent {
		return false
	}
	return cfg.AutoDelete && m.Decay <= cfg.MinDecay
}

// usageStrategy reinforces used records and erodes unused ones, but only while
// the session is active. An inactive session never changes a usage-driven
// record, whatever the used flag says.
type usageStrategy struct{}

func (usageStrategy) Name() string { return StrategyUsage }

func (usageStrategy) Apply(m *store.Memory, dc *DecayContext) int {
	cfg := dc.Config
	if !dc.IsActiveSession {
		return m.Decay
	}
	if dc.WasUsedInSession {
		return clampDecay(m.Decay+cfg.DecayReinforcement, cfg)
	}
	return clampDecay(m.Decay-cfg.DecayReduction, cfg)
}

// timeStrategy recomputes decay from scratch as a function of record age.
// Idempotent and order-independent; usage has no effect.
type timeStrategy struct{}

func (timeStrategy) Name() string { return StrategyTime }

func (timeStrategy) Apply(m *store.Memory, dc *DecayContext) int {
	cfg := dc.Config
	if cfg.DecayInterval <= 0 {
		return clampDecay(m.Decay, cfg)
	}
	intervals := int(dc.TimeSinceCreated / cfg.DecayInterval)
	v := cfg.InitialDecay - intervals*cfg.DecayReduction
	return clampDecay(v, cfg)
}

// hybridStrategy combines a dominant usage term, a gentle fixed time penalty
// past the inactivity threshold, and a small bonus for important records.
type hybridStrategy struct{}

// inactivityPenalty is the fixed time-term deduction once a record has sat
// unused past the configured threshold.
const inactivityPenalty = 2

func (hybridStrategy) Name() string { return StrategyHybrid }

func (hybridStrategy) Apply(m *store.Memory, dc *DecayContext) int {
	cfg := dc.Config
	delta := 0
	if dc.WasUsedInSession {
		delta += cfg.DecayReinforcement
	} else if dc.IsActiveSession {
		delta -= cfg.DecayReduction / 2
	}
	if cfg.InactivityThreshold > 0 && dc.TimeSinceLastUse > cfg.InactivityThreshold {
		delta -= inactivityPenalty
	}
	if m.Importance > 0.8 {
		delta++
	}
	return clampDecay(m.Decay+delta, cfg)
}

// permanentStrategy is the identity function. Records governed by it are never
// auto-deleted.
type permanentStrategy struct{}

func (permanentStrategy) Name() string { return StrategyPermanent }

func (permanentStrategy) Apply(m *store.Memory, _ *DecayContext) int {
	return m.Decay
}

// strategyFactories maps a strategy name to its constructor. Dispatch is a map
// lookup over a closed set — no reflection, no dynamic loading.
var strategyFactories = map[string]func() DecayStrategy{
	StrategyUsage:     func() DecayStrategy { return usageStrategy{} },
	StrategyTime:      func() DecayStrategy { return timeStrategy{} },
	StrategyHybrid:    func() DecayStrategy { return hybridStrategy{} },
	StrategyPermanent: func() DecayStrategy { return permanentStrategy{} },
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string) (DecayStrategy, error) {
	factory, ok := strategyFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown decay strategy %q", name)
	}
	return factory(), nil
}

// RegisterStrategy adds (or replaces) a strategy factory under name.
func RegisterStrategy(name string, factory func() DecayStrategy) {
	strategyFactories[name] = factory
}

// StrategyNames returns the registered strategy names, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(strategyFactories))
	for name := range strategyFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
