package engine

import (
	"log"
	"time"

	"github.com/engramd/engram/internal/store"
)

// LifecycleResult reports the actual outcome of a lifecycle pass. The pass is
// not an atomic batch: counts reflect what really happened.
type LifecycleResult struct {
	DecayApplied    int `json:"decay_applied"`
	MemoriesDeleted int `json:"memories_deleted"`
}

// ApplyLifecycle runs one decay pass over a user's records, optionally scoped
// to a category. usedIDs marks the records retrieved during the session being
// closed out; activeSession distinguishes genuine usage activity from passive
// background maintenance. Records are processed in id order (ULIDs sort by
// creation time), so passes are reproducible. A single record's failure is
// logged and the pass continues.
func (e *Engine) ApplyLifecycle(userID, category string, usedIDs map[string]bool, activeSession bool) (LifecycleResult, error) {
	var result LifecycleResult

	memories, err := e.DB.FindByUser(userID, category)
	if err != nil {
		return result, &StorageError{Op: "find by user", Err: err}
	}

	now := time.Now()
	for i := range memories {
		m := &memories[i]
		capability := e.Registry.Capability(m.Category)

		strategy, err := NewStrategy(capability.Decay.Strategy)
		if err != nil {
			log.Printf("lifecycle: memory %s: %v", m.ID, err)
			continue
		}

		dc := buildContext(m, &capability.Decay, now, usedIDs[m.ID], activeSession)
		newDecay := strategy.Apply(m, dc)

		if newDecay != m.Decay {
			if err := e.DB.UpdateDecay(m.ID, newDecay); err != nil {
				log.Printf("lifecycle: update decay for %s: %v", m.ID, err)
				continue
			}
			m.Decay = newDecay
		}
		result.DecayApplied++

		if ShouldAutoDelete(m, &capability.Decay) {
			if err := e.DB.DeleteMemory(m.ID); err != nil {
				log.Printf("lifecycle: delete %s: %v", m.ID, err)
				continue
			}
			result.MemoriesDeleted++
		}
	}

	return result, nil
}

// buildContext assembles the per-record decay invocation context from the
// record's own timestamps.
func buildContext(m *store.Memory, cfg *DecayConfig, now time.Time, used, active bool) *DecayContext {
	created := time.UnixMilli(m.CreatedAt)
	lastUsed := created
	if m.LastUsedAt != nil {
		lastUsed = time.UnixMilli(*m.LastUsedAt)
	}

	return &DecayContext{
		Now:              now,
		WasUsedInSession: used,
		IsActiveSession:  active,
		TimeSinceLastUse: now.Sub(lastUsed),
		TimeSinceCreated: now.Sub(created),
		UseCount:         m.UseCount,
		Config:           cfg,
		Params:           cfg.Params,
	}
}
