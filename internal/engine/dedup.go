package engine

import (
	"context"
	"fmt"

	"github.com/engramd/engram/internal/store"
)

// Resolution selects what happens when a save collides with an existing record.
type Resolution string

const (
	// ResolveReject fails the save with a DuplicateError.
	ResolveReject Resolution = "REJECT"
	// ResolveMerge folds metadata and reinforcement into the existing
	// record, leaving its content and embedding untouched.
	ResolveMerge Resolution = "MERGE"
	// ResolveUpdate replaces the existing record's content, embedding and
	// token count with the incoming values and resets decay.
	ResolveUpdate Resolution = "UPDATE"
)

// DedupConfig is the immutable per-category deduplication configuration.
type DedupConfig struct {
	Enabled             bool
	Resolution          Resolution
	Semantic            bool
	SimilarityThreshold float64
	NormalizeContent    bool
	ReinforceOnMerge    bool
}

// incoming carries the derived fields of a save through detection and
// resolution.
type incoming struct {
	content    string
	hash       string
	embedding  []float64
	tokens     int
	importance *float64
	metadata   map[string]string
}

// findExactDuplicate looks up a non-expired record for the user with the same
// content hash. Catches verbatim repeats only.
func findExactDuplicate(db *store.DB, userID, hash string) (*store.Memory, error) {
	m, err := db.FindByHash(userID, hash)
	if err != nil {
		return nil, &StorageError{Op: "find by hash", Err: err}
	}
	return m, nil
}

// findSemanticDuplicate finds the single nearest non-expired record for the
// user by cosine similarity and reports it when similarity meets the
// threshold. A top-1 nearest-neighbor lookup, not a clustering pass.
func findSemanticDuplicate(db *store.DB, userID string, queryVec []float64, threshold float64) (*store.Memory, float64, error) {
	vectors, err := db.VectorsByUser(userID)
	if err != nil {
		return nil, 0, &StorageError{Op: "load vectors", Err: err}
	}
	if len(vectors) == 0 {
		return nil, 0, nil
	}

	memories, err := db.FindByUser(userID, "")
	if err != nil {
		return nil, 0, &StorageError{Op: "find by user", Err: err}
	}
	byID := make(map[string]store.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	var best *store.Memory
	bestSim := 0.0
	for _, v := range vectors {
		m, ok := byID[v.MemoryID]
		if !ok || m.Decay <= 0 {
			continue
		}
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim > bestSim {
			bestSim = sim
			matched := m
			best = &matched
		}
	}

	if best == nil || bestSim < threshold {
		return nil, bestSim, nil
	}
	return best, bestSim, nil
}

// findDuplicate is the hybrid detector: exact check first (cheap), semantic
// fallback only when the exact check finds nothing. First positive match wins.
func findDuplicate(ctx context.Context, db *store.DB, embedder Embedder, userID string, in *incoming, cfg DedupConfig) (*store.Memory, float64, error) {
	existing, err := findExactDuplicate(db, userID, in.hash)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		return existing, 1.0, nil
	}

	if !cfg.Semantic || embedder == nil {
		return nil, 0, nil
	}

	if in.embedding == nil {
		vec, err := embedder.Embed(ctx, in.content)
		if err != nil {
			return nil, 0, fmt.Errorf("embed for dedup: %w", err)
		}
		in.embedding = vec
	}
	return findSemanticDuplicate(db, userID, in.embedding, cfg.SimilarityThreshold)
}

// resolveDuplicate executes exactly one resolution branch against the
// existing record and returns the surviving record.
func resolveDuplicate(db *store.DB, existing *store.Memory, in *incoming, cfg DedupConfig, decay *DecayConfig, similarity float64, embedModel string) (*store.Memory, error) {
	switch cfg.Resolution {
	case ResolveReject:
		return nil, &DuplicateError{ExistingID: existing.ID, Similarity: similarity}

	case ResolveMerge:
		if len(in.metadata) > 0 {
			if existing.Metadata == nil {
				existing.Metadata = make(map[string]string, len(in.metadata))
			}
			for k, v := range in.metadata {
				existing.Metadata[k] = v
			}
		}
		if in.importance != nil {
			existing.Importance = *in.importance
		}
		if cfg.ReinforceOnMerge {
			existing.Decay = clampDecay(existing.Decay+decay.DecayReinforcement, decay)
			existing.UseCount++
			now := nowMilli()
			existing.LastUsedAt = &now
		}
		if err := db.UpdateMemory(existing); err != nil {
			return nil, &StorageError{Op: "merge memory", Err: err}
		}
		return existing, nil

	case ResolveUpdate:
		existing.Content = in.content
		existing.ContentHash = in.hash
		existing.TokenCount = in.tokens
		existing.Decay = clampDecay(decay.InitialDecay, decay)
		if in.importance != nil {
			existing.Importance = *in.importance
		}
		if in.metadata != nil {
			existing.Metadata = in.metadata
		}
		if err := db.UpdateMemory(existing); err != nil {
			return nil, &StorageError{Op: "replace memory", Err: err}
		}
		if in.embedding != nil {
			if err := db.SaveVector(existing.ID, existing.UserID, in.embedding, embedModel); err != nil {
				return nil, &StorageError{Op: "save vector", Err: err}
			}
		}
		return existing, nil
	}

	return nil, &ValidationError{Field: "resolution", Reason: fmt.Sprintf("unknown strategy %q", cfg.Resolution)}
}
