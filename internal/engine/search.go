package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/engramd/engram/internal/store"
)

// DefaultSearchWindow is the candidate pool size fetched ahead of bounded
// selection when the caller doesn't choose one.
const DefaultSearchWindow = 50

// RankedCandidates embeds nothing itself: given a query vector, it scores the
// user's stored vectors by cosine similarity and returns the top windowSize
// candidates sorted descending. When a record's category has
// AffectsSearchRanking set, ordering weights similarity by normalized decay;
// the reported Similarity stays the raw cosine score either way.
func (e *Engine) RankedCandidates(userID string, queryVec []float64, category string, windowSize int) ([]Candidate, error) {
	if windowSize <= 0 {
		windowSize = DefaultSearchWindow
	}

	vectors, err := e.DB.VectorsByUser(userID)
	if err != nil {
		return nil, &StorageError{Op: "load vectors", Err: err}
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	memories, err := e.DB.FindByUser(userID, category)
	if err != nil {
		return nil, &StorageError{Op: "find by user", Err: err}
	}
	byID := make(map[string]store.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	type ranked struct {
		c    Candidate
		rank float64
	}
	var results []ranked
	for _, v := range vectors {
		m, ok := byID[v.MemoryID]
		if !ok || m.Decay <= 0 {
			continue
		}

		sim := CosineSimilarity(queryVec, v.Embedding)
		rank := sim
		capability := e.Registry.Capability(m.Category)
		if capability.Decay.AffectsSearchRanking && capability.Decay.MaxDecay > 0 {
			rank = sim * (float64(m.Decay) / float64(capability.Decay.MaxDecay))
		}
		if rank <= 0 {
			continue
		}
		results = append(results, ranked{
			c:    Candidate{Memory: m, Similarity: sim},
			rank: rank,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].rank != results[j].rank {
			return results[i].rank > results[j].rank
		}
		return results[i].c.Memory.ID < results[j].c.Memory.ID
	})

	if len(results) > windowSize {
		results = results[:windowSize]
	}

	candidates := make([]Candidate, len(results))
	for i, r := range results {
		candidates[i] = r.c
	}
	return candidates, nil
}

// Search embeds the query, fetches a ranked candidate window, and runs it
// through the bounded selector. Admitted records are touched so the next
// lifecycle pass sees them as used.
func (e *Engine) Search(ctx context.Context, userID, query, category string, limit QueryLimit, windowSize int) ([]store.Memory, ResultMeta, error) {
	if userID == "" {
		return nil, ResultMeta{}, &ValidationError{Field: "user", Reason: "must not be empty"}
	}
	if query == "" {
		return nil, ResultMeta{}, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if e.Embedder == nil {
		return nil, ResultMeta{}, fmt.Errorf("no embedder configured")
	}

	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, ResultMeta{}, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := e.RankedCandidates(userID, queryVec, category, windowSize)
	if err != nil {
		return nil, ResultMeta{}, err
	}

	records, meta, err := SelectBounded(candidates, limit)
	if err != nil {
		return nil, ResultMeta{}, err
	}

	for _, m := range records {
		e.DB.TouchMemory(m.ID)
	}
	return records, meta, nil
}
