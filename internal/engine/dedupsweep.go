package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/engramd/engram/internal/store"
)

// DedupSweep finds semantically duplicate stored records for a user and
// collapses them. For each category it clusters records by cosine similarity
// above the category's threshold (or the override, when > 0), keeps the most
// recently updated record per cluster, folds the others into it per the
// category's resolution config, and deletes them. Returns the number of
// records removed.
func (e *Engine) DedupSweep(ctx context.Context, userID string, threshold float64) (int, error) {
	if e.Embedder == nil {
		return 0, fmt.Errorf("no embedder configured")
	}

	memories, err := e.DB.FindByUser(userID, "")
	if err != nil {
		return 0, &StorageError{Op: "find by user", Err: err}
	}

	// Embed any records missing vectors first
	for i := range memories {
		existing, _ := e.DB.GetVector(memories[i].ID)
		if existing != nil {
			continue
		}
		vec, err := e.Embedder.Embed(ctx, memories[i].Content)
		if err != nil {
			log.Printf("dedup sweep: embed %s: %v", memories[i].ID, err)
			continue
		}
		e.DB.SaveVector(memories[i].ID, userID, vec, e.Embedder.Model())
	}

	vectors, err := e.DB.VectorsByUser(userID)
	if err != nil {
		return 0, &StorageError{Op: "load vectors", Err: err}
	}
	vecMap := make(map[string][]float64, len(vectors))
	for _, v := range vectors {
		vecMap[v.MemoryID] = v.Embedding
	}

	byCategory := make(map[string][]store.Memory)
	for _, m := range memories {
		byCategory[m.Category] = append(byCategory[m.Category], m)
	}

	removed := 0
	for category, records := range byCategory {
		capability := e.Registry.Capability(category)
		if !capability.Dedup.Enabled || !capability.Dedup.Semantic {
			continue
		}
		limit := capability.Dedup.SimilarityThreshold
		if threshold > 0 {
			limit = threshold
		}

		// Track which records are already claimed by a cluster
		claimed := make(map[string]bool)

		for i := 0; i < len(records); i++ {
			if claimed[records[i].ID] {
				continue
			}
			vecI, ok := vecMap[records[i].ID]
			if !ok {
				continue
			}

			cluster := []int{i}
			for j := i + 1; j < len(records); j++ {
				if claimed[records[j].ID] {
					continue
				}
				vecJ, ok := vecMap[records[j].ID]
				if !ok {
					continue
				}
				if CosineSimilarity(vecI, vecJ) >= limit {
					cluster = append(cluster, j)
				}
			}

			if len(cluster) <= 1 {
				continue
			}

			// Keep the most recently updated record in the cluster
			bestIdx := cluster[0]
			for _, idx := range cluster[1:] {
				if records[idx].UpdatedAt > records[bestIdx].UpdatedAt {
					bestIdx = idx
				}
			}
			keeper, err := e.DB.GetMemory(records[bestIdx].ID)
			if err != nil || keeper == nil {
				log.Printf("dedup sweep: load keeper %s: %v", records[bestIdx].ID, err)
				continue
			}

			for _, idx := range cluster {
				claimed[records[idx].ID] = true
				if idx == bestIdx {
					continue
				}
				dup := records[idx]

				if capability.Dedup.Resolution == ResolveMerge {
					in := &incoming{
						content:  dup.Content,
						hash:     dup.ContentHash,
						tokens:   dup.TokenCount,
						metadata: dup.Metadata,
					}
					if _, err := resolveDuplicate(e.DB, keeper, in, capability.Dedup, &capability.Decay, 1.0, e.embedModel()); err != nil {
						log.Printf("dedup sweep: merge %s into %s: %v", dup.ID, keeper.ID, err)
						continue
					}
				}

				log.Printf("dedup sweep: removing %s (duplicate of %s in %s)", dup.ID, keeper.ID, category)
				if err := e.DB.DeleteMemory(dup.ID); err != nil {
					log.Printf("dedup sweep: delete %s: %v", dup.ID, err)
					continue
				}
				removed++
			}
		}
	}

	return removed, nil
}
