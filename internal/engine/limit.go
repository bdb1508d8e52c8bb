package engine

import (
	"time"

	"github.com/engramd/engram/internal/store"
)

// LimitStrategy controls how SelectBounded treats its limits.
type LimitStrategy string

const (
	// LimitAll enforces every limit strictly: a candidate below the
	// similarity floor ends selection, one that overflows the token budget
	// is skipped.
	LimitAll LimitStrategy = "ALL"
	// LimitAny stops at the first limit reached.
	LimitAny LimitStrategy = "ANY"
	// LimitGreedy packs as densely as possible without exceeding caps,
	// skipping candidates that would overflow and continuing the scan.
	LimitGreedy LimitStrategy = "GREEDY"
	// LimitFirstMet stops the instant any single condition first fires.
	LimitFirstMet LimitStrategy = "FIRST_MET"
)

// QueryLimit is a multi-dimensional bound on a result set. Zero values mean
// "not set"; negative values are rejected as invalid.
type QueryLimit struct {
	MaxCount      int           `json:"max_count"`
	MaxTokens     int           `json:"max_tokens"`
	MinSimilarity float64       `json:"min_similarity"`
	Strategy      LimitStrategy `json:"strategy"`
}

func (l QueryLimit) strategy() LimitStrategy {
	if l.Strategy == "" {
		return LimitAll
	}
	return l.Strategy
}

func (l QueryLimit) validate() error {
	if l.MaxCount < 0 {
		return &ValidationError{Field: "max_count", Reason: "must be positive when set"}
	}
	if l.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Reason: "must be positive when set"}
	}
	if l.MinSimilarity < 0 || l.MinSimilarity > 1 {
		return &ValidationError{Field: "min_similarity", Reason: "must be within [0,1]"}
	}
	switch l.strategy() {
	case LimitAll, LimitAny, LimitGreedy, LimitFirstMet:
		return nil
	}
	return &ValidationError{Field: "strategy", Reason: "unknown limit strategy"}
}

// Candidate pairs a memory with its similarity score. SelectBounded expects
// candidates pre-sorted by descending similarity and never re-sorts.
type Candidate struct {
	Memory     store.Memory
	Similarity float64
}

// Reasons reported in ResultMeta.LimitReason.
const (
	ReasonMaxCount      = "maxCount"
	ReasonMaxTokens     = "maxTokens"
	ReasonMinSimilarity = "minSimilarity"
	ReasonExhausted     = "exhausted"
)

// ResultMeta explains how a bounded selection ended.
type ResultMeta struct {
	TotalFound    int           `json:"total_found"`
	Returned      int           `json:"returned"`
	TotalTokens   int           `json:"total_tokens"`
	AvgSimilarity float64       `json:"avg_similarity"`
	LimitReason   string        `json:"limit_reason"`
	Elapsed       time.Duration `json:"elapsed"`
}

// SelectBounded runs a single left-to-right pass over a similarity-ranked
// candidate list, admitting records until a limit ends selection. A record's
// content is never partially included: a candidate that would overflow the
// token budget is either skipped (ALL, GREEDY) or ends the scan (ANY,
// FIRST_MET). MaxCount is a hard ceiling under every strategy.
func SelectBounded(candidates []Candidate, limit QueryLimit) ([]store.Memory, ResultMeta, error) {
	start := time.Now()
	if err := limit.validate(); err != nil {
		return nil, ResultMeta{}, err
	}

	strategy := limit.strategy()
	meta := ResultMeta{TotalFound: len(candidates)}

	var admitted []store.Memory
	var simSum float64
	reason := ""

scan:
	for _, c := range candidates {
		// Similarity gate. The input is sorted, so under ALL nothing after
		// the first miss can qualify either.
		if limit.MinSimilarity > 0 && c.Similarity < limit.MinSimilarity {
			switch strategy {
			case LimitAll, LimitFirstMet:
				reason = ReasonMinSimilarity
				break scan
			default:
				continue
			}
		}

		// Token gate: skipping keeps scanning for a smaller record that
		// still fits; stopping treats the budget as a terminal limit.
		if limit.MaxTokens > 0 && meta.TotalTokens+c.Memory.TokenCount > limit.MaxTokens {
			switch strategy {
			case LimitAny, LimitFirstMet:
				reason = ReasonMaxTokens
				break scan
			default:
				continue
			}
		}

		admitted = append(admitted, c.Memory)
		simSum += c.Similarity
		meta.TotalTokens += c.Memory.TokenCount

		if limit.MaxTokens > 0 && meta.TotalTokens == limit.MaxTokens {
			// Budget fully consumed; every record costs at least one token,
			// so nothing further can fit under any strategy.
			reason = ReasonMaxTokens
			break
		}
		if limit.MaxCount > 0 && len(admitted) >= limit.MaxCount {
			reason = ReasonMaxCount
			break
		}
	}

	if reason == "" {
		reason = ReasonExhausted
	}

	meta.Returned = len(admitted)
	if meta.Returned > 0 {
		meta.AvgSimilarity = simSum / float64(meta.Returned)
	}
	meta.LimitReason = reason
	meta.Elapsed = time.Since(start)
	return admitted, meta, nil
}

// EstimateTokens approximates the token cost of content for length budgeting.
// Rough heuristic: 1 token per 4 characters, minimum 1.
func EstimateTokens(content string) int {
	t := len(content) / 4
	if t < 1 {
		t = 1
	}
	return t
}
