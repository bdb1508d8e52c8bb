package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/engramd/engram/internal/store"
)

// rankedCandidates builds a descending-similarity candidate list from
// (tokens, similarity) pairs. Similarities must already be non-increasing.
func rankedCandidates(t *testing.T, pairs ...[2]float64) []Candidate {
	t.Helper()
	candidates := make([]Candidate, len(pairs))
	for i, p := range pairs {
		if i > 0 && p[1] > pairs[i-1][1] {
			t.Fatalf("candidate %d similarity %v out of order", i, p[1])
		}
		candidates[i] = Candidate{
			Memory:     store.Memory{ID: fmt.Sprintf("mem-%03d", i), TokenCount: int(p[0])},
			Similarity: p[1],
		}
	}
	return candidates
}

func TestSelectBoundedMaxCountAllStrategies(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{10, 0.9}, [2]float64{10, 0.8}, [2]float64{10, 0.7},
		[2]float64{10, 0.6}, [2]float64{10, 0.5},
	)

	// MaxCount is a hard ceiling no strategy relaxes.
	for _, strategy := range []LimitStrategy{LimitAll, LimitAny, LimitGreedy, LimitFirstMet} {
		records, meta, err := SelectBounded(candidates, QueryLimit{MaxCount: 3, Strategy: strategy})
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if len(records) != 3 {
			t.Errorf("%s: returned %d records, want 3", strategy, len(records))
		}
		if meta.LimitReason != ReasonMaxCount {
			t.Errorf("%s: limit reason = %q, want %q", strategy, meta.LimitReason, ReasonMaxCount)
		}
		if records[0].ID != "mem-000" || records[2].ID != "mem-002" {
			t.Errorf("%s: admitted wrong records: %v", strategy, records)
		}
	}
}

func TestSelectBoundedGreedySkipsOverflow(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{50, 0.9},
		[2]float64{60, 0.8}, // would overflow, skipped
		[2]float64{40, 0.7},
	)

	records, meta, err := SelectBounded(candidates, QueryLimit{MaxTokens: 100, Strategy: LimitGreedy})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("returned %d records, want 2", len(records))
	}
	if records[0].ID != "mem-000" || records[1].ID != "mem-002" {
		t.Errorf("greedy admitted %s, %s; want mem-000, mem-002", records[0].ID, records[1].ID)
	}
	if meta.TotalTokens != 90 {
		t.Errorf("total tokens = %d, want 90", meta.TotalTokens)
	}
	if meta.LimitReason != ReasonExhausted {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonExhausted)
	}
}

func TestSelectBoundedAnyStopsOnTokenOverflow(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{50, 0.9},
		[2]float64{60, 0.8},
		[2]float64{40, 0.7},
	)

	records, meta, err := SelectBounded(candidates, QueryLimit{MaxTokens: 100, Strategy: LimitAny})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("returned %d records, want 1", len(records))
	}
	if meta.LimitReason != ReasonMaxTokens {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonMaxTokens)
	}
}

func TestSelectBoundedAllSimilarityFloorStops(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{10, 0.9}, [2]float64{10, 0.75},
		[2]float64{10, 0.55}, // below floor: ends the scan, sorted input
		[2]float64{10, 0.4},
	)

	records, meta, err := SelectBounded(candidates, QueryLimit{MinSimilarity: 0.6, Strategy: LimitAll})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("returned %d records, want 2", len(records))
	}
	if meta.LimitReason != ReasonMinSimilarity {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonMinSimilarity)
	}
	wantAvg := (0.9 + 0.75) / 2
	if diff := meta.AvgSimilarity - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg similarity = %v, want %v", meta.AvgSimilarity, wantAvg)
	}
}

func TestSelectBoundedGreedySkipsBelowFloor(t *testing.T) {
	// GREEDY treats the similarity floor as a filter, not a terminator.
	// With a sorted input nothing later qualifies, so the result matches
	// ALL; the scan just runs to the end.
	candidates := rankedCandidates(t,
		[2]float64{10, 0.9}, [2]float64{10, 0.5}, [2]float64{10, 0.3},
	)

	records, meta, err := SelectBounded(candidates, QueryLimit{MinSimilarity: 0.6, Strategy: LimitGreedy})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("returned %d records, want 1", len(records))
	}
	if meta.LimitReason != ReasonExhausted {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonExhausted)
	}
}

func TestSelectBoundedFirstMet(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{30, 0.9}, [2]float64{30, 0.8}, [2]float64{30, 0.7},
	)

	// Token budget fires first.
	records, meta, err := SelectBounded(candidates, QueryLimit{
		MaxCount: 10, MaxTokens: 50, MinSimilarity: 0.1, Strategy: LimitFirstMet,
	})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 1 || meta.LimitReason != ReasonMaxTokens {
		t.Errorf("returned %d / %q, want 1 / %q", len(records), meta.LimitReason, ReasonMaxTokens)
	}

	// Similarity floor fires first.
	records, meta, err = SelectBounded(candidates, QueryLimit{
		MaxCount: 10, MaxTokens: 500, MinSimilarity: 0.85, Strategy: LimitFirstMet,
	})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 1 || meta.LimitReason != ReasonMinSimilarity {
		t.Errorf("returned %d / %q, want 1 / %q", len(records), meta.LimitReason, ReasonMinSimilarity)
	}
}

func TestSelectBoundedExactBudgetConsumption(t *testing.T) {
	// 19 admitted records totalling 499 tokens, a 16-token candidate that
	// would overflow, then a 1-token candidate that lands the total exactly
	// on the budget while also reaching the count ceiling. The terminal
	// reason is the token budget: it is the limit that admitted nothing
	// further, not the count that happened to coincide.
	var pairs [][2]float64
	sim := 0.99
	for i := 0; i < 18; i++ {
		pairs = append(pairs, [2]float64{26, sim})
		sim -= 0.01
	}
	pairs = append(pairs, [2]float64{31, sim})  // 19th: total 499
	pairs = append(pairs, [2]float64{16, 0.5})  // skipped: 515 > 500
	pairs = append(pairs, [2]float64{1, 0.4})   // admitted: exactly 500

	records, meta, err := SelectBounded(rankedCandidates(t, pairs...), QueryLimit{
		MaxCount:  20,
		MaxTokens: 500,
		Strategy:  LimitGreedy,
	})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 20 {
		t.Fatalf("returned %d records, want 20", len(records))
	}
	if meta.TotalTokens != 500 {
		t.Errorf("total tokens = %d, want 500", meta.TotalTokens)
	}
	if meta.LimitReason != ReasonMaxTokens {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonMaxTokens)
	}
	if records[19].ID != "mem-020" {
		t.Errorf("final admitted record = %s, want mem-020", records[19].ID)
	}
}

func TestSelectBoundedNoLimitsExhausts(t *testing.T) {
	candidates := rankedCandidates(t,
		[2]float64{10, 0.9}, [2]float64{10, 0.8},
	)

	records, meta, err := SelectBounded(candidates, QueryLimit{})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("returned %d records, want all 2", len(records))
	}
	if meta.LimitReason != ReasonExhausted {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonExhausted)
	}
	if meta.TotalFound != 2 || meta.Returned != 2 {
		t.Errorf("meta counts = %d/%d, want 2/2", meta.TotalFound, meta.Returned)
	}
}

func TestSelectBoundedEmptyInput(t *testing.T) {
	records, meta, err := SelectBounded(nil, QueryLimit{MaxCount: 5})
	if err != nil {
		t.Fatalf("SelectBounded: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("returned %d records, want 0", len(records))
	}
	if meta.LimitReason != ReasonExhausted {
		t.Errorf("limit reason = %q, want %q", meta.LimitReason, ReasonExhausted)
	}
	if meta.AvgSimilarity != 0 {
		t.Errorf("avg similarity = %v, want 0", meta.AvgSimilarity)
	}
}

func TestSelectBoundedInvalidLimits(t *testing.T) {
	invalid := []QueryLimit{
		{MaxCount: -1},
		{MaxTokens: -5},
		{MinSimilarity: -0.1},
		{MinSimilarity: 1.1},
		{Strategy: "SOMETIMES"},
	}
	for _, limit := range invalid {
		_, _, err := SelectBounded(nil, limit)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("limit %+v: error = %v, want ValidationError", limit, err)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"User prefers dark roast coffee over light roast", 11},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.content); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}
