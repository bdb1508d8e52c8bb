package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramd/engram/internal/engine"
)

var (
	searchUser     string
	searchCategory string
	searchCount    int
	searchTokens   int
	searchMinSim   float64
	searchStrategy string
	searchWindow   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories within a bounded result budget",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchUser, "user", "u", "default", "owning user key")
	searchCmd.Flags().StringVarP(&searchCategory, "category", "c", "", "filter by category")
	searchCmd.Flags().IntVarP(&searchCount, "limit", "l", 10, "max results")
	searchCmd.Flags().IntVar(&searchTokens, "max-tokens", 0, "max total tokens (0 = unlimited)")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0, "similarity floor (0 = none)")
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "GREEDY", "limit strategy: ALL, ANY, GREEDY, FIRST_MET")
	searchCmd.Flags().IntVar(&searchWindow, "window", engine.DefaultSearchWindow, "candidate fetch window")
}

func runSearch(cmd *cobra.Command, args []string) error {
	eng, db, _, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	limit := engine.QueryLimit{
		MaxCount:      searchCount,
		MaxTokens:     searchTokens,
		MinSimilarity: searchMinSim,
		Strategy:      engine.LimitStrategy(searchStrategy),
	}

	records, meta, err := eng.Search(cmd.Context(), searchUser, strings.Join(args, " "), searchCategory, limit, searchWindow)
	if err != nil {
		return err
	}

	for _, m := range records {
		content := m.Content
		if len(content) > 100 {
			content = content[:100] + "…"
		}
		fmt.Printf("%s  [%s] decay=%d tokens=%d  %s  (%s)\n",
			m.ID, m.Category, m.Decay, m.TokenCount, content, formatAge(m.CreatedAt))
	}
	fmt.Printf("\n%d/%d returned, %d tokens, avg similarity %.3f, stopped by %s in %s\n",
		meta.Returned, meta.TotalFound, meta.TotalTokens, meta.AvgSimilarity, meta.LimitReason, meta.Elapsed)
	return nil
}
