package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dedupUser      string
	dedupThreshold float64
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Collapse near-duplicate stored memories",
	RunE:  runDedup,
}

func init() {
	dedupCmd.Flags().StringVarP(&dedupUser, "user", "u", "default", "owning user key")
	dedupCmd.Flags().Float64VarP(&dedupThreshold, "threshold", "t", 0, "similarity threshold override (0 = per-category config)")
}

func runDedup(cmd *cobra.Command, args []string) error {
	eng, db, _, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := eng.DedupSweep(cmd.Context(), dedupUser, dedupThreshold)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d duplicate memories\n", removed)
	return nil
}
