package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsUser string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsUser, "user", "u", "", "scope to one user (default: all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	_, db, _, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(statsUser)
	if err != nil {
		return err
	}

	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
	return nil
}
