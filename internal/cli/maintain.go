package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	maintainUser     string
	maintainCategory string
	maintainUsed     []string
	maintainActive   bool
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run a decay lifecycle pass",
	Long:  "Applies each category's decay strategy to a user's memories and removes records that have decayed to their floor.",
	RunE:  runMaintain,
}

func init() {
	maintainCmd.Flags().StringVarP(&maintainUser, "user", "u", "default", "owning user key")
	maintainCmd.Flags().StringVarP(&maintainCategory, "category", "c", "", "limit to one category")
	maintainCmd.Flags().StringArrayVar(&maintainUsed, "used", nil, "memory id used this session (repeatable)")
	maintainCmd.Flags().BoolVar(&maintainActive, "active", false, "treat this pass as an active session")
}

func runMaintain(cmd *cobra.Command, args []string) error {
	eng, db, _, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	used := make(map[string]bool, len(maintainUsed))
	for _, id := range maintainUsed {
		used[id] = true
	}

	result, err := eng.ApplyLifecycle(maintainUser, maintainCategory, used, maintainActive)
	if err != nil {
		return err
	}

	fmt.Printf("decay applied to %d memories, %d deleted\n", result.DecayApplied, result.MemoriesDeleted)
	return nil
}
