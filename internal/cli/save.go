package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramd/engram/internal/engine"
)

var (
	saveUser       string
	saveCategory   string
	saveImportance float64
	saveMeta       []string
)

var saveCmd = &cobra.Command{
	Use:   "save [content]",
	Short: "Save a memory (with duplicate detection)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSave,
}

func init() {
	saveCmd.Flags().StringVarP(&saveUser, "user", "u", "default", "owning user key")
	saveCmd.Flags().StringVarP(&saveCategory, "category", "c", "fact", "memory category")
	saveCmd.Flags().Float64VarP(&saveImportance, "importance", "i", 0.5, "importance in [0,1]")
	saveCmd.Flags().StringArrayVarP(&saveMeta, "meta", "m", nil, "metadata key=value (repeatable)")
}

func runSave(cmd *cobra.Command, args []string) error {
	eng, db, _, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	metadata := make(map[string]string, len(saveMeta))
	for _, kv := range saveMeta {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --meta %q, want key=value", kv)
		}
		metadata[k] = v
	}

	m, err := eng.Save(cmd.Context(), engine.SaveRequest{
		UserID:     saveUser,
		Content:    strings.Join(args, " "),
		Category:   saveCategory,
		Metadata:   metadata,
		Importance: &saveImportance,
	})
	if err != nil {
		return err
	}

	b, _ := json.MarshalIndent(m, "", "  ")
	fmt.Println(string(b))
	return nil
}
