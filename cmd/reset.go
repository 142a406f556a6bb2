package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mindscale/internal/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset <respondent-id>",
	Short: "Delete a respondent's progress snapshot",
	Long: `Delete the progress snapshot for the given respondent id so their next
session starts from the first item. Final result records are never touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStores(cmd, cfg.DataDir)
		if err != nil {
			return err
		}
		defer st.close()

		respondentID := args[0]
		if err := st.progress.DeleteProgress(cmd.Context(), respondentID); err != nil {
			return fmt.Errorf("delete progress for %s: %w", respondentID, err)
		}
		fmt.Printf("Progress for %s deleted.\n", respondentID)
		return nil
	},
}
