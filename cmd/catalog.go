package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mindscale/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <prompt-file>",
	Short: "Preview a prompt file's items and extracted questions (no database)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sortItems, _ := cmd.Flags().GetBool("sort")
		showTemplates, _ := cmd.Flags().GetBool("templates")

		cat, err := loadCatalog(args[0], sortItems)
		if err != nil {
			return err
		}

		fmt.Printf("%d items\n\n", cat.Len())
		for i, item := range cat.Items() {
			fmt.Printf("%2d. %-10s %s\n", i+1, item.ID, catalog.ExtractQuestion(item.Template))
			if showTemplates {
				fmt.Println(item.Template)
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().Bool("sort", false, "Order items by numeric id suffix instead of source order")
	catalogCmd.Flags().Bool("templates", false, "Print full instruction templates")
}
