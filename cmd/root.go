package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/mindscale/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mindscale",
	Short: "LLM-driven structured clinical interview engine",
	Long:  "Mindscale administers multi-item structured clinical interviews (HAMD-style) through conversational turns, scoring each item from the dialogue and persisting resumable progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MINDSCALE_DB env var)")
	rootCmd.PersistentFlags().Bool("file-store", false, "Persist progress and results as JSON files instead of SQLite")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for the file store (overrides MINDSCALE_DATA_DIR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest
// priority), then MINDSCALE_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// stores bundles the persistence backends a command runs against.
type stores struct {
	progress store.ProgressRepo
	results  store.ResultRepo
	events   store.EventRepo
	close    func() error
}

// openStores opens the backend selected by the persistence flags:
// SQLite by default, JSON files under the data directory with
// --file-store.
func openStores(cmd *cobra.Command, dataDir string) (*stores, error) {
	if useFiles, _ := cmd.Flags().GetBool("file-store"); useFiles {
		if d, _ := cmd.Flags().GetString("data-dir"); d != "" {
			dataDir = d
		}
		fs, err := store.NewFileStore(dataDir)
		if err != nil {
			return nil, err
		}
		return &stores{
			progress: fs,
			results:  fs,
			events:   store.NopEventRepo{},
			close:    func() error { return nil },
		}, nil
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return &stores{
		progress: db,
		results:  db,
		events:   db,
		close:    db.Close,
	}, nil
}
