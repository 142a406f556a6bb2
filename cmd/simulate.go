package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/mindscale/internal/assessment"
	"github.com/abhisek/mindscale/internal/config"
	"github.com/abhisek/mindscale/internal/interview"
	"github.com/abhisek/mindscale/internal/llm"
	"github.com/abhisek/mindscale/internal/patient"
	"github.com/abhisek/mindscale/internal/scorer"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an automated interview against a simulated respondent",
	Long: `Run the full interview loop with a model-played respondent instead of a
live connection. Useful for exercising prompt files and scoring behavior
end to end.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("patient-id", "AI001", "Simulated respondent id (AI001-AI099)")
	simulateCmd.Flags().Int("rounds", 1, "Number of full interview rounds")
	simulateCmd.Flags().Int("max-turns", 100, "Turn limit per round")
	simulateCmd.Flags().Int("max-errors", 3, "Consecutive error cutoff")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	patientID, _ := cmd.Flags().GetString("patient-id")
	rounds, _ := cmd.Flags().GetInt("rounds")
	maxTurns, _ := cmd.Flags().GetInt("max-turns")
	maxErrors, _ := cmd.Flags().GetInt("max-errors")

	cat, err := loadCatalog(cfg.PromptFile, cfg.SortItems)
	if err != nil {
		return err
	}

	st, err := openStores(cmd, cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.close()

	ctx := cmd.Context()
	provider, err := llm.NewProviderFromEnv(ctx, st.events)
	if err != nil {
		return err
	}

	for round := 1; round <= rounds; round++ {
		fmt.Printf("=== 第 %d/%d 轮评估 ===\n", round, rounds)

		agent, err := patient.NewAgent(patientID, provider)
		if err != nil {
			return err
		}

		engine := assessment.New(cat, scorer.NewAdapter(provider, scorer.DefaultConfig()), st.progress, st.results, assessment.Options{
			SkipItemID:    cfg.SkipItemID,
			SkipThreshold: &cfg.SkipThreshold,
		})
		engine.SetRespondentInfo(map[string]any{
			"id":     fmt.Sprintf("%s_%d", agent.ID(), round),
			"name":   "测试患者",
			"age":    40,
			"gender": "男",
		})

		if err := runRound(ctx, interview.NewDriver(engine), agent, maxTurns, maxErrors); err != nil {
			return err
		}

		fmt.Printf("=== 第 %d 轮评估完成 ===\n", round)
		for id, score := range engine.Scores() {
			fmt.Printf("  %s: %d\n", id, score)
		}
	}
	return nil
}

func runRound(ctx context.Context, driver *interview.Driver, agent *patient.Agent, maxTurns, maxErrors int) error {
	out := driver.Start()
	consecutiveErrors := 0

	for turn := 0; turn < maxTurns; turn++ {
		if out.Kind == interview.KindComplete {
			return nil
		}
		fmt.Printf("医生: %s\n", out.Text)

		reply := agent.Respond(ctx, out.Text)
		fmt.Printf("病人: %s\n", reply)

		next, err := driver.HandleUtterance(ctx, reply)
		if err != nil {
			consecutiveErrors++
			fmt.Fprintf(os.Stderr, "轮次出错 (%d/%d): %v\n", consecutiveErrors, maxErrors, err)
			if consecutiveErrors >= maxErrors {
				return fmt.Errorf("aborting after %d consecutive errors: %w", consecutiveErrors, err)
			}
			continue // same question, retry with a fresh reply
		}
		consecutiveErrors = 0
		out = next
	}
	return fmt.Errorf("turn limit (%d) reached before completion", maxTurns)
}
