package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/mindscale/internal/catalog"
	"github.com/abhisek/mindscale/internal/config"
	"github.com/abhisek/mindscale/internal/llm"
	"github.com/abhisek/mindscale/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cat, err := loadCatalog(cfg.PromptFile, cfg.SortItems)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "file", cfg.PromptFile, "items", cat.Len())

	st, err := openStores(cmd, cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProviderFromEnv(ctx, st.events)
	if err != nil {
		return err
	}
	logger.Info("provider ready", "model", provider.ModelID())

	srv := server.New(cfg, cat, provider, st.progress, st.results, logger)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadCatalog(path string, sortItems bool) (*catalog.Catalog, error) {
	var opts []catalog.LoadOption
	if sortItems {
		opts = append(opts, catalog.SortByNumericSuffix())
	}
	return catalog.Load(path, opts...)
}
