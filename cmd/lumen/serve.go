package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lensworks/lumen/infrastructure/api"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		watch   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long: `Start the admin API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables

Environment variables:
  LUMEN_HOST                   Server host to bind to (default: 0.0.0.0)
  LUMEN_PORT                   Server port to listen on (default: 8088)
  LUMEN_DATA_DIR               Data directory (default: ~/.lumen)
  LUMEN_CACHE_PATH             Embedding cache path (default: {data_dir}/embeddings.db)
  LUMEN_LOG_LEVEL              Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LUMEN_LOG_FORMAT             Log format: pretty, json (default: pretty)
  LUMEN_DEBOUNCE_SECONDS       Quiet interval before events are processed (default: 2)
  LUMEN_SCAN_WORKERS           Parallelism for full scans (default: 4)
  LUMEN_NEAR_THRESHOLD         Hamming distance for near-duplicates (default: 5)

  LUMEN_STORE_*                Vector store configuration
    URL                        Base URL (default: http://localhost:6333)
    API_KEY                    API key for authentication
    COLLECTION                 Collection name (default: lumen)
    DIMENSION                  Embedding dimension (default: 512)
    BATCH_SIZE                 Records per bulk upsert (default: 64)

  LUMEN_EMBEDDING_*            Embedding model endpoint
    BASE_URL                   Base URL (e.g. https://api.openai.com/v1)
    MODEL                      Model identifier
    API_KEY                    API key for authentication

  LUMEN_CAPTION_*              Caption model endpoint (same fields; optional)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile, watch)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&watch, "watch", "", "Directory to start watching immediately")

	return cmd
}

func runServe(ctx context.Context, envFile, watch string) error {
	a, err := buildApp(ctx, envFile)
	if err != nil {
		return err
	}

	if watch != "" {
		if err := a.indexer.StartWatch(ctx, watch); err != nil {
			return fmt.Errorf("start watch: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Host(), a.cfg.Port())
	server := api.NewServer(addr, a.indexer, a.finder, a.store, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.indexer.StopWatch(); err != nil {
		a.logger.Warn("stop watch failed", "error", err.Error())
	}
	return server.Shutdown(shutdownCtx)
}
