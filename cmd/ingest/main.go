package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"qa-orchestrator/internal/adapter/repository"
	"qa-orchestrator/internal/di"
	"qa-orchestrator/internal/infra"
	"qa-orchestrator/internal/infra/config"
	"qa-orchestrator/internal/infra/logger"
	"qa-orchestrator/internal/usecase"
)

func main() {
	var (
		docsDir    string
		pattern    string
		sourceBase string
	)

	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index markdown documentation into the document store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), docsDir, pattern, sourceBase)
		},
	}
	rootCmd.Flags().StringVar(&docsDir, "dir", "./docs", "directory containing markdown documentation")
	rootCmd.Flags().StringVar(&pattern, "glob", "*.md", "filename pattern to ingest")
	rootCmd.Flags().StringVar(&sourceBase, "source-base", "https://render.com/docs", "base URL recorded as the source of each document")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, docsDir, pattern, sourceBase string) error {
	cfg := config.Load()
	log := logger.New()
	slog.SetDefault(log)

	dbPool, err := infra.NewPostgresDB(ctx, cfg.DB.DSN(), infra.PoolConfig{
		MaxConns: int(cfg.DB.MaxConns),
		MinConns: int(cfg.DB.MinConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer dbPool.Close()

	if err := repository.EnsureSchema(ctx, dbPool); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	components, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}

	inputs, err := loadDocuments(docsDir, pattern, sourceBase)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no documents matching %q under %s", pattern, docsDir)
	}
	log.Info("starting ingestion", "documents", len(inputs), "dir", docsDir)

	summary, err := components.Ingestor.IngestAll(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d documents (%d chunks, %d tokens, $%.4f)\n",
		summary.Documents, summary.Chunks, summary.Tokens, summary.CostUSD)
	return nil
}

// loadDocuments reads every matching markdown file under dir. The title
// comes from the first heading when present, the filename otherwise, and
// the source URL is derived from the filename.
func loadDocuments(dir, pattern, sourceBase string) ([]usecase.IngestInput, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	inputs := make([]usecase.IngestInput, 0, len(paths))
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		slug := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		inputs = append(inputs, usecase.IngestInput{
			Title:  documentTitle(string(body), slug),
			Source: strings.TrimSuffix(sourceBase, "/") + "/" + slug,
			Body:   string(body),
		})
	}
	return inputs, nil
}

func documentTitle(body, fallback string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return fallback
}
