package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manualqa/manualqa/internal/app"
	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/log"
)

// runIngest builds the vector index from a documents directory.
func runIngest(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ingestFlags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestFlags.SetOutput(os.Stderr)
	dir := ingestFlags.String("dir", cfg.DataDir, "Documents directory")
	modeName := ingestFlags.String("mode", string(index.ModeReplace), "Ingestion mode: replace or append")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := ingestFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ingest flags: %w", err)
	}

	mode, err := index.ParseMode(*modeName)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.SetupIngest(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing ingestion: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Pipeline.Run(ctx, *dir, mode)
	if err != nil {
		return fmt.Errorf("ingesting %q: %w", *dir, err)
	}

	fmt.Printf("Indexed %d chunks from %d documents in %s (%s mode)\n",
		stats.Chunks, stats.Documents, stats.Duration.Round(time.Millisecond), mode)
	fmt.Printf("Index: %s\n", cfg.IndexPath)
	return nil
}
