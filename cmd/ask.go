package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manualqa/manualqa/internal/app"
	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
	"github.com/manualqa/manualqa/internal/rag"
)

// runAsk answers a single question from the command line and exits.
func runAsk(logger log.Logger) error {
	if len(os.Args) < 3 {
		return errors.New(`usage: manualqa ask "your question"`)
	}
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return errors.New("question must not be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, app.ErrIndexMissing) {
			fmt.Fprintln(os.Stderr, "No index found. Run `manualqa ingest` first.")
		}
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	answer, err := a.Engine.Answer(ctx, question)
	if err != nil {
		if errors.Is(err, rag.ErrInsufficientContext) {
			fmt.Println("The indexed documentation has nothing relevant to this question.")
			return nil
		}
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer.Text)
	fmt.Println()
	fmt.Println("Sources:")
	for i, s := range answer.Sources {
		if s.Page > 0 {
			fmt.Printf("  [%d] %s (page %d)\n", i+1, s.SourcePath, s.Page)
		} else {
			fmt.Printf("  [%d] %s\n", i+1, s.SourcePath)
		}
	}
	if answer.Truncated {
		fmt.Println()
		fmt.Println("Note: retrieved context was truncated to fit the prompt budget.")
	}
	return nil
}
