// Package cmd provides CLI commands for manualqa.
//
// Commands:
//   - ingest: Build or update the vector index from a documents directory
//   - serve: HTTP API server for question answering
//   - ask: One-shot question answering from the terminal
//
// Signal handling and graceful shutdown are implemented for all commands via
// context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/manualqa/manualqa/internal/log"
)

// Execute is the main entry point for the manualqa CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("MANUALQA_LOG_JSON") != "",
	})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ingest":
		return runIngest(logger)
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("manualqa - Question answering over your product documentation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manualqa ingest [-dir DIR] [-mode replace|append]")
	fmt.Println("                        Build the vector index from documents")
	fmt.Println("  manualqa serve [addr] Start HTTP API server (default: 127.0.0.1:8000)")
	fmt.Println("  manualqa ask \"...\"    Answer one question and exit")
	fmt.Println("  manualqa --version    Show version information")
	fmt.Println("  manualqa --help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  MISTRAL_API_KEY       Required for the mistral provider (default)")
	fmt.Println("  GEMINI_API_KEY        Required for the gemini provider")
	fmt.Println("  MANUALQA_PROVIDER     Optional: mistral, gemini, or ollama")
	fmt.Println("  MANUALQA_DATA_DIR     Optional: documents directory (default: data)")
	fmt.Println("  MANUALQA_INDEX_PATH   Optional: index location (default: models/index.db)")
	fmt.Println("  DEBUG                 Optional: Enable debug logging")
}
