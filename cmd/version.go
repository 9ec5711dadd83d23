package cmd

import (
	"fmt"
	"os"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion displays version and environment information.
func runVersion() {
	fmt.Printf("manualqa %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	// Report credential presence without printing full keys.
	for _, key := range []string{"MISTRAL_API_KEY", "GEMINI_API_KEY"} {
		v := os.Getenv(key)
		switch {
		case v == "":
			fmt.Printf("  %s: Not set\n", key)
		case len(v) < 8:
			fmt.Printf("  %s: (configured)\n", key)
		default:
			fmt.Printf("  %s: %s...%s (configured)\n", key, v[:4], v[len(v)-4:])
		}
	}
}
