// Package main is the CLI entry point for Clara, the Morrison &
// Associates front-desk agent.
//
// main.go holds the root command; commands.go builds the subcommands
// and their flags; handlers.go implements them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build metadata, injected via -ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clara",
		Short: "Clara - Law firm front-desk agent",
		Long: `Clara answers for Morrison & Associates Law Firm: she greets
callers, answers questions about the firm, books consultations,
captures leads, and escalates urgent matters to the on-call attorney.

Practice areas: Family Law, Personal Injury, Criminal Defense, Estate Planning`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildSessionsCmd(),
	)

	return rootCmd
}
