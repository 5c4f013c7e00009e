package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the HTTP
// gateway. This is the primary command for running Clara in production.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Clara HTTP gateway",
		Long: `Start the HTTP gateway that answers chat, telephony, and voice
webhook traffic.

The server will:
1. Load configuration from the specified file (defaults apply without one)
2. Open the session store (memory or sqlite)
3. Initialize the reasoning provider (Anthropic or OpenAI)
4. Register the front-desk tools and knowledge retriever
5. Serve /chat, /chat/completions, /voice, /healthz, and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with defaults (in-memory sessions, ANTHROPIC_API_KEY from env)
  clara serve

  # Start with custom config
  clara serve --config /etc/clara/production.yaml

  # Start with debug logging
  clara serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

// buildChatCmd creates the "chat" command: an interactive terminal
// session with Clara, streaming replies as they arrive.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Clara in the terminal",
		Long: `Start an interactive terminal conversation with Clara.

Type a message and press enter; Clara's reply streams as it is
generated. Type "help" for suggestions and "quit" to end the session.`,
		Example: `  # Chat with defaults
  clara chat

  # Resume an existing session
  clara chat --session 4f1c2a9b`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath, debug, sessionID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "",
		"Session ID to resume (new session when empty)")

	return cmd
}

// buildSessionsCmd creates the "sessions" command group.
func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversation sessions",
	}
	cmd.AddCommand(buildSessionsListCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd.Context(), configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20,
		"Maximum sessions to show")

	return cmd
}
