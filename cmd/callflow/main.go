// Package main provides the CLI entry point for the callflow outbound call
// service.
//
// Callflow places automated appointment calls to patients and conducts the
// conversation through a telephony provider's webhook callbacks and a
// conversational LLM agent.
//
// # Basic Usage
//
// Start the server:
//
//	callflow serve --config callflow.yaml
//
// Place an outbound call through a running server:
//
//	callflow call +15551234567
//
// # Environment Variables
//
// Secrets referenced as ${VAR} in the config file are expanded at load time:
//
//   - CALLFLOW_TELEPHONY_TOKEN: call automation access token
//   - OPENAI_API_KEY / ANTHROPIC_API_KEY: agent provider key
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callflow",
		Short: "Callflow - automated outbound patient calls",
		Long: `Callflow places automated appointment calls and conducts the
conversation turn by turn: telephony webhook events drive the state machine,
and a conversational LLM agent generates the replies.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildCallCmd(),
	)
	return rootCmd
}
