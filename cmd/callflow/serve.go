package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/callflow/internal/agent"
	"github.com/haasonsaas/callflow/internal/config"
	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/orchestrator"
	"github.com/haasonsaas/callflow/internal/records"
	"github.com/haasonsaas/callflow/internal/server"
	"github.com/haasonsaas/callflow/internal/telephony"
)

// buildServeCmd creates the "serve" command that runs the call service.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the callflow webhook server",
		Long: `Start the callflow server: the telephony webhook endpoint, the
outbound call API, health, and metrics.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  callflow serve

  # Start with custom config and debug logging
  callflow serve --config /etc/callflow/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "callflow.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()

	recs, err := records.OpenSQLite(cfg.Records.Path)
	if err != nil {
		return err
	}
	defer recs.Close()

	ag, err := buildAgent(cfg.Agent)
	if err != nil {
		return err
	}

	provider, err := telephony.NewRESTProvider(telephony.RESTConfig{
		BaseURL:       cfg.Telephony.BaseURL,
		Token:         cfg.Telephony.Token,
		CallbackURL:   cfg.Telephony.CallbackURL,
		Voice:         cfg.Telephony.Voice,
		FallbackVoice: cfg.Telephony.FallbackVoice,
		Language:      cfg.Telephony.Language,
		Logger:        logger.Slog(),
	})
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Provider:      provider,
		Agent:         ag,
		Records:       recs,
		Logger:        logger,
		Metrics:       metrics,
		CallerID:      cfg.Telephony.CallerID,
		Language:      cfg.Telephony.Language,
		SessionTTL:    cfg.Session.TTL,
		GreetingDelay: cfg.Session.GreetingDelay,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, orch, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, "callflow starting",
		"addr", cfg.Server.Addr(),
		"agent", cfg.Agent.Provider,
	)
	return srv.Start(ctx)
}

func buildAgent(cfg config.AgentConfig) (agent.Agent, error) {
	switch cfg.Provider {
	case "anthropic":
		return agent.NewAnthropicAgent(agent.AnthropicConfig{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
		})
	case "openai":
		return agent.NewOpenAIAgent(agent.OpenAIConfig{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
		})
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}
}
