package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/voxtask/internal/agent"
	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/gateway"
	"github.com/nextlevelbuilder/voxtask/internal/observability"
	"github.com/nextlevelbuilder/voxtask/internal/providers"
	"github.com/nextlevelbuilder/voxtask/internal/store"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
	"github.com/nextlevelbuilder/voxtask/internal/tools"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the voice session gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfg := loadConfigOrExit()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TraceConfig{
		ServiceName:    "voxtask",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		slog.Info("trace export enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	db, err := sqlite.Open(config.ExpandHome(cfg.Database.Path))
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	stores := sqlite.NewStores(db)

	provider, err := providers.FromConfig(cfg)
	if err != nil {
		slog.Error("failed to configure LLM provider", "error", err)
		os.Exit(1)
	}
	slog.Info("llm provider ready", "provider", provider.Name(), "model", provider.DefaultModel())

	registry, err := buildRegistry(stores)
	if err != nil {
		slog.Error("failed to build tool registry", "error", err)
		os.Exit(1)
	}

	loop := agent.NewLoop(provider, registry, stores, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		HistoryLimit:  cfg.Agent.HistoryLimit,
		MaxTokens:     cfg.Agent.MaxTokens,
		Timeout:       time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
	}, providers.OverridesFromConfig(cfg))

	server := gateway.NewServer(cfg, loop)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func buildRegistry(stores *store.Stores) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if err := tools.NewTaskTools(stores.Tasks).Register(registry); err != nil {
		return nil, err
	}
	if err := tools.RegisterViewTools(registry); err != nil {
		return nil, err
	}
	if err := tools.RegisterHistoryTools(registry, stores.History); err != nil {
		return nil, err
	}
	return registry, nil
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func loadConfigOrExit() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}
