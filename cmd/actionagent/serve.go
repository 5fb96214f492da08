package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/itsneelabh/actionagent"
	"github.com/itsneelabh/actionagent/agent"
	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/connector"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/resilience"
	"github.com/itsneelabh/actionagent/server"
	"github.com/itsneelabh/actionagent/telemetry"

	// AI providers register themselves on import
	_ "github.com/itsneelabh/actionagent/ai/providers/mock"
	_ "github.com/itsneelabh/actionagent/ai/providers/openai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the action agent HTTP API: connection checks, connect-app and run-agent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var extra []core.Option
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetInt("port")
			extra = append(extra, core.WithPort(port))
		}

		cfg, err := loadConfig(cmd, extra...)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides PORT)")
}

func serve(ctx context.Context, cfg *core.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := core.NewProductionLogger(cfg.Logging, cfg.Name)

	tracing, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Name, actionagent.Version, os.Stdout, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.Telemetry.MetricsEnabled {
		metrics = telemetry.NewMetrics("actionagent")
	}

	var breaker core.CircuitBreaker
	if cfg.Resilience.CircuitBreaker.Enabled {
		cb, err := resilience.NewCircuitBreaker(core.CircuitBreakerParams{
			Name:          "connector",
			Config:        cfg.Resilience.CircuitBreaker,
			Logger:        logger,
			OnStateChange: metrics.SetBreakerState,
		})
		if err != nil {
			return fmt.Errorf("circuit breaker: %w", err)
		}
		breaker = cb
	}

	connClient, err := connector.NewClient(connector.ConfigFromCore(cfg.Connector, breaker, logger, metrics))
	if err != nil {
		return err
	}

	aiClient, err := ai.NewClient(ai.ConfigFromCore(cfg.AI, cfg.Development, logger, metrics))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithHealthCheck("connector", connClient.Ping),
	}

	var schemaCache core.SchemaCache
	if cfg.Redis.SchemaCache {
		rdb, err := core.NewRedisClient(ctx, cfg.Redis.URL, logger)
		if err != nil {
			// The cache is an optimisation; run without it
			logger.Warn("Schema cache disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() { _ = rdb.Close() }()
			schemaCache = core.NewSchemaCache(rdb,
				core.WithTTL(cfg.Redis.SchemaCacheTTL),
				core.WithPrefix(cfg.Redis.Prefix),
			)
			opts = append(opts, server.WithHealthCheck("redis", redisCheck(rdb)))
		}
	}

	runner, err := agent.NewRunner(agent.Options{
		Connector:   connClient,
		AI:          aiClient,
		SchemaCache: schemaCache,
		Pipeline:    cfg.Pipeline,
		AIConfig:    cfg.AI,
		PublicURL:   cfg.PublicURL,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, runner, runner.Connections(), opts...)
	if err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received", nil)
		if err := srv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		return nil
	}
}

func redisCheck(rdb *redis.Client) server.HealthCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
