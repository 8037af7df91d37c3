package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/config"
	"github.com/meikuraledutech/hookgraph/internal/logging"
	"github.com/meikuraledutech/hookgraph/memory"
	"github.com/meikuraledutech/hookgraph/metrics"
	"github.com/meikuraledutech/hookgraph/postgres"
	"github.com/meikuraledutech/hookgraph/redis"
	"github.com/meikuraledutech/hookgraph/server"
	"github.com/meikuraledutech/hookgraph/sqlite"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the graph backend",
	Long: `Starts the REST backend: graph storage, compile, pause/resume and usage.
The store is chosen by database.driver (memory, postgres, sqlite); usage is
kept in Redis when redis.addr is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Server.Listen = listen
		}
		return runServe(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides server.listen)")
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	logger := logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Server.LogLevel), cfg.Server.LogJSON)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := loadRegistry(cmd, cfg)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	meter, closeMeter := openMeter(cfg)
	defer closeMeter()

	m := metrics.New()
	svc := server.NewService(store, meter,
		server.WithServiceLogger(logger),
		server.WithRegistry(reg),
	)
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMiddleware(m.Middleware()),
		server.WithMetricsHandler(m.Handler()),
	}
	if cfg.Server.Token != "" {
		opts = append(opts, server.WithToken(cfg.Server.Token))
	}
	app := server.New(svc, opts...)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("hookgraph backend listening", "addr", cfg.Server.Listen, "driver", cfg.Database.Driver)
		serverErrors <- app.Listen(cfg.Server.Listen, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "error", err)
		}
		return nil
	}
}

func openStore(ctx context.Context, cfg *config.Config) (hookgraph.Store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

func openMeter(cfg *config.Config) (server.Meter, func()) {
	if cfg.Redis.Addr == "" {
		return memory.NewMeter(cfg.Usage.Limit), func() {}
	}
	m := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		redis.WithPrefix(cfg.Redis.Prefix),
		redis.WithLimit(cfg.Usage.Limit),
		redis.WithWindow(cfg.Usage.Window),
	)
	return m, func() {
		if err := m.Close(); err != nil {
			slog.Default().Warn("close redis", "error", err)
		}
	}
}
