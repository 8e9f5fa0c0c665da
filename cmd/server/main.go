// Package main runs the strategy lab server: the simulation and
// optimization HTTP API with WebSocket progress streams, Prometheus metrics
// and health checks in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"defi-strategy-lab/internal/cache"
	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/logging"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/server"
	"defi-strategy-lab/internal/storage"
	chstore "defi-strategy-lab/internal/storage/clickhouse"
	"defi-strategy-lab/internal/storage/memory"
	"defi-strategy-lab/internal/storage/migrations"
	pgstore "defi-strategy-lab/internal/storage/postgres"
)

// stores groups the persistence backends behind their interfaces. Strategies
// and runs live in PostgreSQL, price and volume history in ClickHouse; the
// memory backend replaces all four for local use.
type stores struct {
	prices     storage.PriceHistoryStore
	volumes    storage.VolumeHistoryStore
	strategies storage.StrategyStore
	runs       storage.OptimizationStore
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of other settings")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *addr, *postgresDSN, *clickhouseDSN, *useMemory, *logLevel)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Storage.Backend == "database" && (cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "") {
		logger.Fatal().Msg("database storage needs both -postgres-dsn and -clickhouse-dsn (or -use-memory)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	evalCache, err := createCache(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create cache")
	}

	oracle := pricing.NewStoreOracle(st.prices, st.volumes)
	handler := server.NewHandler(server.HandlerOptions{
		Oracle:            oracle,
		Volumes:           oracle,
		Strategies:        st.strategies,
		Runs:              st.runs,
		Workers:           cfg.Scheduler.Workers,
		QueueSize:         cfg.Scheduler.QueueSize,
		BackoffBase:       cfg.Scheduler.BackoffBase.Std(),
		EvaluationTimeout: cfg.Scheduler.EvaluationTimeout.Std(),
		Cache:             evalCache,
		CacheTTL:          cfg.Cache.TTL.Std(),
		Tokens:            cfg.Registry(),
		Logger:            &logger,
	})
	srv := server.New(handler, server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		MetricsPath:  cfg.Metrics.Path,
		Logger:       &logger,
	})

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		// A second signal, or a stuck shutdown, forces exit.
		select {
		case <-sigCh:
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out")
			os.Exit(1)
		case <-done:
		}
	}()

	srv.Start()
	<-ctx.Done()

	handler.Registry().StopAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	close(done)
	logger.Info().Msg("shutdown complete")
}

// loadConfig reads the YAML file when given, otherwise starts from defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWithEnv(path)
}

// applyOverrides lets flags win over the config file. DSNs given on the
// command line imply the database backend; -use-memory wins over everything.
func applyOverrides(cfg *config.Config, addr, postgresDSN, clickhouseDSN string, useMemory bool, logLevel string) {
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if postgresDSN != "" {
		cfg.Storage.PostgresDSN = postgresDSN
		cfg.Storage.Backend = "database"
	}
	if clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = clickhouseDSN
		cfg.Storage.Backend = "database"
	}
	if useMemory {
		cfg.Storage.Backend = "memory"
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

// createStores connects the configured backend, applying migrations on the
// database path.
func createStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	if cfg.Storage.Backend == "memory" {
		st := &stores{
			prices:     memory.NewPriceHistoryStore(),
			volumes:    memory.NewVolumeHistoryStore(),
			strategies: memory.NewStrategyStore(),
			runs:       memory.NewOptimizationStore(),
		}
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	st := &stores{
		prices:     chstore.NewPriceHistoryStore(conn),
		volumes:    chstore.NewVolumeHistoryStore(conn),
		strategies: pgstore.NewStrategyStore(pool),
		runs:       pgstore.NewOptimizationStore(pool),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

// createCache builds the evaluation cache: in-process by default, Redis when
// several instances should share results.
func createCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	}
	return cache.NewMemory(cfg.Cache.MaxEntries), nil
}

// loadEnvFile loads environment variables from a .env file if one exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Never override variables already set in the environment.
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
