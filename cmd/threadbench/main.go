package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/seantiz/threadbench/internal/api"
	"github.com/seantiz/threadbench/internal/config"
	"github.com/seantiz/threadbench/internal/engine"
	"github.com/seantiz/threadbench/internal/executor"
	"github.com/seantiz/threadbench/internal/simulator"
	"github.com/seantiz/threadbench/internal/store"
)

const executorShutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	logger.Info("threadbench: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"async_strategy", cfg.AsyncStrategy,
		"pool_core", cfg.Pool.CoreSize,
		"pool_max", cfg.Pool.MaxSize,
		"pool_queue", cfg.Pool.QueueCapacity,
		"pool_saturation", cfg.Pool.Saturation,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pool := executor.NewBoundedPool(executor.BoundedConfig{
		Name:          executor.KindBounded,
		CoreSize:      cfg.Pool.CoreSize,
		MaxSize:       cfg.Pool.MaxSize,
		QueueCapacity: cfg.Pool.QueueCapacity,
		KeepAlive:     cfg.Pool.KeepAlive,
		Policy:        executor.Policy(cfg.Pool.Saturation),
		NamePrefix:    cfg.Pool.NamePrefix,
	}, logger)
	virtual := executor.NewUnbounded(executor.KindUnbounded, logger)

	reg := executor.NewRegistry()
	if err := reg.Register(executor.KindBounded, pool); err != nil {
		log.Fatalf("register bounded executor: %v", err)
	}
	if err := reg.Register(executor.KindUnbounded, virtual); err != nil {
		log.Fatalf("register unbounded executor: %v", err)
	}

	async, err := reg.Resolve(cfg.AsyncStrategy)
	if err != nil {
		log.Fatalf("resolve async executor: %v", err)
	}

	sim := simulator.New(simulator.Config{
		MinDelay:  cfg.Simulator.MinDelay,
		MaxDelay:  cfg.Simulator.MaxDelay,
		TailEvery: cfg.Simulator.TailEvery,
		TailExtra: cfg.Simulator.TailExtra,
	})

	eng := engine.NewEngine(sim, async, virtual, db, logger)
	defer eng.Close()

	srv := api.NewServer(cfg.ListenAddr, db, reg, eng, logger,
		api.WithRequestTimeout(cfg.RequestTimeout))

	runErr := srv.Run()

	ctx, cancel := context.WithTimeout(context.Background(), executorShutdownTimeout)
	defer cancel()
	if err := reg.Shutdown(ctx); err != nil {
		logger.Error("executor shutdown", "error", err)
	}

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
