package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/config"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/logger"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/merkle"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/metrics"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/proofService"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "por-server",
		Usage: "Proof of Reserve Server",
		Description: `Publishes a merkle root committing to every user balance and serves
per-user inclusion proofs against it.

Leaves are tagged SHA-256 hashes of "(userId,balance)" in user ID order;
branches use a separate tag so leaves and internal nodes cannot collide.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvPORPort},
			},
			&cli.StringFlag{
				Name:    "leaf-tag",
				Value:   config.DefaultLeafTag,
				Usage:   "Tag for leaf hashing",
				EnvVars: []string{config.EnvPORLeafTag},
			},
			&cli.StringFlag{
				Name:    "branch-tag",
				Value:   config.DefaultBranchTag,
				Usage:   "Tag for branch hashing",
				EnvVars: []string{config.EnvPORBranchTag},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Aliases: []string{"store"},
				Value:   string(persistence.PersistenceTypeMemory),
				Usage:   fmt.Sprintf("Balance store backend: %s", config.GetSupportedPersistenceTypesString()),
				EnvVars: []string{config.EnvPORPersistenceType},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Value:   config.DefaultRedisAddress,
				Usage:   "Redis address (host:port)",
				EnvVars: []string{config.EnvPORRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvPORRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvPORRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix prepended to every Redis key",
				EnvVars: []string{config.EnvPORRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Value:   config.DefaultBadgerPath,
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvPORBadgerPath},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second served across all clients (0 disables)",
				EnvVars: []string{config.EnvPORRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Usage:   "Burst size for the rate limiter",
				EnvVars: []string{config.EnvPORRateBurst},
			},
			&cli.IntFlag{
				Name:    "hash-workers",
				Value:   1,
				Usage:   "Goroutines used to hash large tree levels",
				EnvVars: []string{config.EnvPORHashWorkers},
			},
			&cli.BoolFlag{
				Name:    "seed-demo",
				Usage:   "Load the demo balances (1,1111) ... (8,8888) at startup",
				EnvVars: []string{config.EnvPORSeedDemo},
			},
			&cli.StringFlag{
				Name:    "balances-file",
				Usage:   "JSON array of {userId, balance} imported at startup",
				EnvVars: []string{config.EnvPORBalancesFile},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvPORVerbose},
			},
		},
		Action: runProofServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runProofServer(c *cli.Context) error {
	// Create logger
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseProofServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newBalanceStore(cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close balance store", "error", err)
		}
	}()

	if err := loadInitialBalances(cfg, store, l); err != nil {
		return err
	}

	m := metrics.NewMetrics()
	h := hasher.NewTaggedHasher(cfg.LeafTag, cfg.BranchTag)
	svc, err := proofService.NewUserProofService(store, h, m, l,
		merkle.WithParallelism(cfg.HashWorkers, cfg.ParallelMinLevel))
	if err != nil {
		return fmt.Errorf("failed to create proof service: %w", err)
	}

	if c.Bool("verbose") {
		l.Sugar().Infow("Proof Server Configuration",
			"port", cfg.Port,
			"leaf_tag", cfg.LeafTag,
			"branch_tag", cfg.BranchTag,
			"persistence", cfg.Persistence.Type,
			"rate_limit", cfg.RateLimit,
			"rate_burst", cfg.RateBurst,
			"hash_workers", cfg.HashWorkers)
	}

	srv := server.NewServer(&server.Config{
		Port:      cfg.Port,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, svc, store, m, l)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if root, err := svc.GetMerkleRoot(); err == nil {
		l.Sugar().Infow("Serving merkle root", "root", root.Root, "leaf_count", root.LeafCount)
	} else {
		l.Sugar().Warnw("No merkle root available yet", "error", err)
	}

	l.Sugar().Infow("Proof Server running", "port", cfg.Port)
	l.Sugar().Infow("Available endpoints",
		"root", "GET /api/proof/root",
		"proof", "GET /api/proof/{userId}",
		"health", "GET /health",
		"metrics", "GET /metrics")
	l.Sugar().Info("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	l.Sugar().Infow("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}

func parseProofServerConfig(c *cli.Context) *config.ProofServerConfig {
	cfg := config.NewDefaultProofServerConfig()

	cfg.Port = c.Int("port")
	cfg.LeafTag = c.String("leaf-tag")
	cfg.BranchTag = c.String("branch-tag")
	cfg.Persistence = config.PersistenceConfig{
		Type:           persistence.PersistenceType(c.String("persistence")),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
		BadgerPath:     c.String("badger-path"),
	}
	cfg.RateLimit = c.Float64("rate-limit")
	cfg.RateBurst = c.Int("rate-burst")
	cfg.HashWorkers = c.Int("hash-workers")
	cfg.SeedDemo = c.Bool("seed-demo")
	cfg.BalancesFile = c.String("balances-file")
	cfg.Debug = c.Bool("verbose")
	cfg.Verbose = c.Bool("verbose")

	return cfg
}
