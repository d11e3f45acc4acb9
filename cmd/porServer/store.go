package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/config"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence/badger"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence/memory"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence/redis"
)

// newBalanceStore opens the backend selected by cfg
func newBalanceStore(cfg *config.ProofServerConfig, l *zap.Logger) (persistence.IBalancePersistence, error) {
	switch cfg.Persistence.Type {
	case persistence.PersistenceTypeMemory:
		l.Sugar().Warnw("Using in-memory balance store; balances are lost on restart")
		return memory.NewMemoryPersistence(), nil

	case persistence.PersistenceTypeRedis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Persistence.RedisAddress,
			Password:  cfg.Persistence.RedisPassword,
			DB:        cfg.Persistence.RedisDB,
			KeyPrefix: cfg.Persistence.RedisKeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis balance store: %w", err)
		}
		return store, nil

	case persistence.PersistenceTypeBadger:
		store, err := badger.NewBadgerPersistence(cfg.Persistence.BadgerPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger balance store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.Persistence.Type)
	}
}

// loadInitialBalances applies the demo set and then the balances file, so file
// entries override demo entries for the same user.
func loadInitialBalances(cfg *config.ProofServerConfig, store persistence.IBalancePersistence, l *zap.Logger) error {
	if cfg.SeedDemo {
		if err := persistence.SeedBalances(store, persistence.DemoBalances()); err != nil {
			return err
		}
		l.Sugar().Infow("Seeded demo balances", "count", len(persistence.DemoBalances()))
	}

	if cfg.BalancesFile == "" {
		return nil
	}

	f, err := os.Open(cfg.BalancesFile)
	if err != nil {
		return fmt.Errorf("failed to open balances file: %w", err)
	}
	defer func() { _ = f.Close() }()

	balances, err := persistence.ReadBalances(f)
	if err != nil {
		return fmt.Errorf("failed to read balances file %s: %w", cfg.BalancesFile, err)
	}
	if err := persistence.SeedBalances(store, balances); err != nil {
		return err
	}
	l.Sugar().Infow("Imported balances", "file", cfg.BalancesFile, "count", len(balances))
	return nil
}
