package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/config"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence/badger"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence/memory"
)

func TestNewBalanceStore(t *testing.T) {
	l := zap.NewNop()

	t.Run("memory", func(t *testing.T) {
		cfg := config.NewDefaultProofServerConfig()
		store, err := newBalanceStore(cfg, l)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.IsType(t, &memory.MemoryPersistence{}, store)
	})

	t.Run("badger", func(t *testing.T) {
		cfg := config.NewDefaultProofServerConfig()
		cfg.Persistence.Type = persistence.PersistenceTypeBadger
		cfg.Persistence.BadgerPath = t.TempDir()

		store, err := newBalanceStore(cfg, l)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		assert.IsType(t, &badger.BadgerPersistence{}, store)
		assert.NoError(t, store.HealthCheck())
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := config.NewDefaultProofServerConfig()
		cfg.Persistence.Type = "etcd"
		_, err := newBalanceStore(cfg, l)
		require.Error(t, err)
	})
}

func TestLoadInitialBalances(t *testing.T) {
	l := zap.NewNop()

	path := filepath.Join(t.TempDir(), "balances.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"userId":2,"balance":5},{"userId":100,"balance":1}]`), 0o600))

	cfg := config.NewDefaultProofServerConfig()
	cfg.SeedDemo = true
	cfg.BalancesFile = path

	store := memory.NewMemoryPersistence()
	defer func() { _ = store.Close() }()

	require.NoError(t, loadInitialBalances(cfg, store, l))

	all, err := store.ListBalances()
	require.NoError(t, err)
	require.Len(t, all, 9)

	// file entries override demo entries
	b, err := store.LoadBalance(2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Balance)
}

func TestLoadInitialBalances_MissingFile(t *testing.T) {
	cfg := config.NewDefaultProofServerConfig()
	cfg.BalancesFile = filepath.Join(t.TempDir(), "missing.json")

	store := memory.NewMemoryPersistence()
	defer func() { _ = store.Close() }()

	err := loadInitialBalances(cfg, store, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open balances file")
}
