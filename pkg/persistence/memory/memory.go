package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IBalancePersistence.
// Intended for tests and demos: all balances are lost when the process exits.
// Thread-safe using sync.RWMutex; values are copied in and out so callers
// cannot mutate stored balances.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Balance storage: userID -> UserBalance
	balances map[int64]types.UserBalance

	// Closed flag
	closed bool
}

var _ persistence.IBalancePersistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		balances: make(map[int64]types.UserBalance),
	}
}

// SaveBalance persists a user balance.
func (m *MemoryPersistence) SaveBalance(balance *types.UserBalance) error {
	if balance == nil {
		return fmt.Errorf("cannot save nil UserBalance")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.balances[balance.UserID] = *balance
	return nil
}

// LoadBalance retrieves a user balance.
func (m *MemoryPersistence) LoadBalance(userID int64) (*types.UserBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	balance, exists := m.balances[userID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return &balance, nil
}

// ListBalances returns all balances sorted by user ID.
func (m *MemoryPersistence) ListBalances() ([]*types.UserBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*types.UserBalance, 0, len(m.balances))
	for _, balance := range m.balances {
		b := balance
		result = append(result, &b)
	}
	persistence.SortBalances(result)

	return result, nil
}

// DeleteBalance removes a user balance.
func (m *MemoryPersistence) DeleteBalance(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.balances, userID)
	return nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}
