package persistence

import "github.com/Layr-Labs/proof-of-reserve-go/pkg/types"

// IBalancePersistence stores the account balances that make up the reserve set.
// It is the ordered item provider for the merkle tree; all implementations must be
// thread-safe since the HTTP server reads concurrently.
//
// The interface supports:
// - Balance management (save, load, list, delete)
// - Lifecycle management (close, health check)
type IBalancePersistence interface {
	// Balance Management

	// SaveBalance persists a balance keyed by its UserID, overwriting any existing value.
	SaveBalance(balance *types.UserBalance) error

	// LoadBalance retrieves the balance of a user.
	// Returns nil if the user doesn't exist, error only on storage failure.
	LoadBalance(userID int64) (*types.UserBalance, error)

	// ListBalances returns all balances sorted by UserID (ascending).
	// This order defines leaf positions, so every backend must return the same order.
	// Returns empty slice if no balances exist, error only on storage failure.
	ListBalances() ([]*types.UserBalance, error)

	// DeleteBalance removes a user's balance.
	// Idempotent - returns nil if the user doesn't exist.
	DeleteBalance(userID int64) error

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
