package persistence

import (
	"fmt"
	"sort"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// PersistenceType selects a storage backend
type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeRedis  PersistenceType = "redis"
	PersistenceTypeBadger PersistenceType = "badger"
)

// SupportedPersistenceTypes lists the backends accepted by configuration
func SupportedPersistenceTypes() []PersistenceType {
	return []PersistenceType{PersistenceTypeMemory, PersistenceTypeRedis, PersistenceTypeBadger}
}

// DemoBalances returns the reference reserve set (1,1111) ... (8,8888)
func DemoBalances() []*types.UserBalance {
	balances := make([]*types.UserBalance, 0, 8)
	for i := int64(1); i <= 8; i++ {
		balances = append(balances, &types.UserBalance{UserID: i, Balance: i * 1111})
	}
	return balances
}

// SeedBalances saves every balance, stopping at the first failure
func SeedBalances(p IBalancePersistence, balances []*types.UserBalance) error {
	for _, b := range balances {
		if err := p.SaveBalance(b); err != nil {
			return fmt.Errorf("failed to seed balance for user %d: %w", b.UserID, err)
		}
	}
	return nil
}

// SortBalances sorts balances by UserID in place
func SortBalances(balances []*types.UserBalance) {
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].UserID < balances[j].UserID
	})
}
