package persistence

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// MarshalUserBalance serializes a UserBalance to JSON bytes.
func MarshalUserBalance(ub *types.UserBalance) ([]byte, error) {
	if ub == nil {
		return nil, fmt.Errorf("cannot marshal nil UserBalance")
	}

	data, err := json.Marshal(ub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal UserBalance to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalUserBalance deserializes a UserBalance from JSON bytes.
func UnmarshalUserBalance(data []byte) (*types.UserBalance, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ub types.UserBalance
	if err := json.Unmarshal(data, &ub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to UserBalance: %w", err)
	}

	return &ub, nil
}

// ReadBalances decodes a JSON array of balances, as used for bulk imports.
// Each user may appear only once.
func ReadBalances(r io.Reader) ([]*types.UserBalance, error) {
	var balances []*types.UserBalance
	if err := json.NewDecoder(r).Decode(&balances); err != nil {
		return nil, fmt.Errorf("failed to decode balances: %w", err)
	}

	seen := make(map[int64]struct{}, len(balances))
	for i, b := range balances {
		if b == nil {
			return nil, fmt.Errorf("balance %d is null", i)
		}
		if _, ok := seen[b.UserID]; ok {
			return nil, fmt.Errorf("duplicate balance for user %d", b.UserID)
		}
		seen[b.UserID] = struct{}{}
	}

	return balances, nil
}
