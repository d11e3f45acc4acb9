package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

func TestMarshalUserBalance(t *testing.T) {
	ub := &types.UserBalance{UserID: 42, Balance: 4200}

	data, err := MarshalUserBalance(ub)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":42,"balance":4200}`, string(data))

	decoded, err := UnmarshalUserBalance(data)
	require.NoError(t, err)
	assert.Equal(t, ub, decoded)
}

func TestMarshalUserBalance_Errors(t *testing.T) {
	_, err := MarshalUserBalance(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil UserBalance")

	_, err = UnmarshalUserBalance(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")

	_, err = UnmarshalUserBalance([]byte("{not json"))
	require.Error(t, err)
}

func TestDemoBalances(t *testing.T) {
	balances := DemoBalances()
	require.Len(t, balances, 8)
	assert.Equal(t, "(1,1111)", balances[0].String())
	assert.Equal(t, "(8,8888)", balances[7].String())
}

func TestSortBalances(t *testing.T) {
	balances := []*types.UserBalance{
		{UserID: 5}, {UserID: 2}, {UserID: 8}, {UserID: 1},
	}
	SortBalances(balances)

	for i := 1; i < len(balances); i++ {
		assert.Less(t, balances[i-1].UserID, balances[i].UserID)
	}
}

func TestReadBalances(t *testing.T) {
	balances, err := ReadBalances(strings.NewReader(`[{"userId":2,"balance":20},{"userId":1,"balance":10}]`))
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "(2,20)", balances[0].String())

	_, err = ReadBalances(strings.NewReader(`[{"userId":1,"balance":10},{"userId":1,"balance":11}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate balance for user 1")

	_, err = ReadBalances(strings.NewReader(`[null]`))
	require.Error(t, err)

	_, err = ReadBalances(strings.NewReader(`{"userId":1}`))
	require.Error(t, err)
}
