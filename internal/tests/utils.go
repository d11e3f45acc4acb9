package tests

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

const maxParentSearch = 10

// GetProjectRootPath walks up from the working directory to the directory holding go.mod
func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	p := wd
	for i := 0; i < maxParentSearch; i++ {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	panic(fmt.Sprintf("could not find project root above %s", wd))
}

// ReadBalancesFixture loads internal/testData/balances.json
func ReadBalancesFixture(projectRoot string) ([]*types.UserBalance, error) {
	filePath := filepath.Join(projectRoot, "internal", "testData", "balances.json")

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer func() { _ = f.Close() }()

	balances, err := persistence.ReadBalances(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balances fixture: %w", err)
	}
	return balances, nil
}
