// Package proofService serves the merkle root over all user balances and
// per-user inclusion proofs against it.
package proofService

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/merkle"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/metrics"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

var (
	// ErrUserNotFound is returned when no balance exists for the requested user
	ErrUserNotFound = errors.New("user not found")

	// ErrNoBalances is returned when a root is requested over an empty store
	ErrNoBalances = errors.Wrap(merkle.ErrEmptyInput, "no balances to commit to")
)

// IUserProofService exposes the reserve commitment and per-user proofs
type IUserProofService interface {
	// GetMerkleRootHex returns the lowercase hex root over all balances in UserID order
	GetMerkleRootHex() (string, error)

	// GetMerkleRoot returns the root along with the number of leaves it commits to
	GetMerkleRoot() (*types.RootResponse, error)

	// GetProofForUser returns the serialized balance and its proof path
	GetProofForUser(userID int64) (*types.MerkleProofResult, error)
}

// UserProofService rebuilds the tree from the balance store on every call, so
// the returned root always reflects the store's current contents.
type UserProofService struct {
	store   persistence.IBalancePersistence
	tree    *merkle.Tree[*types.UserBalance]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

var _ IUserProofService = (*UserProofService)(nil)

// NewUserProofService creates a service over store. m may be nil.
func NewUserProofService(
	store persistence.IBalancePersistence,
	h hasher.IMerkleHasher,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...merkle.Option,
) (*UserProofService, error) {
	if store == nil {
		return nil, errors.New("balance store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tree, err := merkle.NewStringerTree[*types.UserBalance](h, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create merkle tree")
	}

	return &UserProofService{
		store:   store,
		tree:    tree,
		metrics: m,
		logger:  logger,
	}, nil
}

// Hasher returns the hasher roots and proofs are computed with
func (s *UserProofService) Hasher() hasher.IMerkleHasher {
	return s.tree.Hasher()
}

// GetMerkleRootHex returns the hex root over the current balance snapshot
func (s *UserProofService) GetMerkleRootHex() (string, error) {
	root, err := s.GetMerkleRoot()
	if err != nil {
		return "", err
	}
	return root.Root, nil
}

// GetMerkleRoot computes the root and leaf count from a fresh listing of the store
func (s *UserProofService) GetMerkleRoot() (*types.RootResponse, error) {
	balances, err := s.store.ListBalances()
	if err != nil {
		s.metrics.RootComputed(metrics.ResultError)
		return nil, errors.Wrap(err, "failed to list balances")
	}
	if len(balances) == 0 {
		s.metrics.RootComputed(metrics.ResultEmpty)
		return nil, ErrNoBalances
	}

	start := time.Now()
	root, err := s.tree.ComputeRoot(balances)
	if err != nil {
		s.metrics.RootComputed(metrics.ResultError)
		return nil, errors.Wrap(err, "failed to compute merkle root")
	}
	took := time.Since(start)
	s.metrics.ObserveTreeBuild(len(balances), took)
	s.metrics.RootComputed(metrics.ResultOK)

	s.logger.Sugar().Debugw("Computed merkle root",
		"root", root.Hex(),
		"leaves", len(balances),
		"duration", took,
	)

	return &types.RootResponse{
		Root:      root.Hex(),
		LeafCount: len(balances),
	}, nil
}

// GetProofForUser builds the inclusion proof for userID's balance. Returns
// ErrUserNotFound when the store holds no balance for that user.
func (s *UserProofService) GetProofForUser(userID int64) (*types.MerkleProofResult, error) {
	// Balance lookup and proof come from the same listing so the leaf is
	// guaranteed to be in the tree the proof is built over.
	balances, err := s.store.ListBalances()
	if err != nil {
		s.metrics.ProofRequested(metrics.ResultError)
		return nil, errors.Wrap(err, "failed to list balances")
	}

	var target *types.UserBalance
	for _, b := range balances {
		if b.UserID == userID {
			target = b
			break
		}
	}
	if target == nil {
		s.metrics.ProofRequested(metrics.ResultNotFound)
		return nil, errors.Wrapf(ErrUserNotFound, "user ID %d", userID)
	}

	start := time.Now()
	proof, err := s.tree.GetProof(balances, target.String())
	if err != nil {
		s.metrics.ProofRequested(metrics.ResultError)
		return nil, errors.Wrapf(err, "failed to build proof for user %d", userID)
	}
	took := time.Since(start)
	s.metrics.ObserveTreeBuild(len(balances), took)
	s.metrics.ProofRequested(metrics.ResultOK)

	s.logger.Sugar().Debugw("Built inclusion proof",
		"user_id", userID,
		"steps", len(proof.Steps),
		"duration", took,
	)

	return types.NewMerkleProofResult(proof), nil
}
