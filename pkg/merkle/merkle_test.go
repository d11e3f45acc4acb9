package merkle

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

const (
	testLeafTag   = "ProofOfReserve_Leaf"
	testBranchTag = "ProofOfReserve_Branch"
)

// createTestItems creates n distinct canonical strings
func createTestItems(n int) []string {
	items := make([]string, n)
	for i := 0; i < n; i++ {
		items[i] = types.UserBalance{UserID: int64(i + 1), Balance: int64((i + 1) * 1111)}.String()
	}
	return items
}

func newTestTree(t testing.TB, opts ...Option) *Tree[string] {
	tree, err := NewStringTree(hasher.NewTaggedHasher(testLeafTag, testBranchTag), opts...)
	require.NoError(t, err)
	return tree
}

// TestComputeRootReferenceVector checks bit-exact compatibility with the published test vector
func TestComputeRootReferenceVector(t *testing.T) {
	items := []string{"aaa", "bbb", "ccc", "ddd", "eee"}
	tree, err := NewStringTree(hasher.NewTaggedHasher("Bitcoin_Transaction", "Bitcoin_Transaction"))
	require.NoError(t, err)

	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)
	require.Regexp(t, "^[0-9a-f]{64}$", root.Hex())
	require.Equal(t, "4aa906745f72053498ecc74f79813370a4fe04f85e09421df2d5ef760dfa94b5", root.Hex())
}

// TestReserveBalancesRoundTrip proves every balance of the reference reserve set
func TestReserveBalancesRoundTrip(t *testing.T) {
	items := []string{"(1,1111)", "(2,2222)", "(3,3333)", "(4,4444)", "(5,5555)", "(6,6666)", "(7,7777)", "(8,8888)"}
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	tree, err := NewStringTree(h)
	require.NoError(t, err)

	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)

	for _, leaf := range items {
		t.Run(leaf, func(t *testing.T) {
			proof, err := tree.GetProof(items, leaf)
			require.NoError(t, err)
			require.Equal(t, leaf, proof.Leaf)
			require.Len(t, proof.Steps, 3)
			require.True(t, Verify(h, leaf, proof, root))
		})
	}
}

// TestComputeRoot tests root computation and proofs for various tree sizes
func TestComputeRoot(t *testing.T) {
	testCases := []struct {
		name     string
		numItems int
	}{
		{"Single item", 1},
		{"Two items", 2},
		{"Three items", 3},
		{"Four items (power of 2)", 4},
		{"Five items", 5},
		{"Seven items", 7},
		{"Eight items (power of 2)", 8},
		{"Fifteen items", 15},
		{"Sixteen items (power of 2)", 16},
	}

	tree := newTestTree(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			items := createTestItems(tc.numItems)
			root, err := tree.ComputeRoot(items)
			require.NoError(t, err)
			require.False(t, root.IsZero())

			for _, item := range items {
				proof, err := tree.GetProof(items, item)
				require.NoError(t, err)
				require.True(t, Verify(tree.Hasher(), item, proof, root), "proof for %s should be valid", item)
			}
		})
	}
}

// TestComputeRootEmpty tests that an empty input fails
func TestComputeRootEmpty(t *testing.T) {
	tree := newTestTree(t)

	_, err := tree.ComputeRoot(nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = tree.ComputeRoot([]string{})
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Contains(t, err.Error(), "empty")

	_, err = tree.ComputeLevels(nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = tree.GetProof(nil, "(1,1111)")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestComputeRootSingleItem(t *testing.T) {
	tree := newTestTree(t)

	root, err := tree.ComputeRoot([]string{"(1,1111)"})
	require.NoError(t, err)
	require.Equal(t, tree.Hasher().HashLeaf("(1,1111)"), root)

	proof, err := tree.GetProof([]string{"(1,1111)"}, "(1,1111)")
	require.NoError(t, err)
	require.Empty(t, proof.Steps)
	require.True(t, Verify(tree.Hasher(), "(1,1111)", proof, root))
}

// TestComputeRootDuplicatesLastNode checks the odd-node policy against a hand-built tree
func TestComputeRootDuplicatesLastNode(t *testing.T) {
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	tree, err := NewStringTree(h)
	require.NoError(t, err)

	a, b, c := h.HashLeaf("a"), h.HashLeaf("b"), h.HashLeaf("c")
	expected := h.HashBranch(h.HashBranch(a, b), h.HashBranch(c, c))

	root, err := tree.ComputeRoot([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, expected, root)

	// Padding with a zero digest or promoting the odd node would give a different root
	require.NotEqual(t, h.HashBranch(h.HashBranch(a, b), h.HashBranch(c, types.Digest{})), root)
	require.NotEqual(t, h.HashBranch(h.HashBranch(a, b), c), root)
}

// TestGetProofSelfPairing checks that an odd last node records itself as sibling
func TestGetProofSelfPairing(t *testing.T) {
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	tree, err := NewStringTree(h)
	require.NoError(t, err)

	items := []string{"a", "b", "c"}
	proof, err := tree.GetProof(items, "c")
	require.NoError(t, err)
	require.Len(t, proof.Steps, 2)

	require.Equal(t, h.HashLeaf("c"), proof.Steps[0].Sibling)
	require.Equal(t, types.DirectionRight, proof.Steps[0].Direction)

	require.Equal(t, h.HashBranch(h.HashLeaf("a"), h.HashLeaf("b")), proof.Steps[1].Sibling)
	require.Equal(t, types.DirectionLeft, proof.Steps[1].Direction)
}

func TestGetProofDirections(t *testing.T) {
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	tree, err := NewStringTree(h)
	require.NoError(t, err)

	items := []string{"a", "b", "c", "d"}
	a, b, c, d := h.HashLeaf("a"), h.HashLeaf("b"), h.HashLeaf("c"), h.HashLeaf("d")

	proof, err := tree.GetProof(items, "b")
	require.NoError(t, err)
	require.Equal(t, b, h.HashLeaf(proof.Leaf))
	require.Equal(t, []types.ProofStep{
		{Sibling: a, Direction: types.DirectionLeft},
		{Sibling: h.HashBranch(c, d), Direction: types.DirectionRight},
	}, proof.Steps)
}

func TestGetProofNotFound(t *testing.T) {
	tree := newTestTree(t)

	proof, err := tree.GetProof(createTestItems(5), "absent-value")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, proof)
}

// TestGetProofDuplicateResolvesToFirst checks the first-match tie-break
func TestGetProofDuplicateResolvesToFirst(t *testing.T) {
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	tree, err := NewStringTree(h)
	require.NoError(t, err)

	items := []string{"x", "dup", "y", "dup"}
	proof, err := tree.GetProof(items, "dup")
	require.NoError(t, err)

	// Index 1 is a right child: first sibling is leaf 0
	require.Equal(t, h.HashLeaf("x"), proof.Steps[0].Sibling)
	require.Equal(t, types.DirectionLeft, proof.Steps[0].Direction)

	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)
	require.True(t, Verify(h, "dup", proof, root))
}

// TestMerkleProofLength tests that proof length is ceil(log2(n))
func TestMerkleProofLength(t *testing.T) {
	tree := newTestTree(t)

	for _, n := range []int{1, 2, 3, 4, 5, 8, 9, 16, 17, 100} {
		t.Run(fmt.Sprintf("%d_items", n), func(t *testing.T) {
			items := createTestItems(n)
			expected := int(math.Ceil(math.Log2(float64(n))))

			levels, err := tree.ComputeLevels(items)
			require.NoError(t, err)
			require.Len(t, levels, expected+1)
			require.Len(t, levels[len(levels)-1], 1)

			for _, idx := range []int{0, n / 2, n - 1} {
				proof, err := tree.GetProof(items, items[idx])
				require.NoError(t, err)
				require.Len(t, proof.Steps, expected)
			}
		})
	}
}

func TestComputeLevelsMatchesRoot(t *testing.T) {
	tree := newTestTree(t)
	items := createTestItems(11)

	levels, err := tree.ComputeLevels(items)
	require.NoError(t, err)
	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)

	require.Equal(t, root, levels[len(levels)-1][0])
	require.Len(t, levels[0], 11)
	require.Len(t, levels[1], 6)
	require.Len(t, levels[2], 3)
	require.Len(t, levels[3], 2)
}

// TestMerkleTreeDeterminism tests that the same items always produce the same root
func TestMerkleTreeDeterminism(t *testing.T) {
	tree := newTestTree(t)
	items := createTestItems(10)

	root1, err := tree.ComputeRoot(items)
	require.NoError(t, err)
	root2, err := tree.ComputeRoot(items)
	require.NoError(t, err)
	require.Equal(t, root1, root2)
}

// TestMerkleTreeOrderSensitivity tests that reordering items changes the root
func TestMerkleTreeOrderSensitivity(t *testing.T) {
	tree := newTestTree(t)
	items := createTestItems(10)

	reversed := make([]string, len(items))
	copy(reversed, items)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}

	root1, err := tree.ComputeRoot(items)
	require.NoError(t, err)
	root2, err := tree.ComputeRoot(reversed)
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)

	// Input slice is not modified
	require.Equal(t, createTestItems(10), items)
}

// TestMerkleProofVerification tests proof verification with valid and invalid cases
func TestMerkleProofVerification(t *testing.T) {
	tree := newTestTree(t)
	h := tree.Hasher()
	items := createTestItems(7)
	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)

	target := items[2]

	t.Run("Valid proof", func(t *testing.T) {
		proof, err := tree.GetProof(items, target)
		require.NoError(t, err)
		require.True(t, Verify(h, target, proof, root))
	})

	t.Run("Invalid proof - wrong root", func(t *testing.T) {
		proof, err := tree.GetProof(items, target)
		require.NoError(t, err)
		require.False(t, Verify(h, target, proof, types.Digest{1, 2, 3, 4, 5}))
	})

	t.Run("Invalid proof - wrong leaf value", func(t *testing.T) {
		proof, err := tree.GetProof(items, target)
		require.NoError(t, err)
		require.False(t, Verify(h, "(3,3334)", proof, root))
	})

	t.Run("Invalid proof - tampered sibling", func(t *testing.T) {
		for stepIdx := range 3 {
			for bit := 0; bit < 8*types.DigestSize; bit += 37 {
				proof, err := tree.GetProof(items, target)
				require.NoError(t, err)
				proof.Steps[stepIdx].Sibling[bit/8] ^= 1 << (bit % 8)
				require.False(t, Verify(h, target, proof, root), "step %d bit %d", stepIdx, bit)
			}
		}
	})

	t.Run("Invalid proof - swapped direction", func(t *testing.T) {
		for stepIdx := range 3 {
			proof, err := tree.GetProof(items, target)
			require.NoError(t, err)
			if proof.Steps[stepIdx].Direction == types.DirectionLeft {
				proof.Steps[stepIdx].Direction = types.DirectionRight
			} else {
				proof.Steps[stepIdx].Direction = types.DirectionLeft
			}
			require.False(t, Verify(h, target, proof, root), "step %d", stepIdx)
		}
	})

	t.Run("Invalid proof - unknown direction", func(t *testing.T) {
		proof, err := tree.GetProof(items, target)
		require.NoError(t, err)
		proof.Steps[0].Direction = types.Direction(7)
		require.False(t, Verify(h, target, proof, root))
	})

	t.Run("Invalid proof - nil proof", func(t *testing.T) {
		require.False(t, Verify(h, target, nil, root))
	})

	t.Run("Invalid proof - leaf hasher used for branches", func(t *testing.T) {
		other := hasher.NewTaggedHasher(testLeafTag, testLeafTag)
		proof, err := tree.GetProof(items, target)
		require.NoError(t, err)
		require.False(t, Verify(other, target, proof, root))
	})
}

func TestVerifyResult(t *testing.T) {
	tree := newTestTree(t)
	h := tree.Hasher()
	items := createTestItems(8)
	root, err := tree.ComputeRoot(items)
	require.NoError(t, err)

	proof, err := tree.GetProof(items, items[4])
	require.NoError(t, err)
	result := types.NewMerkleProofResult(proof)

	t.Run("Valid", func(t *testing.T) {
		ok, err := VerifyResult(h, result, root.Hex())
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Mismatch is false, not an error", func(t *testing.T) {
		ok, err := VerifyResult(h, result, types.Digest{9}.Hex())
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Malformed root is an error", func(t *testing.T) {
		_, err := VerifyResult(h, result, "not-hex")
		var decodeErr *types.DigestDecodeError
		require.True(t, errors.As(err, &decodeErr))
	})

	t.Run("Wrong-length sibling is an error", func(t *testing.T) {
		bad := &types.MerkleProofResult{
			UserBalance: result.UserBalance,
			ProofPath:   append([]types.ProofNode{}, result.ProofPath...),
		}
		bad.ProofPath[1].Hash = bad.ProofPath[1].Hash[:60]
		_, err := VerifyResult(h, bad, root.Hex())
		var decodeErr *types.DigestDecodeError
		require.True(t, errors.As(err, &decodeErr))
	})
}

func TestNewTreeValidation(t *testing.T) {
	_, err := NewStringTree(nil)
	require.Error(t, err)

	_, err = NewTree[string](hasher.NewTaggedHasher("a", "b"), nil)
	require.Error(t, err)
}

func TestStringerTree(t *testing.T) {
	h := hasher.NewTaggedHasher(testLeafTag, testBranchTag)
	balances := []types.UserBalance{{UserID: 1, Balance: 1111}, {UserID: 2, Balance: 2222}, {UserID: 3, Balance: 3333}}

	balanceTree, err := NewStringerTree[types.UserBalance](h)
	require.NoError(t, err)
	stringTree, err := NewStringTree(h)
	require.NoError(t, err)

	root1, err := balanceTree.ComputeRoot(balances)
	require.NoError(t, err)
	root2, err := stringTree.ComputeRoot([]string{"(1,1111)", "(2,2222)", "(3,3333)"})
	require.NoError(t, err)
	require.Equal(t, root2, root1)

	proof, err := balanceTree.GetProof(balances, "(2,2222)")
	require.NoError(t, err)
	require.True(t, Verify(h, "(2,2222)", proof, root1))
}

// TestParallelMatchesSequential tests that parallel level hashing yields identical results
func TestParallelMatchesSequential(t *testing.T) {
	sequential := newTestTree(t)
	parallel := newTestTree(t, WithParallelism(4, 2))

	for _, n := range []int{1, 2, 3, 7, 64, 257} {
		t.Run(fmt.Sprintf("Size_%d", n), func(t *testing.T) {
			items := createTestItems(n)

			root1, err := sequential.ComputeRoot(items)
			require.NoError(t, err)
			root2, err := parallel.ComputeRoot(items)
			require.NoError(t, err)
			require.Equal(t, root1, root2)

			for _, idx := range []int{0, n / 3, n - 1} {
				p1, err := sequential.GetProof(items, items[idx])
				require.NoError(t, err)
				p2, err := parallel.GetProof(items, items[idx])
				require.NoError(t, err)
				require.Equal(t, p1, p2)
			}
		})
	}
}

// TestEveryLeafRoundTrip proves and verifies every leaf for every size up to 70,
// both in memory and through the wire form
func TestEveryLeafRoundTrip(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		tree := newTestTree(t, WithParallelism(workers, 2))

		t.Run(fmt.Sprintf("Workers_%d", workers), func(t *testing.T) {
			for n := 1; n <= 70; n++ {
				items := createTestItems(n)
				root, err := tree.ComputeRoot(items)
				require.NoError(t, err)

				for _, item := range items {
					proof, err := tree.GetProof(items, item)
					require.NoError(t, err)
					require.Len(t, proof.Steps, proofLength(n), "n=%d", n)
					require.True(t, Verify(tree.Hasher(), item, proof, root), "n=%d item=%s", n, item)

					ok, err := VerifyResult(tree.Hasher(), types.NewMerkleProofResult(proof), root.Hex())
					require.NoError(t, err)
					require.True(t, ok)
				}
			}
		})
	}
}

func TestConcurrentComputeRoot(t *testing.T) {
	tree := newTestTree(t)
	items := createTestItems(33)
	expected, err := tree.ComputeRoot(items)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root, err := tree.ComputeRoot(items)
			if err != nil || root != expected {
				t.Errorf("concurrent root mismatch: %v", err)
			}
		}()
	}
	wg.Wait()
}

// TestMerkleTreeLargeSet tests with a larger number of items
func TestMerkleTreeLargeSet(t *testing.T) {
	tree := newTestTree(t, WithParallelism(8, 64))

	for _, size := range []int{50, 100, 1000} {
		t.Run(fmt.Sprintf("Size_%d", size), func(t *testing.T) {
			items := createTestItems(size)
			root, err := tree.ComputeRoot(items)
			require.NoError(t, err)

			for _, idx := range []int{0, size / 4, size / 2, size - 1} {
				proof, err := tree.GetProof(items, items[idx])
				require.NoError(t, err)
				require.True(t, Verify(tree.Hasher(), items[idx], proof, root))
			}
		})
	}
}

func TestProofLengthHelper(t *testing.T) {
	require.Equal(t, 0, proofLength(1))
	require.Equal(t, 1, proofLength(2))
	require.Equal(t, 2, proofLength(3))
	require.Equal(t, 3, proofLength(5))
	require.Equal(t, 3, proofLength(8))
	require.Equal(t, 4, proofLength(9))
}
