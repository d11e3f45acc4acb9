package merkle

import (
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// ComputeRoot returns the merkle root of items in their given order.
//
// Leaves are HashLeaf(canonical(item)). Each level is reduced pairwise with
// HashBranch; if a level has an odd number of nodes, the last node is paired
// with itself.
func (t *Tree[T]) ComputeRoot(items []T) (types.Digest, error) {
	leaves, err := t.hashLeaves(items)
	if err != nil {
		return types.Digest{}, err
	}

	current := leaves
	for len(current) > 1 {
		current = t.nextLevel(current)
	}
	return current[0], nil
}

// ComputeLevels returns every level of the tree, levels[0] being the leaves and
// levels[len-1] holding only the root.
func (t *Tree[T]) ComputeLevels(items []T) ([][]types.Digest, error) {
	leaves, err := t.hashLeaves(items)
	if err != nil {
		return nil, err
	}

	levels := [][]types.Digest{leaves}
	current := leaves
	for len(current) > 1 {
		current = t.nextLevel(current)
		levels = append(levels, current)
	}
	return levels, nil
}

// GetProof returns the inclusion proof for the first item whose canonical string
// equals target. Returns ErrEmptyInput for no items and ErrNotFound when target is absent.
func (t *Tree[T]) GetProof(items []T, target string) (*types.MerkleProof, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	canonical := make([]string, len(items))
	for i, item := range items {
		canonical[i] = t.canonical(item)
	}

	// duplicates resolve to the first occurrence
	index := -1
	for i, s := range canonical {
		if s == target {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, ErrNotFound
	}

	current := t.hashStrings(canonical)
	steps := make([]types.ProofStep, 0, proofLength(len(current)))

	for len(current) > 1 {
		if index%2 == 0 {
			// Node is on the left; an odd last node is its own sibling
			siblingIndex := index + 1
			if siblingIndex >= len(current) {
				siblingIndex = index
			}
			steps = append(steps, types.ProofStep{Sibling: current[siblingIndex], Direction: types.DirectionRight})
		} else {
			// Node is on the right, sibling is on the left
			steps = append(steps, types.ProofStep{Sibling: current[index-1], Direction: types.DirectionLeft})
		}

		current = t.nextLevel(current)
		index = index / 2
	}

	return &types.MerkleProof{
		Leaf:  target,
		Steps: steps,
	}, nil
}

// Verify recomputes the root from leafValue and proof and compares it to expectedRoot.
// A LEFT step hashes (sibling, current); a RIGHT step hashes (current, sibling).
func Verify(h hasher.IMerkleHasher, leafValue string, proof *types.MerkleProof, expectedRoot types.Digest) bool {
	if h == nil || proof == nil {
		return false
	}

	current := h.HashLeaf(leafValue)
	for _, step := range proof.Steps {
		switch step.Direction {
		case types.DirectionLeft:
			current = h.HashBranch(step.Sibling, current)
		case types.DirectionRight:
			current = h.HashBranch(current, step.Sibling)
		default:
			return false
		}
	}

	return current == expectedRoot
}

// VerifyResult verifies a proof in wire form against a hex root. Malformed input is
// returned as an error; a well-formed proof that does not reach the root is (false, nil).
func VerifyResult(h hasher.IMerkleHasher, result *types.MerkleProofResult, rootHex string) (bool, error) {
	root, err := types.ParseDigestHex(rootHex)
	if err != nil {
		return false, err
	}

	proof, err := result.ToMerkleProof()
	if err != nil {
		return false, err
	}

	return Verify(h, proof.Leaf, proof, root), nil
}

func (t *Tree[T]) hashLeaves(items []T) ([]types.Digest, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	canonical := make([]string, len(items))
	for i, item := range items {
		canonical[i] = t.canonical(item)
	}
	return t.hashStrings(canonical), nil
}

func (t *Tree[T]) hashStrings(values []string) []types.Digest {
	leaves := make([]types.Digest, len(values))
	t.forEachChunk(len(values), func(start, end int) {
		for i := start; i < end; i++ {
			leaves[i] = t.hasher.HashLeaf(values[i])
		}
	})
	return leaves
}

// nextLevel reduces level to its parents, duplicating the last node when the count is odd
func (t *Tree[T]) nextLevel(level []types.Digest) []types.Digest {
	next := make([]types.Digest, (len(level)+1)/2)
	t.forEachChunk(len(next), func(start, end int) {
		for p := start; p < end; p++ {
			i := 2 * p
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next[p] = t.hasher.HashBranch(left, right)
		}
	})
	return next
}

// forEachChunk calls fn over [0, n) either inline or split across worker goroutines.
// It returns only once every chunk is done.
func (t *Tree[T]) forEachChunk(n int, fn func(start, end int)) {
	if t.workers <= 1 || n < t.minParallel {
		fn(0, n)
		return
	}

	chunk := (n + t.workers - 1) / t.workers
	var g errgroup.Group
	g.SetLimit(t.workers)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

// proofLength is the number of levels above the leaves for a tree of n leaves
func proofLength(n int) int {
	length := 0
	for n > 1 {
		n = (n + 1) / 2
		length++
	}
	return length
}
