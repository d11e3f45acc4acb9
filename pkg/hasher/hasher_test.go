package hasher

import (
	"crypto/sha256"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// referenceTaggedHash builds the tagged hash input by explicit concatenation
func referenceTaggedHash(tag string, msg []byte) types.Digest {
	tagHash := sha256.Sum256([]byte(tag))
	data := make([]byte, 0, 64+len(msg))
	data = append(data, tagHash[:]...)
	data = append(data, tagHash[:]...)
	data = append(data, msg...)
	return sha256.Sum256(data)
}

func TestTaggedHasher_HashLeaf(t *testing.T) {
	h := NewTaggedHasher("ProofOfReserve_Leaf", "ProofOfReserve_Branch")

	for _, input := range []string{"", "aaa", "(1,1111)", "ünïcødé"} {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, referenceTaggedHash("ProofOfReserve_Leaf", []byte(input)), h.HashLeaf(input))
		})
	}
}

func TestTaggedHasher_HashBranch(t *testing.T) {
	h := NewTaggedHasher("ProofOfReserve_Leaf", "ProofOfReserve_Branch")

	left := h.HashLeaf("left")
	right := h.HashLeaf("right")

	msg := append(append([]byte{}, left[:]...), right[:]...)
	require.Equal(t, referenceTaggedHash("ProofOfReserve_Branch", msg), h.HashBranch(left, right))

	// Order matters
	assert.NotEqual(t, h.HashBranch(left, right), h.HashBranch(right, left))
}

func TestTaggedHasher_Deterministic(t *testing.T) {
	h1 := NewTaggedHasher("a", "b")
	h2 := NewTaggedHasher("a", "b")

	assert.Equal(t, h1.HashLeaf("x"), h2.HashLeaf("x"))
	assert.Equal(t, h1.HashBranch(types.Digest{1}, types.Digest{2}), h2.HashBranch(types.Digest{1}, types.Digest{2}))
}

func TestTaggedHasher_DomainSeparation(t *testing.T) {
	h := NewTaggedHasher("ProofOfReserve_Leaf", "ProofOfReserve_Branch")

	a := h.HashLeaf("a")
	b := h.HashLeaf("b")

	// A leaf whose bytes equal the concatenation of two digests must not collide with their branch
	concatenated := string(append(append([]byte{}, a[:]...), b[:]...))
	assert.NotEqual(t, h.HashBranch(a, b), h.HashLeaf(concatenated))

	t.Run("Same tag removes separation", func(t *testing.T) {
		same := NewTaggedHasher("Bitcoin_Transaction", "Bitcoin_Transaction")
		assert.Equal(t, same.HashBranch(a, b), same.HashLeaf(concatenated))
	})

	t.Run("Different tags change leaf hashes", func(t *testing.T) {
		other := NewTaggedHasher("Other_Leaf", "ProofOfReserve_Branch")
		assert.NotEqual(t, h.HashLeaf("a"), other.HashLeaf("a"))
	})
}

func TestTaggedHasher_Tags(t *testing.T) {
	h := NewTaggedHasher("leaf", "branch")
	assert.Equal(t, "leaf", h.LeafTag())
	assert.Equal(t, "branch", h.BranchTag())
}

func TestTaggedHasher_Concurrent(t *testing.T) {
	h := NewTaggedHasher("ProofOfReserve_Leaf", "ProofOfReserve_Branch")
	expected := h.HashLeaf("(1,1111)")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, expected, h.HashLeaf("(1,1111)"))
		}()
	}
	wg.Wait()
}
