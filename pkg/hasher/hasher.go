// Package hasher implements domain-separated SHA-256 hashing for Merkle leaves and branches.
package hasher

import (
	"crypto/sha256"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// IMerkleHasher hashes leaves and branches of a Merkle tree.
// Implementations must be safe for concurrent use.
type IMerkleHasher interface {
	// HashLeaf hashes the canonical string form of an item
	HashLeaf(input string) types.Digest

	// HashBranch hashes two child digests into their parent
	HashBranch(left, right types.Digest) types.Digest
}

// TaggedHasher implements the BIP-340 style tagged hash:
//
//	SHA256(SHA256(tag) || SHA256(tag) || msg)
//
// with independent tags for leaves and branches. Tag digests are computed once
// at construction and never mutated.
type TaggedHasher struct {
	leafTag       string
	branchTag     string
	leafTagHash   types.Digest
	branchTagHash types.Digest
}

var _ IMerkleHasher = (*TaggedHasher)(nil)

// NewTaggedHasher creates a hasher for the given leaf and branch tags.
// Using the same tag for both is legal but removes leaf/branch domain separation.
func NewTaggedHasher(leafTag, branchTag string) *TaggedHasher {
	return &TaggedHasher{
		leafTag:       leafTag,
		branchTag:     branchTag,
		leafTagHash:   sha256.Sum256([]byte(leafTag)),
		branchTagHash: sha256.Sum256([]byte(branchTag)),
	}
}

// HashLeaf computes SHA256(leafTag || leafTag || UTF8(input))
func (th *TaggedHasher) HashLeaf(input string) types.Digest {
	return taggedHash(th.leafTagHash, []byte(input))
}

// HashBranch computes SHA256(branchTag || branchTag || left || right)
func (th *TaggedHasher) HashBranch(left, right types.Digest) types.Digest {
	return taggedHash(th.branchTagHash, left[:], right[:])
}

// LeafTag returns the tag used for leaf hashing
func (th *TaggedHasher) LeafTag() string {
	return th.leafTag
}

// BranchTag returns the tag used for branch hashing
func (th *TaggedHasher) BranchTag() string {
	return th.branchTag
}

func taggedHash(tagHash types.Digest, parts ...[]byte) types.Digest {
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, p := range parts {
		h.Write(p)
	}

	var out types.Digest
	copy(out[:], h.Sum(nil))
	return out
}
