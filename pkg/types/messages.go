package types

import "fmt"

// ProofNode is the wire form of a ProofStep
type ProofNode struct {
	Hash      string `json:"hash" cbor:"hash"`           // lowercase hex, 64 chars
	Direction int    `json:"direction" cbor:"direction"` // 0 = left, 1 = right
}

// MerkleProofResult is returned to account holders requesting their proof
type MerkleProofResult struct {
	UserBalance string      `json:"userBalance" cbor:"userBalance"`
	ProofPath   []ProofNode `json:"proofPath" cbor:"proofPath"`
}

// RootResponse is returned by the root endpoint
type RootResponse struct {
	Root      string `json:"root" cbor:"root"`
	LeafCount int    `json:"leafCount" cbor:"leafCount"`
}

// ErrorResponse is the body of non-2xx responses
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// NewMerkleProofResult converts a proof into its wire form
func NewMerkleProofResult(proof *MerkleProof) *MerkleProofResult {
	path := make([]ProofNode, 0, len(proof.Steps))
	for _, step := range proof.Steps {
		path = append(path, ProofNode{
			Hash:      step.Sibling.Hex(),
			Direction: int(step.Direction),
		})
	}
	return &MerkleProofResult{
		UserBalance: proof.Leaf,
		ProofPath:   path,
	}
}

// ToMerkleProof decodes the wire form. Malformed hashes or direction codes
// are reported as errors rather than producing a proof that fails to verify.
func (r *MerkleProofResult) ToMerkleProof() (*MerkleProof, error) {
	if r == nil {
		return nil, fmt.Errorf("proof result is nil")
	}

	steps := make([]ProofStep, 0, len(r.ProofPath))
	for i, node := range r.ProofPath {
		sibling, err := ParseDigestHex(node.Hash)
		if err != nil {
			return nil, fmt.Errorf("proof step %d: %w", i, err)
		}
		if node.Direction != int(DirectionLeft) && node.Direction != int(DirectionRight) {
			return nil, fmt.Errorf("proof step %d: invalid direction %d", i, node.Direction)
		}
		steps = append(steps, ProofStep{
			Sibling:   sibling,
			Direction: Direction(node.Direction),
		})
	}

	return &MerkleProof{
		Leaf:  r.UserBalance,
		Steps: steps,
	}, nil
}
