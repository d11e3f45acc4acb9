package types

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the byte length of every hash produced by the tree
const DigestSize = 32

// Digest is a 32-byte SHA-256 output
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding used on the wire (64 chars, no prefix)
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether the digest is all zero bytes
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigestHex(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DigestDecodeError is returned when a wire digest is not 64 hex characters.
// It is a decoding failure, never a verification result.
type DigestDecodeError struct {
	Input  string
	Reason string
}

func (e *DigestDecodeError) Error() string {
	return fmt.Sprintf("invalid digest %q: %s", e.Input, e.Reason)
}

// ParseDigestHex decodes a 64 character hex string into a Digest
func ParseDigestHex(s string) (Digest, error) {
	var d Digest
	if len(s) != DigestSize*2 {
		return d, &DigestDecodeError{Input: s, Reason: fmt.Sprintf("expected %d hex chars, got %d", DigestSize*2, len(s))}
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, &DigestDecodeError{Input: s, Reason: err.Error()}
	}
	return d, nil
}

// Direction names the side the sibling sits on when reconstructing a parent
type Direction uint8

const (
	// DirectionLeft means the sibling precedes the running digest: H(sibling || current)
	DirectionLeft Direction = 0
	// DirectionRight means the sibling follows the running digest: H(current || sibling)
	DirectionRight Direction = 1
)

// Valid reports whether d is one of the two defined directions
func (d Direction) Valid() bool {
	return d == DirectionLeft || d == DirectionRight
}

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// ProofStep is one sibling on the path from a leaf to the root
type ProofStep struct {
	Sibling   Digest
	Direction Direction
}

// MerkleProof proves inclusion of a single leaf.
type MerkleProof struct {
	// Leaf is the canonical string of the proven item
	Leaf string

	// Steps are ordered from the leaf level up to (not including) the root
	Steps []ProofStep
}

// UserBalance is a single account in the reserve set
type UserBalance struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
}

// String returns the canonical leaf form "(id,balance)". Changing it changes every root.
func (ub UserBalance) String() string {
	return fmt.Sprintf("(%d,%d)", ub.UserID, ub.Balance)
}
