package merkle

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/hasher"
)

var (
	// ErrEmptyInput is returned when a root or proof is requested over zero items
	ErrEmptyInput = errors.New("cannot compute merkle root of empty list")

	// ErrNotFound is returned when the proof target is not among the items
	ErrNotFound = errors.New("item not found in the list")
)

// Tree computes roots and inclusion proofs over ordered sequences of T.
// A Tree holds no per-call state; every ComputeRoot/GetProof rebuilds the levels
// from the supplied items, so one Tree may be shared by concurrent callers.
type Tree[T any] struct {
	hasher    hasher.IMerkleHasher
	canonical func(T) string

	// workers > 1 enables parallel hashing of levels with at least minParallel nodes
	workers     int
	minParallel int
}

// Option configures a Tree
type Option func(*treeOptions)

type treeOptions struct {
	workers     int
	minParallel int
}

// WithParallelism hashes levels containing at least minLevelSize nodes using up to
// workers goroutines. A level is always completed before the next one starts.
func WithParallelism(workers, minLevelSize int) Option {
	return func(o *treeOptions) {
		o.workers = workers
		o.minParallel = minLevelSize
	}
}

// NewTree creates a tree that maps each item to its canonical string with canonical
func NewTree[T any](h hasher.IMerkleHasher, canonical func(T) string, opts ...Option) (*Tree[T], error) {
	if h == nil {
		return nil, fmt.Errorf("hasher cannot be nil")
	}
	if canonical == nil {
		return nil, fmt.Errorf("canonical function cannot be nil")
	}

	o := &treeOptions{workers: 1, minParallel: defaultMinParallelLevel}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.minParallel < 2 {
		o.minParallel = 2
	}

	return &Tree[T]{
		hasher:      h,
		canonical:   canonical,
		workers:     o.workers,
		minParallel: o.minParallel,
	}, nil
}

// NewStringTree creates a tree over items that already are canonical strings
func NewStringTree(h hasher.IMerkleHasher, opts ...Option) (*Tree[string], error) {
	return NewTree(h, func(s string) string { return s }, opts...)
}

// NewStringerTree creates a tree whose canonical form is the item's String method
func NewStringerTree[T fmt.Stringer](h hasher.IMerkleHasher, opts ...Option) (*Tree[T], error) {
	return NewTree(h, func(v T) string { return v.String() }, opts...)
}

// Hasher returns the hasher the tree was built with
func (t *Tree[T]) Hasher() hasher.IMerkleHasher {
	return t.hasher
}

const defaultMinParallelLevel = 1024
