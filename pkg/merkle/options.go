package merkle

import (
	"runtime"

	"go.uber.org/zap"
)

type buildOptions struct {
	sortLeaves   bool
	duplicateOdd bool
	parallelism  int
	logger       *zap.Logger
}

// Option configures BuildMerkleTree.
type Option func(*buildOptions)

func defaultOptions() *buildOptions {
	return &buildOptions{
		sortLeaves:   true,
		duplicateOdd: false,
		parallelism:  1,
		logger:       zap.NewNop(),
	}
}

// WithSortLeaves controls whether leaves are sorted ascending before the tree is built.
// Sorting is on by default and is what makes the root independent of input order.
func WithSortLeaves(sortLeaves bool) Option {
	return func(o *buildOptions) {
		o.sortLeaves = sortLeaves
	}
}

// WithDuplicateOdd pairs the last node of an odd layer with itself instead of
// carrying it up unchanged. Off by default.
func WithDuplicateOdd(duplicateOdd bool) Option {
	return func(o *buildOptions) {
		o.duplicateOdd = duplicateOdd
	}
}

// WithParallelism sets how many goroutines may hash a single layer.
// Values below 1 use GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *buildOptions) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.parallelism = n
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *buildOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
