package persistence

import (
	"errors"
	"sort"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// TreeSnapshot is everything needed to rebuild a published tree and serve proofs from it.
type TreeSnapshot struct {
	// Root is the merkle root and the primary key for snapshot storage.
	Root types.Digest `json:"root"`

	// Label is a free-form name given at publish time (e.g. "mint-phase-1").
	Label string `json:"label"`

	// Leaves are the leaf digests in the order they were given to the builder.
	Leaves []types.Digest `json:"leaves"`

	// Records are the allowlist entries the leaves were derived from.
	// Optional: snapshots built from bare digests have none.
	Records []*types.Record `json:"records,omitempty"`

	// SortLeaves and DuplicateOdd are the builder options the root depends on.
	SortLeaves   bool `json:"sortLeaves"`
	DuplicateOdd bool `json:"duplicateOdd"`

	// CreatedAt is the Unix timestamp of publication.
	CreatedAt int64 `json:"createdAt"`
}

// Copy returns a deep copy so that stored snapshots cannot be mutated by callers.
func (ts *TreeSnapshot) Copy() *TreeSnapshot {
	if ts == nil {
		return nil
	}

	c := &TreeSnapshot{
		Root:         ts.Root,
		Label:        ts.Label,
		SortLeaves:   ts.SortLeaves,
		DuplicateOdd: ts.DuplicateOdd,
		CreatedAt:    ts.CreatedAt,
	}
	if ts.Leaves != nil {
		c.Leaves = make([]types.Digest, len(ts.Leaves))
		copy(c.Leaves, ts.Leaves)
	}
	if ts.Records != nil {
		c.Records = make([]*types.Record, len(ts.Records))
		for i, r := range ts.Records {
			c.Records[i] = r.Copy()
		}
	}
	return c
}

// SortSnapshots orders snapshots by CreatedAt, breaking ties by root.
func SortSnapshots(snapshots []*TreeSnapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt != snapshots[j].CreatedAt {
			return snapshots[i].CreatedAt < snapshots[j].CreatedAt
		}
		return snapshots[i].Root.Compare(snapshots[j].Root) < 0
	})
}
