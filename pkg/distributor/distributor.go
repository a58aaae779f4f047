// Package distributor publishes allowlists as merkle trees and serves claims
// against any published root.
package distributor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/leaf"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

var (
	ErrDuplicateRecord  = errors.New("duplicate record address")
	ErrTreeNotFound     = errors.New("tree not found")
	ErrSnapshotMismatch = errors.New("rebuilt root does not match snapshot root")
)

const defaultCacheSize = 16

// Config controls how trees are built and how many are kept in memory.
type Config struct {
	SortLeaves   bool
	DuplicateOdd bool
	Parallelism  int
	CacheSize    int
}

// DefaultConfig sorts leaves, carries odd nodes up and hashes on one goroutine.
func DefaultConfig() *Config {
	return &Config{
		SortLeaves:  true,
		Parallelism: 1,
		CacheSize:   defaultCacheSize,
	}
}

// publishedTree is a rebuilt tree together with the records it was published from.
type publishedTree struct {
	tree    *merkle.MerkleTree
	records []*types.Record
}

type Distributor struct {
	store  persistence.ITreePersistence
	config *Config
	cache  *lru.Cache[types.Digest, *publishedTree]
	logger *zap.Logger

	now func() time.Time
}

func NewDistributor(store persistence.ITreePersistence, cfg *Config, l *zap.Logger) (*Distributor, error) {
	if store == nil {
		return nil, fmt.Errorf("tree persistence cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if l == nil {
		l = zap.NewNop()
	}

	size := cfg.CacheSize
	if size < 1 {
		size = defaultCacheSize
	}
	cache, err := lru.New[types.Digest, *publishedTree](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}

	return &Distributor{
		store:  store,
		config: cfg,
		cache:  cache,
		logger: l,
		now:    time.Now,
	}, nil
}

func (d *Distributor) buildOptions(sortLeaves, duplicateOdd bool) []merkle.Option {
	return []merkle.Option{
		merkle.WithSortLeaves(sortLeaves),
		merkle.WithDuplicateOdd(duplicateOdd),
		merkle.WithParallelism(d.config.Parallelism),
		merkle.WithLogger(d.logger),
	}
}

// Publish builds a tree from the records, persists it and makes it the active root.
// Each address may appear only once.
func (d *Distributor) Publish(records []*types.Record, label string) (*merkle.MerkleTree, error) {
	if len(records) == 0 {
		return nil, merkle.ErrEmptyInput
	}

	seen := make(map[common.Address]int, len(records))
	for i, r := range records {
		if r == nil {
			continue
		}
		if first, ok := seen[r.Address]; ok {
			return nil, fmt.Errorf("%w: %s at records %d and %d", ErrDuplicateRecord, r.Address.Hex(), first, i)
		}
		seen[r.Address] = i
	}

	leaves, err := leaf.HashRecords(records)
	if err != nil {
		return nil, err
	}

	tree, err := merkle.BuildMerkleTree(leaves, d.buildOptions(d.config.SortLeaves, d.config.DuplicateOdd)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}

	stored := make([]*types.Record, len(records))
	for i, r := range records {
		stored[i] = r.Copy()
	}

	snapshot := &persistence.TreeSnapshot{
		Root:         tree.Root(),
		Label:        label,
		Leaves:       leaves,
		Records:      stored,
		SortLeaves:   tree.SortLeaves(),
		DuplicateOdd: tree.DuplicateOdd(),
		CreatedAt:    d.now().Unix(),
	}
	existing, err := d.store.LoadTreeSnapshot(tree.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to load tree snapshot: %w", err)
	}
	if err := d.store.SaveTreeSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to save tree snapshot: %w", err)
	}
	if err := d.store.SetActiveRoot(tree.Root()); err != nil {
		// only a snapshot this call created is rolled back
		if existing != nil {
			return nil, fmt.Errorf("failed to set active root: %w", err)
		}
		if delErr := d.store.DeleteTreeSnapshot(tree.Root()); delErr != nil {
			d.logger.Sugar().Warnw("Failed to roll back tree snapshot", "root", tree.HexRoot(), "error", delErr)
		}
		return nil, fmt.Errorf("failed to set active root: %w", err)
	}

	d.cache.Add(tree.Root(), &publishedTree{tree: tree, records: stored})

	d.logger.Sugar().Infow("Published allowlist",
		"root", tree.HexRoot(),
		"label", label,
		"records", len(records),
		"depth", tree.Depth(),
	)

	return tree, nil
}

// ActiveRoot returns the root of the most recently published (or activated) tree.
func (d *Distributor) ActiveRoot() (types.Digest, error) {
	return d.store.GetActiveRoot()
}

// Activate makes an already published root the active one.
// The zero digest re-activates the current active root.
func (d *Distributor) Activate(root types.Digest) error {
	root, err := d.resolve(root)
	if err != nil {
		return err
	}
	if _, err := d.load(root); err != nil {
		return err
	}
	return d.store.SetActiveRoot(root)
}

// resolve maps the zero digest to the active root.
func (d *Distributor) resolve(root types.Digest) (types.Digest, error) {
	if !root.IsZero() {
		return root, nil
	}

	active, err := d.store.GetActiveRoot()
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to get active root: %w", err)
	}
	if active.IsZero() {
		return types.Digest{}, fmt.Errorf("%w: no active root", ErrTreeNotFound)
	}
	return active, nil
}

func (d *Distributor) load(root types.Digest) (*publishedTree, error) {
	root, err := d.resolve(root)
	if err != nil {
		return nil, err
	}

	if pt, ok := d.cache.Get(root); ok {
		return pt, nil
	}

	snapshot, err := d.store.LoadTreeSnapshot(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, root.Hex())
	}

	tree, err := merkle.BuildMerkleTree(snapshot.Leaves, d.buildOptions(snapshot.SortLeaves, snapshot.DuplicateOdd)...)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild tree %s: %w", root.Hex(), err)
	}
	if tree.Root() != snapshot.Root {
		return nil, fmt.Errorf("%w: stored %s, rebuilt %s", ErrSnapshotMismatch, snapshot.Root.Hex(), tree.HexRoot())
	}

	pt := &publishedTree{tree: tree, records: snapshot.Records}
	d.cache.Add(root, pt)

	d.logger.Sugar().Debugw("Rebuilt tree from snapshot", "root", root.Hex(), "leaves", tree.LeafCount())
	return pt, nil
}

// Tree returns the published tree for root. The zero digest selects the active root.
func (d *Distributor) Tree(root types.Digest) (*merkle.MerkleTree, error) {
	pt, err := d.load(root)
	if err != nil {
		return nil, err
	}
	return pt.tree, nil
}

// ProveRecord returns the claim for a record in the tree identified by root.
func (d *Distributor) ProveRecord(root types.Digest, record *types.Record) (*Claim, error) {
	pt, err := d.load(root)
	if err != nil {
		return nil, err
	}
	return proveRecord(pt.tree, record)
}

func proveRecord(tree *merkle.MerkleTree, record *types.Record) (*Claim, error) {
	digest, err := leaf.HashRecord(record)
	if err != nil {
		return nil, err
	}

	proof, err := tree.GenerateProof(digest)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", record, err)
	}

	return &Claim{
		Root:      tree.Root(),
		Record:    record.Copy(),
		LeafIndex: proof.LeafIndex,
		Leaf:      proof.Leaf,
		Proof:     proof.Proof,
	}, nil
}

// ProveAll returns a claim for every record the tree was published from, in publish order.
func (d *Distributor) ProveAll(root types.Digest) ([]*Claim, error) {
	pt, err := d.load(root)
	if err != nil {
		return nil, err
	}

	claims := make([]*Claim, 0, len(pt.records))
	for _, r := range pt.records {
		claim, err := proveRecord(pt.tree, r)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// VerifyClaim reports whether the claim proves its record against a published root.
func (d *Distributor) VerifyClaim(c *Claim) bool {
	if !c.Verify() {
		return false
	}

	snapshot, err := d.store.LoadTreeSnapshot(c.Root)
	if err != nil {
		d.logger.Sugar().Warnw("Failed to load snapshot while verifying claim", "root", c.Root.Hex(), "error", err)
		return false
	}
	return snapshot != nil
}

// Snapshots lists every published tree, oldest first.
func (d *Distributor) Snapshots() ([]*persistence.TreeSnapshot, error) {
	return d.store.ListTreeSnapshots()
}

// Retire deletes a published tree. Retiring the active root clears it.
// The zero digest selects the active root.
func (d *Distributor) Retire(root types.Digest) error {
	root, err := d.resolve(root)
	if err != nil {
		return err
	}

	snapshot, err := d.store.LoadTreeSnapshot(root)
	if err != nil {
		return fmt.Errorf("failed to load tree snapshot: %w", err)
	}
	if snapshot == nil {
		return fmt.Errorf("%w: %s", ErrTreeNotFound, root.Hex())
	}

	active, err := d.store.GetActiveRoot()
	if err != nil {
		return fmt.Errorf("failed to get active root: %w", err)
	}

	if err := d.store.DeleteTreeSnapshot(root); err != nil {
		return fmt.Errorf("failed to delete tree snapshot: %w", err)
	}
	d.cache.Remove(root)

	if active == root {
		if err := d.store.SetActiveRoot(types.Digest{}); err != nil {
			return fmt.Errorf("failed to clear active root: %w", err)
		}
	}

	d.logger.Sugar().Infow("Retired allowlist", "root", root.Hex())
	return nil
}
