package merkle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

var (
	ErrEmptyInput   = errors.New("cannot build merkle tree from empty leaf list")
	ErrLeafNotFound = errors.New("leaf not found in merkle tree")
)

// minPairsPerWorker keeps small layers on a single goroutine.
const minPairsPerWorker = 64

// BuildMerkleTree creates a binary merkle tree from leaf digests.
//
// By default the leaves are sorted ascending so that the same set of leaves
// always yields the same root, whatever order the caller supplies them in.
// Every parent is keccak256(min(a, b) || max(a, b)). If a layer has an odd
// number of nodes the last one is carried up unchanged (not duplicated) unless
// WithDuplicateOdd is set.
func BuildMerkleTree(leaves []types.Digest, opts ...Option) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	var layer []types.Digest
	if o.sortLeaves {
		layer = types.SortDigests(leaves)
	} else {
		layer = make([]types.Digest, len(leaves))
		copy(layer, leaves)
	}

	layers := [][]types.Digest{layer}
	for len(layer) > 1 {
		next, err := buildLayer(layer, o)
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %d: %w", len(layers), err)
		}
		layers = append(layers, next)
		layer = next
	}

	index := make(map[types.Digest]int, len(layers[0]))
	for i, leaf := range layers[0] {
		if _, exists := index[leaf]; !exists {
			index[leaf] = i
		}
	}

	tree := &MerkleTree{
		layers:       layers,
		root:         layer[0],
		index:        index,
		sortLeaves:   o.sortLeaves,
		duplicateOdd: o.duplicateOdd,
	}

	o.logger.Sugar().Debugw("Built merkle tree",
		"leaves", len(leaves),
		"layers", len(layers),
		"root", tree.root.Hex(),
	)

	return tree, nil
}

// buildLayer hashes one layer into the next. Workers only ever write disjoint
// ranges of next, and the caller does not start the following layer until
// Wait has returned.
func buildLayer(layer []types.Digest, o *buildOptions) ([]types.Digest, error) {
	next := make([]types.Digest, (len(layer)+1)/2)

	workers := o.parallelism
	if maxWorkers := (len(next) + minPairsPerWorker - 1) / minPairsPerWorker; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		hashRange(layer, next, 0, len(next), o.duplicateOdd)
		return next, nil
	}

	chunk := (len(next) + workers - 1) / workers
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for start := 0; start < len(next); start += chunk {
		end := min(start+chunk, len(next))
		g.Go(func() error {
			hashRange(layer, next, start, end, o.duplicateOdd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

func hashRange(layer, next []types.Digest, from, to int, duplicateOdd bool) {
	for j := from; j < to; j++ {
		i := 2 * j
		switch {
		case i+1 < len(layer):
			next[j] = hashPair(layer[i], layer[i+1])
		case duplicateOdd:
			next[j] = hashPair(layer[i], layer[i])
		default:
			next[j] = layer[i]
		}
	}
}

// hashPair computes keccak256(min(a,b) || max(a,b)) for two 32-byte hashes.
func hashPair(a, b types.Digest) types.Digest {
	if b.Compare(a) < 0 {
		a, b = b, a
	}
	data := make([]byte, 2*types.DigestLength)
	copy(data[:types.DigestLength], a[:])
	copy(data[types.DigestLength:], b[:])

	return types.Digest(crypto.Keccak256Hash(data))
}

// Root returns the single digest of the top layer.
func (mt *MerkleTree) Root() types.Digest {
	return mt.root
}

func (mt *MerkleTree) HexRoot() string {
	return mt.root.Hex()
}

// Leaves returns a copy of layer 0.
func (mt *MerkleTree) Leaves() []types.Digest {
	leaves := make([]types.Digest, len(mt.layers[0]))
	copy(leaves, mt.layers[0])
	return leaves
}

func (mt *MerkleTree) LeafCount() int {
	return len(mt.layers[0])
}

// Layers returns a copy of every layer, leaves first.
func (mt *MerkleTree) Layers() [][]types.Digest {
	out := make([][]types.Digest, len(mt.layers))
	for i, layer := range mt.layers {
		out[i] = make([]types.Digest, len(layer))
		copy(out[i], layer)
	}
	return out
}

// Depth is the number of layers above the leaves.
func (mt *MerkleTree) Depth() int {
	return len(mt.layers) - 1
}

// LeafIndex returns the position of leaf in layer 0. For duplicate leaves the first position wins.
func (mt *MerkleTree) LeafIndex(leaf types.Digest) (int, bool) {
	i, ok := mt.index[leaf]
	return i, ok
}

func (mt *MerkleTree) SortLeaves() bool {
	return mt.sortLeaves
}

func (mt *MerkleTree) DuplicateOdd() bool {
	return mt.duplicateOdd
}

// String renders the tree root first, one indented line per node.
func (mt *MerkleTree) String() string {
	var sb strings.Builder
	mt.writeNode(&sb, len(mt.layers)-1, 0, "")
	return sb.String()
}

func (mt *MerkleTree) writeNode(sb *strings.Builder, level, index int, indent string) {
	sb.WriteString(indent)
	sb.WriteString(mt.layers[level][index].Hex())
	sb.WriteString("\n")
	if level == 0 {
		return
	}

	// an unpaired node has a single child: itself one layer down
	left := 2 * index
	right := left + 1
	mt.writeNode(sb, level-1, left, indent+"  ")
	if right < len(mt.layers[level-1]) {
		mt.writeNode(sb, level-1, right, indent+"  ")
	}
}
