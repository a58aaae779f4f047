package merkle

import (
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// MerkleTree represents a binary merkle tree built from leaf digests.
// The tree uses keccak256 hashing for Solidity compatibility and is immutable
// once built, so any number of goroutines may generate proofs from it.
type MerkleTree struct {
	// layers stores all tree levels for proof generation
	// layers[0] = leaves, layers[len-1] = [root]
	layers [][]types.Digest

	root types.Digest

	// index maps a leaf digest to its first position in layers[0]
	index map[types.Digest]int

	sortLeaves   bool
	duplicateOdd bool
}

// ProofNode is one sibling on the path from a leaf to the root.
type ProofNode struct {
	// Data is the sibling digest
	Data types.Digest `json:"data"`

	// Position is the side the sibling occupies relative to the path node
	Position types.Side `json:"position"`
}

// Proof is the ordered list of siblings from the leaf layer up to the root.
// Layers where the path node had no sibling contribute no entry.
type Proof []ProofNode

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the index of the leaf in layer 0 (after leaf sorting, if enabled)
	LeafIndex int `json:"leafIndex"`

	// Leaf is the digest being proven
	Leaf types.Digest `json:"leaf"`

	// Proof contains the sibling hashes from leaf to root
	// Proof[0] is nearest the leaf, Proof[len-1] is nearest the root
	Proof Proof `json:"proof"`
}
