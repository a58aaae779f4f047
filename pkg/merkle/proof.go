package merkle

import (
	"fmt"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// GenerateProof creates a merkle proof for the given leaf digest.
// Returns ErrLeafNotFound if the digest is not in layer 0.
func (mt *MerkleTree) GenerateProof(leaf types.Digest) (*MerkleProof, error) {
	index, ok := mt.LeafIndex(leaf)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeafNotFound, leaf.Hex())
	}
	return mt.GenerateProofByIndex(index)
}

// GenerateProofByIndex creates a merkle proof for the leaf at the given index of layer 0.
func (mt *MerkleTree) GenerateProofByIndex(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.layers[0]) {
		return nil, fmt.Errorf("%w: leaf index %d out of bounds (tree has %d leaves)",
			ErrLeafNotFound, leafIndex, len(mt.layers[0]))
	}

	proof := make(Proof, 0, mt.Depth())
	index := leafIndex

	for level := 0; level < len(mt.layers)-1; level++ {
		layer := mt.layers[level]

		switch {
		case index%2 == 1:
			proof = append(proof, ProofNode{Data: layer[index-1], Position: types.SideLeft})
		case index+1 < len(layer):
			proof = append(proof, ProofNode{Data: layer[index+1], Position: types.SideRight})
		case mt.duplicateOdd:
			proof = append(proof, ProofNode{Data: layer[index], Position: types.SideRight})
		}
		// an unpaired node moves up without a proof entry

		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.layers[0][leafIndex],
		Proof:     proof,
	}, nil
}

// GenerateAllProofs returns one proof per leaf, in layer 0 order.
func (mt *MerkleTree) GenerateAllProofs() []*MerkleProof {
	proofs := make([]*MerkleProof, len(mt.layers[0]))
	for i := range mt.layers[0] {
		// index is always in range here
		proofs[i], _ = mt.GenerateProofByIndex(i)
	}
	return proofs
}

// VerifyProof recomputes the root from a leaf and its proof and compares it to root.
// It never fails: malformed proofs, including unknown sides, just return false.
func VerifyProof(leaf types.Digest, proof Proof, root types.Digest) bool {
	current := leaf
	for _, node := range proof {
		switch node.Position {
		case types.SideLeft:
			current = hashPair(node.Data, current)
		case types.SideRight:
			current = hashPair(current, node.Data)
		default:
			return false
		}
	}
	return current == root
}

// Verify checks the proof against root.
func (mp *MerkleProof) Verify(root types.Digest) bool {
	if mp == nil {
		return false
	}
	return VerifyProof(mp.Leaf, mp.Proof, root)
}

// Hashes returns the sibling digests without their sides. This is the form a
// Solidity verifier using sorted pairs expects.
func (p Proof) Hashes() []types.Digest {
	hashes := make([]types.Digest, len(p))
	for i, node := range p {
		hashes[i] = node.Data
	}
	return hashes
}

// Hex returns the sibling digests as 0x-prefixed hex strings.
func (p Proof) Hex() []string {
	out := make([]string, len(p))
	for i, node := range p {
		out[i] = node.Data.Hex()
	}
	return out
}

// ProofFromHashes rebuilds a Proof from bare sibling digests. Sides are
// reconstructed as RIGHT, which verifies identically because pairs are sorted
// before hashing.
func ProofFromHashes(hashes []types.Digest) Proof {
	proof := make(Proof, len(hashes))
	for i, h := range hashes {
		proof[i] = ProofNode{Data: h, Position: types.SideRight}
	}
	return proof
}
