package distributor

import (
	"fmt"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/leaf"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/util"
)

// Claim is everything a recipient needs to redeem an allowlist entry on chain.
type Claim struct {
	Root      types.Digest  `json:"root"`
	Record    *types.Record `json:"record"`
	LeafIndex int           `json:"leafIndex"`
	Leaf      types.Digest  `json:"leaf"`
	Proof     merkle.Proof  `json:"proof"`
}

// Verify recomputes the leaf from the record and checks the proof against the root.
func (c *Claim) Verify() bool {
	if c == nil || c.Record == nil {
		return false
	}

	digest, err := leaf.HashRecord(c.Record)
	if err != nil || digest != c.Leaf {
		return false
	}

	return merkle.VerifyProof(c.Leaf, c.Proof, c.Root)
}

// Calldata ABI-encodes the claim as (address, uint256, bytes32[]).
func (c *Claim) Calldata() ([]byte, error) {
	if c == nil || c.Record == nil {
		return nil, fmt.Errorf("claim has no record")
	}
	return util.EncodeClaim(c.Record.Address, c.Record.Quantity, c.Proof.Hashes())
}
