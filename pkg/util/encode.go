package util

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

func claimArguments() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	proofType, _ := abi.NewType("bytes32[]", "", nil)

	return abi.Arguments{
		{Name: "account", Type: addressType},
		{Name: "quantity", Type: uint256Type},
		{Name: "proof", Type: proofType},
	}
}

// EncodeClaim ABI-encodes (address account, uint256 quantity, bytes32[] proof),
// the argument tuple of a typical allowlist claim function.
func EncodeClaim(account common.Address, quantity *big.Int, proof []types.Digest) ([]byte, error) {
	if quantity == nil {
		return nil, fmt.Errorf("quantity cannot be nil")
	}

	hashes := make([][32]byte, len(proof))
	for i, p := range proof {
		hashes[i] = p
	}

	encoded, err := claimArguments().Pack(account, quantity, hashes)
	if err != nil {
		return nil, err
	}

	return encoded, nil
}

// DecodeClaim reverses EncodeClaim.
func DecodeClaim(data []byte) (common.Address, *big.Int, []types.Digest, error) {
	out, err := claimArguments().Unpack(data)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("failed to unpack claim: %w", err)
	}
	if len(out) != 3 {
		return common.Address{}, nil, nil, fmt.Errorf("expected 3 claim values, got %d", len(out))
	}

	account, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("unexpected account type %T", out[0])
	}
	quantity, ok := out[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("unexpected quantity type %T", out[1])
	}
	hashes, ok := out[2].([][32]byte)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("unexpected proof type %T", out[2])
	}

	proof := make([]types.Digest, len(hashes))
	for i, h := range hashes {
		proof[i] = h
	}

	return account, quantity, proof, nil
}
