// Package leaf turns allowlist records into merkle leaves.
//
// A record is encoded as abi.encodePacked(address, uint256): the 20 raw address
// bytes followed by the quantity as a 32-byte big-endian word. The leaf is the
// keccak256 of that encoding, which is what a Solidity verifier recomputes from
// msg.sender and the claimed amount.
package leaf

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// ErrInvalidRecord is returned when a field does not fit its declared width.
var ErrInvalidRecord = errors.New("invalid record")

// RecordSchema is the packed layout of a types.Record.
var RecordSchema = []string{"address", "uint256"}

// EncodedRecordLength is the size of an encoded record: 20 address bytes + 32 quantity bytes.
const EncodedRecordLength = 20 + 32

// EncodeRecord returns the canonical packed encoding of a record.
func EncodeRecord(r *types.Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if r.Quantity == nil {
		return nil, fmt.Errorf("%w: record %s has no quantity", ErrInvalidRecord, r.Address.Hex())
	}
	return SolidityPacked(RecordSchema, []interface{}{r.Address, r.Quantity})
}

// HashRecord returns keccak256(EncodeRecord(r)).
func HashRecord(r *types.Record) (types.Digest, error) {
	data, err := EncodeRecord(r)
	if err != nil {
		return types.Digest{}, err
	}
	return types.Digest(crypto.Keccak256Hash(data)), nil
}

// HashRecords hashes every record in order. The first invalid record aborts the batch.
func HashRecords(records []*types.Record) ([]types.Digest, error) {
	leaves := make([]types.Digest, len(records))
	for i, r := range records {
		d, err := HashRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		leaves[i] = d
	}
	return leaves, nil
}
