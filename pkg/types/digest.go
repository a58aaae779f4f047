package types

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DigestLength is the byte length of a keccak256 output.
const DigestLength = 32

// Digest is a 32-byte keccak256 hash. Leaves, internal nodes and roots are all digests.
type Digest [DigestLength]byte

// BytesToDigest copies b into a Digest. b must be exactly DigestLength bytes.
func BytesToDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestLength {
		return d, fmt.Errorf("invalid digest length: expected %d bytes, got %d", DigestLength, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// HexToDigest parses a 64 character hex string, with or without the 0x prefix.
func HexToDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex %q: %w", s, err)
	}
	return BytesToDigest(b)
}

func (d Digest) Bytes() []byte {
	b := make([]byte, DigestLength)
	copy(b, d[:])
	return b
}

// Hex returns the 0x-prefixed lowercase hex form.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Compare orders digests by their big-endian byte value.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return hexutil.Bytes(d[:]).MarshalText()
}

func (d *Digest) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Digest", input, d[:])
}

// SortDigests returns an ascending copy of digests. The input is not modified.
func SortDigests(digests []Digest) []Digest {
	sorted := make([]Digest, len(digests))
	copy(sorted, digests)

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) < 0
	})

	return sorted
}
