package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Record is one allowlist entry: an account and the quantity it may claim.
// Records are owned by the caller and only read while leaves are encoded.
type Record struct {
	Address  common.Address `json:"address"`
	Quantity *big.Int       `json:"quantity"`
}

// NewRecord is a convenience constructor for the common uint64 quantity case.
func NewRecord(address common.Address, quantity uint64) *Record {
	return &Record{
		Address:  address,
		Quantity: new(big.Int).SetUint64(quantity),
	}
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", r.Address.Hex(), r.Quantity)
}

// Copy returns a deep copy of the record.
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	c := &Record{Address: r.Address}
	if r.Quantity != nil {
		c.Quantity = new(big.Int).Set(r.Quantity)
	}
	return c
}

// Side is the position a proof sibling occupies relative to the node on the path.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case SideLeft, SideRight:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid side: %d", uint8(s))
	}
}

func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	default:
		return fmt.Errorf("invalid side %q, expected left or right", string(text))
	}
	return nil
}
