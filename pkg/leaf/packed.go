package leaf

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// SolidityKeccak256 hashes values the way Solidity's keccak256(abi.encodePacked(...)) does.
func SolidityKeccak256(schema []string, values []interface{}) (types.Digest, error) {
	packed, err := SolidityPacked(schema, values)
	if err != nil {
		return types.Digest{}, err
	}
	return types.Digest(crypto.Keccak256Hash(packed)), nil
}

// SolidityPacked returns the non-standard packed ABI encoding of values.
//
// Supported types are address, bool, string, bytes, bytesN (1..32), uintN and intN
// (N a multiple of 8 between 8 and 256; uint and int mean 256). Every value is
// written at the exact width of its declared type with no padding between fields.
func SolidityPacked(schema []string, values []interface{}) ([]byte, error) {
	if len(schema) != len(values) {
		return nil, fmt.Errorf("%w: %d types but %d values", ErrInvalidRecord, len(schema), len(values))
	}

	out := make([]byte, 0, 32*len(values))
	for i, typ := range schema {
		b, err := packValue(strings.TrimSpace(typ), values[i])
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, typ, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func packValue(typ string, value interface{}) ([]byte, error) {
	switch {
	case typ == "address":
		addr, err := toAddress(value)
		if err != nil {
			return nil, err
		}
		return addr.Bytes(), nil
	case typ == "bool":
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", ErrInvalidRecord, value)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case typ == "string":
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidRecord, value)
		}
		return []byte(v), nil
	case typ == "bytes":
		return toBytes(value)
	case strings.HasPrefix(typ, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(typ, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidRecord, typ)
		}
		b, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		if len(b) != size {
			return nil, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidRecord, typ, size, len(b))
		}
		return b, nil
	case strings.HasPrefix(typ, "uint"):
		bits, err := intWidth(typ, "uint")
		if err != nil {
			return nil, err
		}
		v, err := toBigInt(value)
		if err != nil {
			return nil, err
		}
		return packUint(v, bits)
	case strings.HasPrefix(typ, "int"):
		bits, err := intWidth(typ, "int")
		if err != nil {
			return nil, err
		}
		v, err := toBigInt(value)
		if err != nil {
			return nil, err
		}
		return packInt(v, bits)
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidRecord, typ)
	}
}

// intWidth parses the bit width of uintN / intN. A bare uint or int is 256 bits.
func intWidth(typ, prefix string) (int, error) {
	suffix := strings.TrimPrefix(typ, prefix)
	if suffix == "" {
		return 256, nil
	}
	bits, err := strconv.Atoi(suffix)
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, fmt.Errorf("%w: unsupported type %q", ErrInvalidRecord, typ)
	}
	return bits, nil
}

func packUint(v *big.Int, bits int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s for uint%d", ErrInvalidRecord, v, bits)
	}
	if v.BitLen() > bits {
		return nil, fmt.Errorf("%w: value %s overflows uint%d", ErrInvalidRecord, v, bits)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: value %s overflows uint256", ErrInvalidRecord, v)
	}
	word := u.Bytes32()
	return word[32-bits/8:], nil
}

func packInt(v *big.Int, bits int) ([]byte, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minValue := new(big.Int).Neg(limit)
	maxValue := new(big.Int).Sub(limit, big.NewInt(1))
	if v.Cmp(minValue) < 0 || v.Cmp(maxValue) > 0 {
		return nil, fmt.Errorf("%w: value %s overflows int%d", ErrInvalidRecord, v, bits)
	}
	// U256 rewrites its argument in place as a two's complement word.
	word := math.U256Bytes(new(big.Int).Set(v))
	return word[32-bits/8:], nil
}

func toAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, fmt.Errorf("%w: nil address", ErrInvalidRecord)
		}
		return *v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidRecord, v)
		}
		return common.HexToAddress(v), nil
	case []byte:
		if len(v) != common.AddressLength {
			return common.Address{}, fmt.Errorf("%w: address requires %d bytes, got %d", ErrInvalidRecord, common.AddressLength, len(v))
		}
		return common.BytesToAddress(v), nil
	default:
		return common.Address{}, fmt.Errorf("%w: expected address, got %T", ErrInvalidRecord, value)
	}
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case types.Digest:
		return v.Bytes(), nil
	case common.Hash:
		return v.Bytes(), nil
	case [32]byte:
		return v[:], nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex bytes %q: %v", ErrInvalidRecord, v, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: expected bytes, got %T", ErrInvalidRecord, value)
	}
}

func toBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidRecord)
		}
		return v, nil
	case *uint256.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrInvalidRecord)
		}
		return v.ToBig(), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case string:
		n, ok := math.ParseBig256(v)
		if !ok {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrInvalidRecord, v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: expected integer, got %T", ErrInvalidRecord, value)
	}
}
