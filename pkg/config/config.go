package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// Environment variable names for the allowlist CLI
const (
	EnvAllowlistPersistenceType = "ALLOWLIST_PERSISTENCE_TYPE"
	EnvAllowlistDataPath        = "ALLOWLIST_DATA_PATH"
	EnvAllowlistRedisAddress    = "ALLOWLIST_REDIS_ADDRESS"
	EnvAllowlistRedisPassword   = "ALLOWLIST_REDIS_PASSWORD"
	EnvAllowlistRedisDB         = "ALLOWLIST_REDIS_DB"
	EnvAllowlistRedisKeyPrefix  = "ALLOWLIST_REDIS_KEY_PREFIX"
	EnvAllowlistParallelism     = "ALLOWLIST_PARALLELISM"
	EnvAllowlistCacheSize       = "ALLOWLIST_CACHE_SIZE"
	EnvAllowlistSortLeaves      = "ALLOWLIST_SORT_LEAVES"
	EnvAllowlistDuplicateOdd    = "ALLOWLIST_DUPLICATE_ODD"
	EnvAllowlistDebug           = "ALLOWLIST_DEBUG"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// GetSupportedPersistenceTypes returns all supported persistence backends
func GetSupportedPersistenceTypes() []PersistenceType {
	return []PersistenceType{
		PersistenceTypeMemory,
		PersistenceTypeBadger,
		PersistenceTypeRedis,
	}
}

// GetSupportedPersistenceTypesString returns supported backends for CLI help
func GetSupportedPersistenceTypesString() string {
	names := make([]string, 0, 3)
	for _, p := range GetSupportedPersistenceTypes() {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}

const (
	DefaultDataPath  = "./data/allowlist"
	DefaultCacheSize = 16
	maxRedisDB       = 15
)

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// AllowlistConfig is the complete configuration of a distributor instance
type AllowlistConfig struct {
	// Storage
	PersistenceType PersistenceType `json:"persistenceType" yaml:"persistenceType"`
	DataPath        string          `json:"dataPath" yaml:"dataPath"` // badger only
	Redis           RedisConfig     `json:"redis" yaml:"redis"`

	// Tree construction
	SortLeaves   bool `json:"sortLeaves" yaml:"sortLeaves"`
	DuplicateOdd bool `json:"duplicateOdd" yaml:"duplicateOdd"`
	Parallelism  int  `json:"parallelism" yaml:"parallelism"` // 0 means GOMAXPROCS

	// Number of rebuilt trees kept in memory
	CacheSize int `json:"cacheSize" yaml:"cacheSize"`

	Debug bool `json:"debug" yaml:"debug"`
}

// NewDefaultAllowlistConfig returns an in-memory configuration with sorted leaves
func NewDefaultAllowlistConfig() *AllowlistConfig {
	return &AllowlistConfig{
		PersistenceType: PersistenceTypeMemory,
		DataPath:        DefaultDataPath,
		SortLeaves:      true,
		Parallelism:     1,
		CacheSize:       DefaultCacheSize,
	}
}

// Validate validates the allowlist configuration
func (c *AllowlistConfig) Validate() error {
	var allErrors field.ErrorList

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		redisPath := field.NewPath("redis")
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(redisPath.Child("address"), "address is required for redis persistence"))
		}
		if c.Redis.DB < 0 || c.Redis.DB > maxRedisDB {
			allErrors = append(allErrors, field.Invalid(redisPath.Child("db"), c.Redis.DB, fmt.Sprintf("must be between 0-%d", maxRedisDB)))
		}
	case "":
		allErrors = append(allErrors, field.Required(field.NewPath("persistenceType"), "persistenceType is required"))
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType, []string{
			PersistenceTypeMemory.String(),
			PersistenceTypeBadger.String(),
			PersistenceTypeRedis.String(),
		}))
	}

	if c.Parallelism < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("parallelism"), c.Parallelism, "must not be negative"))
	}
	if c.CacheSize < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("cacheSize"), c.CacheSize, "must be at least 1"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ClaimRequest identifies one record to prove against a published root
type ClaimRequest struct {
	Root     string `json:"root"`
	Address  string `json:"address"`
	Quantity string `json:"quantity"`
}

// Validate checks the request's fields and returns the parsed values
func (cr *ClaimRequest) Validate() (types.Digest, *types.Record, error) {
	var allErrors field.ErrorList

	var root types.Digest
	if cr.Root != "" {
		parsed, err := types.HexToDigest(cr.Root)
		if err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("root"), cr.Root, err.Error()))
		}
		root = parsed
	}

	if cr.Address == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("address"), "address is required"))
	} else if !common.IsHexAddress(cr.Address) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("address"), cr.Address, "not a hex address"))
	}

	var quantity *big.Int
	if cr.Quantity == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("quantity"), "quantity is required"))
	} else {
		q, ok := math.ParseBig256(cr.Quantity)
		if !ok || q.Sign() < 0 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("quantity"), cr.Quantity, "must be a uint256"))
		}
		quantity = q
	}

	if len(allErrors) > 0 {
		return types.Digest{}, nil, allErrors.ToAggregate()
	}

	return root, &types.Record{
		Address:  common.HexToAddress(cr.Address),
		Quantity: quantity,
	}, nil
}
