package testutil

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/internal/tests"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/logger"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence/badger"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence/memory"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence/redis"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// NewTestLogger creates a production logger for tests, failing the test on error
func NewTestLogger(t testing.TB) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l
}

// CreateTestRecords returns the first n records of the reference allowlist fixture
func CreateTestRecords(t testing.TB, n int) []*types.Record {
	projectRoot := tests.GetProjectRootPath()
	fixture, err := tests.ReadAllowlistFixture(projectRoot)
	if err != nil {
		t.Fatalf("Failed to read allowlist fixture: %v", err)
	}
	if n > len(fixture.Records) {
		t.Fatalf("Cannot create more than %d records (limited by fixture)", len(fixture.Records))
	}
	return fixture.Records[:n]
}

// CreateRandomRecords creates n records with distinct pseudo-random addresses.
// The same seed always yields the same records.
func CreateRandomRecords(n int, seed int64) []*types.Record {
	rng := rand.New(rand.NewSource(seed))
	seen := make(map[common.Address]struct{}, n)

	records := make([]*types.Record, 0, n)
	for len(records) < n {
		var addr common.Address
		_, _ = rng.Read(addr[:])
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		records = append(records, &types.Record{
			Address:  addr,
			Quantity: big.NewInt(rng.Int63n(1000) + 1),
		})
	}
	return records
}

// NewTestStores returns one of each persistence backend, closed when the test ends.
// Redis is served by an in-process miniredis.
func NewTestStores(t *testing.T) map[string]persistence.ITreePersistence {
	t.Helper()
	l := NewTestLogger(t)

	bp, err := badger.NewBadgerPersistence(t.TempDir(), l)
	if err != nil {
		t.Fatalf("Failed to create badger persistence: %v", err)
	}

	mr := miniredis.RunT(t)
	rp, err := redis.NewRedisPersistence(&redis.RedisConfig{Address: mr.Addr()}, l)
	if err != nil {
		t.Fatalf("Failed to create redis persistence: %v", err)
	}

	stores := map[string]persistence.ITreePersistence{
		"memory": memory.NewMemoryPersistence(l),
		"badger": bp,
		"redis":  rp,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}
