package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixSnapshot    = "snapshot:"
	keyActiveRoot        = "active:root"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

const gcInterval = 5 * time.Minute

var _ persistence.ITreePersistence = (*BadgerPersistence)(nil)

// BadgerPersistence is a disk-backed persistence implementation using Badger.
// Published trees survive restarts of the distributor.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) a Badger database at dataPath.
// SyncWrites is enabled and a background goroutine runs value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

func snapshotKey(root types.Digest) []byte {
	return []byte(keyPrefixSnapshot + root.Hex())
}

// initSchema writes the schema version on first open and rejects unknown versions afterwards.
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// SaveTreeSnapshot persists a tree snapshot keyed by its root.
func (b *BadgerPersistence) SaveTreeSnapshot(snapshot *persistence.TreeSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil TreeSnapshot")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalTreeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal tree snapshot: %w", err)
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(snapshotKey(snapshot.Root), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save tree snapshot: %w", err)
	}

	b.logger.Sugar().Debugw("Saved tree snapshot", "root", snapshot.Root.Hex(), "leaves", len(snapshot.Leaves))
	return nil
}

// LoadTreeSnapshot retrieves a tree snapshot by root.
func (b *BadgerPersistence) LoadTreeSnapshot(root types.Digest) (*persistence.TreeSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var snapshot *persistence.TreeSnapshot
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(snapshotKey(root))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			snapshot, unmarshalErr = persistence.UnmarshalTreeSnapshot(val)
			return unmarshalErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tree snapshot %s: %w", root.Hex(), err)
	}

	return snapshot, nil
}

// ListTreeSnapshots returns all snapshots sorted by creation time.
func (b *BadgerPersistence) ListTreeSnapshots() ([]*persistence.TreeSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	snapshots := make([]*persistence.TreeSnapshot, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixSnapshot)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				snapshot, err := persistence.UnmarshalTreeSnapshot(val)
				if err != nil {
					return fmt.Errorf("failed to unmarshal snapshot at key %s: %w", item.Key(), err)
				}
				snapshots = append(snapshots, snapshot)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tree snapshots: %w", err)
	}

	persistence.SortSnapshots(snapshots)
	return snapshots, nil
}

// DeleteTreeSnapshot removes a tree snapshot.
func (b *BadgerPersistence) DeleteTreeSnapshot(root types.Digest) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(snapshotKey(root))
	})
	if err != nil {
		return fmt.Errorf("failed to delete tree snapshot: %w", err)
	}

	return nil
}

// SetActiveRoot stores the active root. The zero digest clears it.
func (b *BadgerPersistence) SetActiveRoot(root types.Digest) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		if root.IsZero() {
			return txn.Delete([]byte(keyActiveRoot))
		}
		return txn.Set([]byte(keyActiveRoot), root.Bytes())
	})
	if err != nil {
		return fmt.Errorf("failed to set active root: %w", err)
	}

	return nil
}

// GetActiveRoot retrieves the active root, or the zero digest if none is set.
func (b *BadgerPersistence) GetActiveRoot() (types.Digest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return types.Digest{}, persistence.ErrClosed
	}

	var root types.Digest
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyActiveRoot))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var parseErr error
			root, parseErr = types.BytesToDigest(val)
			return parseErr
		})
	})
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to get active root: %w", err)
	}

	return root, nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck reads the schema key to confirm the database is accessible.
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
