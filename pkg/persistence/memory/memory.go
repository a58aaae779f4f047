package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

var _ persistence.ITreePersistence = (*MemoryPersistence)(nil)

// MemoryPersistence is an in-memory implementation of ITreePersistence.
// This implementation is intended for TESTING and one-shot CLI runs.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Snapshot storage: root -> TreeSnapshot
	snapshots map[types.Digest]*persistence.TreeSnapshot

	activeRoot types.Digest

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Logs a warning since published trees do not survive a restart.
func NewMemoryPersistence(l *zap.Logger) *MemoryPersistence {
	if l == nil {
		l = zap.NewNop()
	}
	l.Sugar().Warnw("Using in-memory persistence, all published trees will be lost on restart",
		"hint", "set ALLOWLIST_PERSISTENCE_TYPE=badger or redis to keep them")

	return &MemoryPersistence{
		snapshots: make(map[types.Digest]*persistence.TreeSnapshot),
	}
}

// SaveTreeSnapshot persists a tree snapshot.
func (m *MemoryPersistence) SaveTreeSnapshot(snapshot *persistence.TreeSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil TreeSnapshot")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.snapshots[snapshot.Root] = snapshot.Copy()
	return nil
}

// LoadTreeSnapshot retrieves a tree snapshot by root.
func (m *MemoryPersistence) LoadTreeSnapshot(root types.Digest) (*persistence.TreeSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	snapshot, exists := m.snapshots[root]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return snapshot.Copy(), nil
}

// ListTreeSnapshots returns all snapshots sorted by creation time.
func (m *MemoryPersistence) ListTreeSnapshots() ([]*persistence.TreeSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*persistence.TreeSnapshot, 0, len(m.snapshots))
	for _, snapshot := range m.snapshots {
		result = append(result, snapshot.Copy())
	}
	persistence.SortSnapshots(result)

	return result, nil
}

// DeleteTreeSnapshot removes a tree snapshot.
func (m *MemoryPersistence) DeleteTreeSnapshot(root types.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.snapshots, root)
	return nil
}

// SetActiveRoot stores the active root.
func (m *MemoryPersistence) SetActiveRoot(root types.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.activeRoot = root
	return nil
}

// GetActiveRoot retrieves the active root.
func (m *MemoryPersistence) GetActiveRoot() (types.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return types.Digest{}, persistence.ErrClosed
	}

	return m.activeRoot, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
