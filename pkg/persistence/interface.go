package persistence

import "github.com/Layr-Labs/merkle-allowlist-go/pkg/types"

// ITreePersistence defines the interface for persisting published allowlist trees.
// All implementations must be thread-safe as the distributor serves proofs concurrently.
//
// The interface supports:
// - Tree snapshot management (save, load, list, delete)
// - Active root tracking (which tree is currently served by default)
// - Lifecycle management (close, health check)
type ITreePersistence interface {
	// Tree Snapshot Management

	// SaveTreeSnapshot persists a snapshot indexed by its root.
	// Returns error only on storage failure, not if the snapshot already exists (idempotent).
	SaveTreeSnapshot(snapshot *TreeSnapshot) error

	// LoadTreeSnapshot retrieves a snapshot by root.
	// Returns nil if the snapshot doesn't exist, error only on storage failure.
	LoadTreeSnapshot(root types.Digest) (*TreeSnapshot, error)

	// ListTreeSnapshots returns all persisted snapshots sorted by CreatedAt, then root.
	// Returns empty slice if no snapshots exist, error only on storage failure.
	ListTreeSnapshots() ([]*TreeSnapshot, error)

	// DeleteTreeSnapshot removes a snapshot by root.
	// Idempotent - returns nil if the snapshot doesn't exist.
	DeleteTreeSnapshot(root types.Digest) error

	// Active Root Tracking

	// SetActiveRoot stores which tree is currently active.
	// Setting the zero digest clears the active root.
	SetActiveRoot(root types.Digest) error

	// GetActiveRoot returns the active root.
	// Returns the zero digest if no active root is set.
	GetActiveRoot() (types.Digest, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
