package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-allowlist-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-allowlist-go/pkg/types"
)

// Key layout in Redis
const (
	keyPrefixSnapshot    = "allowlist:snapshot:"
	keyActiveRoot        = "allowlist:active:root"
	keySchemaVersion     = "allowlist:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so snapshot roots are tracked in a set.
	keySetSnapshots = "allowlist:snapshots:index"
)

const operationTimeout = 5 * time.Second

var _ persistence.ITreePersistence = (*RedisPersistence)(nil)

// RedisPersistence stores published trees in Redis so that several
// distributor replicas can serve the same set of roots.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "drop-a:" gives keys like
	// "drop-a:allowlist:snapshot:0x...". Used to share one Redis between deployments.
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and initializes the schema marker.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) snapshotKey(rootHex string) string {
	return r.prefixKey(keyPrefixSnapshot + rootHex)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveTreeSnapshot stores the snapshot and adds its root to the index set atomically.
func (r *RedisPersistence) SaveTreeSnapshot(snapshot *persistence.TreeSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil TreeSnapshot")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalTreeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal tree snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	rootHex := snapshot.Root.Hex()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.snapshotKey(rootHex), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetSnapshots), rootHex)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save tree snapshot: %w", err)
	}

	r.logger.Sugar().Debugw("Saved tree snapshot", "root", rootHex, "leaves", len(snapshot.Leaves))
	return nil
}

// LoadTreeSnapshot retrieves a tree snapshot by root.
func (r *RedisPersistence) LoadTreeSnapshot(root types.Digest) (*persistence.TreeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.snapshotKey(root.Hex())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree snapshot %s: %w", root.Hex(), err)
	}

	return persistence.UnmarshalTreeSnapshot(data)
}

// ListTreeSnapshots returns all indexed snapshots sorted by creation time.
// Index entries whose snapshot has disappeared are pruned.
func (r *RedisPersistence) ListTreeSnapshots() ([]*persistence.TreeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetSnapshots)
	roots, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot roots: %w", err)
	}

	snapshots := make([]*persistence.TreeSnapshot, 0, len(roots))
	if len(roots) == 0 {
		return snapshots, nil
	}

	keys := make([]string, len(roots))
	for i, root := range roots {
		keys[i] = r.snapshotKey(root)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tree snapshots: %w", err)
	}

	for i, val := range values {
		if val == nil {
			if err := r.client.SRem(ctx, indexKey, roots[i]).Err(); err != nil {
				r.logger.Sugar().Warnw("Failed to prune stale snapshot index entry",
					"root", roots[i], "error", err)
			}
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for tree snapshot", "key", keys[i])
			continue
		}

		snapshot, err := persistence.UnmarshalTreeSnapshot([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal tree snapshot, skipping",
				"key", keys[i], "error", err)
			continue
		}

		snapshots = append(snapshots, snapshot)
	}

	persistence.SortSnapshots(snapshots)
	return snapshots, nil
}

// DeleteTreeSnapshot removes the snapshot and its index entry.
func (r *RedisPersistence) DeleteTreeSnapshot(root types.Digest) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	rootHex := root.Hex()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.snapshotKey(rootHex))
	pipe.SRem(ctx, r.prefixKey(keySetSnapshots), rootHex)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete tree snapshot: %w", err)
	}
	return nil
}

// SetActiveRoot stores the active root. The zero digest clears it.
func (r *RedisPersistence) SetActiveRoot(root types.Digest) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	key := r.prefixKey(keyActiveRoot)
	var err error
	if root.IsZero() {
		err = r.client.Del(ctx, key).Err()
	} else {
		err = r.client.Set(ctx, key, root.Hex(), 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set active root: %w", err)
	}
	return nil
}

// GetActiveRoot retrieves the active root, or the zero digest if none is set.
func (r *RedisPersistence) GetActiveRoot() (types.Digest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return types.Digest{}, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(keyActiveRoot)).Result()
	if errors.Is(err, redis.Nil) {
		return types.Digest{}, nil
	}
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to get active root: %w", err)
	}

	root, err := types.HexToDigest(val)
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to parse active root: %w", err)
	}
	return root, nil
}

// Close shuts down the persistence layer. Safe to call more than once.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck pings Redis and confirms the schema marker is present.
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
