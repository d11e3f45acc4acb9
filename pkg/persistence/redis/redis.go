package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/persistence"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixBalance     = "por:balance:"
	keySchemaVersion     = "por:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Sorted set of user IDs (score = user ID) used for ordered listing
	keySetBalances = "por:balances:index"

	operationTimeout = 5 * time.Second
)

// RedisPersistence is a persistence implementation using Redis.
// Suitable for deployments where the balance set is maintained by another service.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IBalancePersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:por:balance:123". If empty, keys use the default "por:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
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

	// Test connection
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

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) balanceKey(userID int64) string {
	return r.prefixKey(keyPrefixBalance + strconv.FormatInt(userID, 10))
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup
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

// SaveBalance persists a user balance
func (r *RedisPersistence) SaveBalance(balance *types.UserBalance) error {
	if balance == nil {
		return fmt.Errorf("cannot save nil UserBalance")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalUserBalance(balance)
	if err != nil {
		return fmt.Errorf("failed to marshal UserBalance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	// Value and index are written in one transaction
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.balanceKey(balance.UserID), data, 0)
	pipe.ZAdd(ctx, r.prefixKey(keySetBalances), redis.Z{
		Score:  float64(balance.UserID),
		Member: strconv.FormatInt(balance.UserID, 10),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save UserBalance: %w", err)
	}

	return nil
}

// LoadBalance retrieves a user balance
func (r *RedisPersistence) LoadBalance(userID int64) (*types.UserBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.balanceKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load UserBalance: %w", err)
	}

	balance, err := persistence.UnmarshalUserBalance(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal UserBalance: %w", err)
	}

	return balance, nil
}

// ListBalances returns all balances sorted by user ID
func (r *RedisPersistence) ListBalances() ([]*types.UserBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetBalances)

	userIDs, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list UserBalance ids: %w", err)
	}

	if len(userIDs) == 0 {
		return []*types.UserBalance{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = r.prefixKey(keyPrefixBalance + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch UserBalances: %w", err)
	}

	balances := make([]*types.UserBalance, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.ZRem(ctx, indexKey, userIDs[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for UserBalance", "key", keys[i])
			continue
		}

		balance, err := persistence.UnmarshalUserBalance([]byte(data))
		if err != nil {
			// A skipped balance would silently change the root, so fail instead
			return nil, fmt.Errorf("failed to unmarshal UserBalance at %s: %w", keys[i], err)
		}

		balances = append(balances, balance)
	}

	// Scores are float64; re-sort to keep exact int64 order
	persistence.SortBalances(balances)

	return balances, nil
}

// DeleteBalance removes a user balance
func (r *RedisPersistence) DeleteBalance(userID int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.balanceKey(userID))
	pipe.ZRem(ctx, r.prefixKey(keySetBalances), strconv.FormatInt(userID, 10))

	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis client
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	return nil
}
