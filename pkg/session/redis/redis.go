package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/session"
)

// Key layout in Redis
const (
	keyPrefixSession = "actionbot:session:"

	// Sessions are short-lived by nature; the TTL is a safety net so an
	// interrupted flow never leaves a key behind forever.
	defaultSessionTTL = 30 * time.Minute
)

// RedisStore is a Redis-backed session store for webhook deployments
// where the process handling consecutive messages of one conversation
// may not be the same.
type RedisStore struct {
	client     *redis.Client
	logger     *zap.Logger
	keyPrefix  string
	sessionTTL time.Duration
	mu         sync.RWMutex
	closed     bool
}

var _ session.Store = (*RedisStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). Prepended to the default "actionbot:" namespace.
	KeyPrefix string
	// SessionTTL overrides the default session expiry.
	SessionTTL time.Duration
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	rs := &RedisStore{
		client:     client,
		logger:     logger,
		keyPrefix:  cfg.KeyPrefix,
		sessionTTL: ttl,
	}

	logger.Sugar().Infow("Redis session store initialized", "address", cfg.Address, "db", cfg.DB, "session_ttl", ttl)
	return rs, nil
}

func (r *RedisStore) sessionKey(userID int64) string {
	return r.keyPrefix + keyPrefixSession + strconv.FormatInt(userID, 10)
}

func (r *RedisStore) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("session store is closed")
	}
	return nil
}

// Create stores a session, overwriting any existing session for the user.
func (r *RedisStore) Create(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return fmt.Errorf("cannot create nil session")
	}
	if err := r.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(sess.UserID), data, r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store session for user %d: %w", sess.UserID, err)
	}
	return nil
}

// Get retrieves the user's session, or nil if none exists.
func (r *RedisStore) Get(ctx context.Context, userID int64) (*session.Session, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for user %d: %w", userID, err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to deserialize session for user %d: %w", userID, err)
	}
	return &sess, nil
}

// Update applies a mutation to the user's session if one exists.
//
// Messages of one conversation are dispatched sequentially per user, so a
// read-modify-write without WATCH is sufficient here.
func (r *RedisStore) Update(ctx context.Context, userID int64, mutate func(*session.Session)) error {
	if mutate == nil {
		return fmt.Errorf("cannot apply nil mutation")
	}

	sess, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil // No session to update is not an error
	}

	mutate(sess)
	return r.Create(ctx, sess)
}

// Destroy removes the user's session.
func (r *RedisStore) Destroy(ctx context.Context, userID int64) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session for user %d: %w", userID, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// HealthCheck verifies Redis connectivity.
func (r *RedisStore) HealthCheck(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
