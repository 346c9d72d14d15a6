package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:v1:"

// ErrInvalidToken indicates an unknown or expired session token.
var ErrInvalidToken = errors.New("invalid or expired session")

// Store issues and validates opaque bearer tokens. The ledger core never
// touches session lifecycle; it only sees the resolved user id.
type Store interface {
	Create(ctx context.Context, userID int64) (string, error)
	Validate(ctx context.Context, token string) (int64, error)
	Destroy(ctx context.Context, token string) error
}

// RedisStore keeps sessions in Redis with a TTL, so expiry is owned by the
// store rather than by in-process state.
type RedisStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(cache *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{cache: cache, ttl: ttl}
}

// Create issues a fresh opaque token for the user.
func (s *RedisStore) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.cache.Set(ctx, keyPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to its user id.
func (s *RedisStore) Validate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	val, err := s.cache.Get(ctx, keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("session lookup: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// Destroy invalidates a token. Destroying an unknown token is a no-op.
func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	return s.cache.Del(ctx, keyPrefix+token).Err()
}
