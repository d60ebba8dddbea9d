package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRefreshTokenInvalid indicates an unknown, expired or already-rotated
// refresh token.
var ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired")

const refreshKeyPrefix = "refresh_token:"

// redisCommands is the slice of the Redis API the store needs. *redis.Client
// satisfies it; tests substitute an in-memory implementation.
type redisCommands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RefreshStore keeps opaque refresh tokens in Redis. Tokens are single-use:
// every refresh consumes the presented token and issues a replacement, so a
// replayed token fails.
type RefreshStore struct {
	client redisCommands
	ttl    time.Duration
}

// NewRefreshStore builds a store with the given token lifetime.
func NewRefreshStore(client redisCommands, ttl time.Duration) *RefreshStore {
	return &RefreshStore{client: client, ttl: ttl}
}

// Issue creates a new refresh token for the user.
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, refreshKeyPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate consumes the presented token and issues a replacement for the same
// user. GetDel makes consumption atomic: two concurrent refreshes with the
// same token cannot both succeed.
func (s *RefreshStore) Rotate(ctx context.Context, token string) (string, string, error) {
	userID, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", "", ErrRefreshTokenInvalid
	}
	if err != nil {
		return "", "", err
	}
	next, err := s.Issue(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return userID, next, nil
}

// Revoke deletes the token, e.g. on logout.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, refreshKeyPrefix+token).Err()
}

// TTL returns the configured refresh token lifetime.
func (s *RefreshStore) TTL() time.Duration {
	return s.ttl
}
