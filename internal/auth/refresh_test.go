package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) GetDel(_ context.Context, key string) *redis.StringCmd {
	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.values, key)
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestRefreshRotationInvalidatesPreviousToken(t *testing.T) {
	store := NewRefreshStore(newFakeRedis(), time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1")
	require.NoError(t, err)

	userID, next, err := store.Rotate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.NotEqual(t, token, next)

	_, _, err = store.Rotate(ctx, token)
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid, "a consumed token cannot be replayed")

	userID, _, err = store.Rotate(ctx, next)
	require.NoError(t, err, "the replacement token stays valid")
	assert.Equal(t, "user-1", userID)
}

func TestRotateUnknownToken(t *testing.T) {
	store := NewRefreshStore(newFakeRedis(), time.Hour)

	_, _, err := store.Rotate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRevokedTokenCannotRotate(t *testing.T) {
	store := NewRefreshStore(newFakeRedis(), time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, _, err = store.Rotate(ctx, token)
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
}
