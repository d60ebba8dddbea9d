package actorctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestFromEmptyContext(t *testing.T) {
	actor, ok := From(context.Background())
	assert.False(t, ok)
	assert.Nil(t, actor)
}

func TestWithAndFrom(t *testing.T) {
	user := &domain.User{ID: "u1", Role: domain.UserRoleCustomer}
	ctx := With(context.Background(), user)

	actor, ok := From(ctx)
	require.True(t, ok)
	assert.Same(t, user, actor)
}

func TestClear(t *testing.T) {
	ctx := With(context.Background(), &domain.User{ID: "u1"})
	ctx = Clear(ctx)

	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestContextsAreIndependent(t *testing.T) {
	base := context.Background()
	ctxA := With(base, &domain.User{ID: "a"})
	ctxB := With(base, &domain.User{ID: "b"})

	actorA, ok := From(ctxA)
	require.True(t, ok)
	actorB, ok := From(ctxB)
	require.True(t, ok)

	assert.Equal(t, "a", actorA.ID)
	assert.Equal(t, "b", actorB.ID)

	_, ok = From(base)
	assert.False(t, ok, "parent context stays anonymous")
}
