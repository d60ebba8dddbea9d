// Package actorctx carries the identity of the currently acting user through
// a request's call chain. The association lives on the request context, so it
// is scoped to one request and disappears when the request ends; nothing can
// leak into an unrelated request reusing the same goroutine.
package actorctx

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

type actorKey struct{}

// With associates the acting user with the context. A nil user records an
// anonymous request; From will report no actor.
func With(ctx context.Context, actor *domain.User) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// From returns the current actor, or false if none was set or it was cleared.
func From(ctx context.Context) (*domain.User, bool) {
	actor, ok := ctx.Value(actorKey{}).(*domain.User)
	if !ok || actor == nil {
		return nil, false
	}
	return actor, true
}

// Clear removes any actor association from the returned context.
func Clear(ctx context.Context) context.Context {
	return With(ctx, nil)
}
