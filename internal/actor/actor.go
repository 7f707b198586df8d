// Package actor resolves the identity that order changes are attributed to.
// The back-office sits behind the site's auth; requests carry a bearer token
// whose claims become the history entry's changed_by. Background processes
// and unauthenticated local runs fall back to the configured system actor.
package actor

import (
	"context"

	"github.com/boloapp/order-service/internal/models"
)

type contextKey struct{}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(models.Actor)
	return a, ok
}

// Provider resolves the acting identity for a request context.
type Provider interface {
	Resolve(ctx context.Context) models.Actor
}

// StaticProvider always returns one fixed identity. Used for background
// workers and as the fallback identity of the composite provider.
type StaticProvider struct {
	Actor models.Actor
}

func (p StaticProvider) Resolve(context.Context) models.Actor {
	return p.Actor
}

// ContextProvider prefers the actor placed in the context by the auth
// middleware and falls back otherwise.
type ContextProvider struct {
	Fallback models.Actor
}

func (p ContextProvider) Resolve(ctx context.Context) models.Actor {
	if a, ok := FromContext(ctx); ok {
		return a
	}
	return p.Fallback
}
