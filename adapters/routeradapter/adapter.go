package routeradapter

import (
	"context"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/scope"
)

// Context extracts the standard context from a router context.
func Context(ctx router.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx.Context()
}

// Actor reads the dealflow actor stored on the request context.
func Actor(ctx router.Context) (authz.Actor, bool) {
	return scope.ActorFromContext(Context(ctx))
}

// ResolveActor runs resolver against the request context. A nil resolver
// falls back to the scope values on the context.
func ResolveActor(ctx router.Context, resolver authz.ActorResolver) (authz.Actor, error) {
	if resolver == nil {
		resolver = scope.ActorResolver
	}
	return resolver.ResolveActor(Context(ctx))
}
