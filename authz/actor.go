package authz

import "context"

// Actor is the per-request identity used by every authorization decision.
// The resource owner completes the triple at check time.
type Actor struct {
	UserID string
	OrgID  string
	Role   Role
}

// IsZero reports whether no identity was resolved.
func (a Actor) IsZero() bool {
	return a.UserID == "" && a.OrgID == "" && a.Role == ""
}

// Owns reports whether the actor is the given resource owner. An empty
// owner never matches.
func (a Actor) Owns(ownerID string) bool {
	return ownerID != "" && a.UserID != "" && a.UserID == ownerID
}

// ActorResolver derives the acting identity from a request context.
type ActorResolver interface {
	ResolveActor(ctx context.Context) (Actor, error)
}

// ActorResolverFunc adapts a function to ActorResolver.
type ActorResolverFunc func(context.Context) (Actor, error)

// ResolveActor implements ActorResolver.
func (fn ActorResolverFunc) ResolveActor(ctx context.Context) (Actor, error) {
	if fn == nil {
		return Actor{}, nil
	}
	return fn(ctx)
}
