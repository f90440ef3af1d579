package membership

import (
	"context"
	"strings"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/cache"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/logger"
	"github.com/goliatone/go-dealflow/scope"
	"github.com/goliatone/go-dealflow/store"
)

// Resolver answers membership questions through a lookup, caching roles.
type Resolver struct {
	lookup store.MembershipLookup
	cache  cache.Cache
	logger logger.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithCache sets the role cache. Nil disables caching.
func WithCache(c cache.Cache) Option {
	return func(r *Resolver) {
		if r == nil {
			return
		}
		r.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if r == nil {
			return
		}
		r.logger = l
	}
}

// New constructs a Resolver backed by lookup.
func New(lookup store.MembershipLookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup: lookup,
		cache:  cache.NoopCache{},
		logger: logger.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.cache == nil {
		r.cache = cache.NoopCache{}
	}
	if r.logger == nil {
		r.logger = logger.Default()
	}
	return r
}

// GetRole implements store.MembershipLookup with caching. Non-members are
// never cached.
func (r *Resolver) GetRole(ctx context.Context, orgID, userID string) (authz.Role, error) {
	if r == nil || r.lookup == nil {
		return "", ferrors.WrapSentinel(ferrors.ErrMembershipRequired, "", nil)
	}
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return "", ferrors.WrapSentinel(ferrors.ErrScopeRequired, "membership: org and user are required", nil)
	}
	if role, ok := r.cache.Get(ctx, orgID, userID); ok {
		return role, nil
	}
	role, err := r.lookup.GetRole(ctx, orgID, userID)
	if err != nil {
		if ferrors.IsNotFound(err) {
			return "", err
		}
		r.logger.Warn("membership lookup failed", "org_id", orgID, "user_id", userID, "error", err)
		return "", ferrors.WrapExternal(err, ferrors.TextCodeMembershipLookupFailed, "membership lookup failed", map[string]any{
			ferrors.MetaOrgID:   orgID,
			ferrors.MetaActorID: userID,
		})
	}
	if !role.Valid() {
		return "", ferrors.WrapSentinel(ferrors.ErrInvalidRole, "", map[string]any{
			ferrors.MetaOrgID: orgID,
			ferrors.MetaRole:  string(role),
		})
	}
	r.cache.Set(ctx, orgID, userID, role)
	return role, nil
}

// Actor resolves the full actor for a user in an organization.
func (r *Resolver) Actor(ctx context.Context, orgID, userID string) (authz.Actor, error) {
	role, err := r.GetRole(ctx, orgID, userID)
	if err != nil {
		return authz.Actor{}, err
	}
	return authz.Actor{UserID: strings.TrimSpace(userID), OrgID: strings.TrimSpace(orgID), Role: role}, nil
}

// IsMember reports whether the user belongs to the organization.
func (r *Resolver) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	_, err := r.GetRole(ctx, orgID, userID)
	if err == nil {
		return true, nil
	}
	if ferrors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Invalidate drops a cached role after a membership change.
func (r *Resolver) Invalidate(ctx context.Context, orgID, userID string) {
	if r == nil {
		return
	}
	r.cache.Delete(ctx, strings.TrimSpace(orgID), strings.TrimSpace(userID))
}

// ResolveActor implements authz.ActorResolver. The org and user come from
// the context and the role from the lookup, ignoring any role already in
// the context.
func (r *Resolver) ResolveActor(ctx context.Context) (authz.Actor, error) {
	orgID, userID := scope.OrgID(ctx), scope.UserID(ctx)
	if orgID == "" || userID == "" {
		return authz.Actor{}, nil
	}
	return r.Actor(ctx, orgID, userID)
}

var (
	_ store.MembershipLookup = (*Resolver)(nil)
	_ authz.ActorResolver    = (*Resolver)(nil)
)
