package goauthadapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-auth"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/scope"
	"github.com/goliatone/go-dealflow/store"
)

// ActorExtractor extracts an auth.ActorContext from context.
type ActorExtractor func(context.Context) (*auth.ActorContext, bool)

// Option customizes the actor resolver behavior.
type Option func(*ActorResolver)

// ActorResolver derives dealflow actors from go-auth actor context.
type ActorResolver struct {
	extractor ActorExtractor
	members   store.MembershipLookup
	roles     map[string]authz.Role
}

// NewActorResolver builds a resolver using go-auth's actor context extractor.
func NewActorResolver(opts ...Option) *ActorResolver {
	resolver := &ActorResolver{
		extractor: auth.ActorFromContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	if resolver.extractor == nil {
		resolver.extractor = auth.ActorFromContext
	}
	return resolver
}

// WithActorExtractor overrides the actor context extractor.
func WithActorExtractor(extractor ActorExtractor) Option {
	return func(resolver *ActorResolver) {
		if resolver == nil {
			return
		}
		resolver.extractor = extractor
	}
}

// WithMembershipLookup makes the organization membership the source of the
// role instead of the token claim.
func WithMembershipLookup(lookup store.MembershipLookup) Option {
	return func(resolver *ActorResolver) {
		if resolver == nil {
			return
		}
		resolver.members = lookup
	}
}

// WithRoleMapping maps go-auth role names that differ from dealflow's.
func WithRoleMapping(mapping map[string]authz.Role) Option {
	return func(resolver *ActorResolver) {
		if resolver == nil {
			return
		}
		resolver.roles = map[string]authz.Role{}
		for name, role := range mapping {
			resolver.roles[strings.ToLower(strings.TrimSpace(name))] = role
		}
	}
}

// ResolveActor implements authz.ActorResolver. Requests without a go-auth
// actor resolve to the zero actor.
func (r *ActorResolver) ResolveActor(ctx context.Context) (authz.Actor, error) {
	if r == nil || r.extractor == nil {
		return authz.Actor{}, nil
	}
	actor, ok := r.extractor(ctx)
	if !ok || actor == nil {
		return authz.Actor{}, nil
	}
	out := ActorFromAuth(actor)
	if name := strings.ToLower(strings.TrimSpace(actor.Role)); r.roles != nil {
		if role, ok := r.roles[name]; ok {
			out.Role = role
		}
	}
	if r.members == nil || out.OrgID == "" || out.UserID == "" {
		return out, nil
	}
	role, err := r.members.GetRole(ctx, out.OrgID, out.UserID)
	if err != nil {
		if ferrors.IsNotFound(err) {
			return authz.Actor{UserID: out.UserID, OrgID: out.OrgID}, nil
		}
		return authz.Actor{}, ferrors.WrapExternal(err, ferrors.TextCodeAdapterFailed, "goauthadapter: membership lookup failed", map[string]any{
			ferrors.MetaAdapter:   "go-auth",
			ferrors.MetaOperation: "resolve_actor",
			ferrors.MetaOrgID:     out.OrgID,
		})
	}
	out.Role = role
	return out, nil
}

// Inject copies the resolved actor into the context for scope readers.
func (r *ActorResolver) Inject(ctx context.Context) (context.Context, error) {
	actor, err := r.ResolveActor(ctx)
	if err != nil {
		return ctx, err
	}
	if auth, ok := r.extractor(ctx); ok && auth != nil {
		ctx = scope.WithTenantID(ctx, auth.TenantID)
	}
	return scope.WithActor(ctx, actor), nil
}

// ActorFromAuth builds an actor from an auth.ActorContext. Unknown role
// names leave the role empty.
func ActorFromAuth(actor *auth.ActorContext) authz.Actor {
	if actor == nil {
		return authz.Actor{}
	}
	userID := actor.ActorID
	if userID == "" {
		userID = actor.Subject
	}
	out := authz.Actor{
		UserID: strings.TrimSpace(userID),
		OrgID:  strings.TrimSpace(actor.OrganizationID),
	}
	if role, err := authz.ParseRole(actor.Role); err == nil {
		out.Role = role
	}
	return out
}

var _ authz.ActorResolver = (*ActorResolver)(nil)
