package scope

import (
	"context"
	"strings"

	"github.com/goliatone/go-dealflow/authz"
)

type contextKey string

const (
	tenantIDKey contextKey = "dealflow.tenant_id"
	orgIDKey    contextKey = "dealflow.org_id"
	userIDKey   contextKey = "dealflow.user_id"
	roleKey     contextKey = "dealflow.role"
)

// Metadata keys used when scope identifiers travel inside maps (options
// scopes, template contexts, log fields).
const (
	MetadataTenantID = "tenant_id"
	MetadataOrgID    = "org_id"
	MetadataUserID   = "user_id"
	MetadataRole     = "role"
)

// WithTenantID stores a tenant identifier in context. Blank values are ignored.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withValue(ctx, tenantIDKey, tenantID)
}

// WithOrgID stores an org identifier in context. Blank values are ignored.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return withValue(ctx, orgIDKey, orgID)
}

// WithUserID stores a user identifier in context. Blank values are ignored.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, userIDKey, userID)
}

// WithRole stores the caller's organization role in context.
func WithRole(ctx context.Context, role authz.Role) context.Context {
	return withValue(ctx, roleKey, string(role))
}

// WithActor stores every actor field in context.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	ctx = WithOrgID(ctx, actor.OrgID)
	ctx = WithUserID(ctx, actor.UserID)
	return WithRole(ctx, actor.Role)
}

// ClearTenantID removes the tenant identifier.
func ClearTenantID(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantIDKey, "")
}

// ClearOrgID removes the org identifier.
func ClearOrgID(ctx context.Context) context.Context {
	return context.WithValue(ctx, orgIDKey, "")
}

// ClearUserID removes the user identifier.
func ClearUserID(ctx context.Context) context.Context {
	return context.WithValue(ctx, userIDKey, "")
}

// TenantID extracts the tenant identifier from context.
func TenantID(ctx context.Context) string {
	return lookup(ctx, tenantIDKey)
}

// OrgID extracts the org identifier from context.
func OrgID(ctx context.Context) string {
	return lookup(ctx, orgIDKey)
}

// UserID extracts the user identifier from context.
func UserID(ctx context.Context) string {
	return lookup(ctx, userIDKey)
}

// Role extracts the role from context. Unknown values yield "".
func Role(ctx context.Context) authz.Role {
	role, err := authz.ParseRole(lookup(ctx, roleKey))
	if err != nil {
		return ""
	}
	return role
}

// ActorFromContext builds an actor from context values. ok is false when
// the user or org is missing.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	actor := authz.Actor{
		UserID: UserID(ctx),
		OrgID:  OrgID(ctx),
		Role:   Role(ctx),
	}
	return actor, actor.UserID != "" && actor.OrgID != ""
}

// Metadata renders the scope identifiers present in ctx as a map.
func Metadata(ctx context.Context) map[string]string {
	out := map[string]string{}
	for key, value := range map[string]string{
		MetadataTenantID: TenantID(ctx),
		MetadataOrgID:    OrgID(ctx),
		MetadataUserID:   UserID(ctx),
		MetadataRole:     string(Role(ctx)),
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

// ActorResolver reads the actor from context values set by this package.
// Incomplete identities resolve to the zero actor.
var ActorResolver authz.ActorResolver = authz.ActorResolverFunc(func(ctx context.Context) (authz.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return authz.Actor{}, nil
	}
	return actor, nil
})

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
