package optionsadapter

import (
	"context"
	"strings"

	opts "github.com/goliatone/go-options"
	"github.com/goliatone/go-options/pkg/state"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/policy"
	"github.com/goliatone/go-dealflow/scope"
)

const (
	prioritySystem = 10
	priorityTenant = 20
	priorityOrg    = 30
)

// DefaultDomain is the options domain holding lifecycle policy settings.
const DefaultDomain = "dealflow_policy"

// ErrStoreRequired indicates the underlying state store is missing.
var ErrStoreRequired = ferrors.ErrStoreRequired

// Target selects where a policy setting is written. An empty target is the
// system scope.
type Target struct {
	TenantID string
	OrgID    string
}

// ScopeBuilder maps a target into go-options scopes ordered from highest to
// lowest precedence.
type ScopeBuilder func(target Target) []opts.Scope

// MetaBuilder builds storage metadata from the acting user.
type MetaBuilder func(actor authz.Actor) state.Meta

// Option customizes the PolicyStore adapter.
type Option func(*PolicyStore)

// PolicyStore keeps lifecycle policy in a go-options state.Store. Settings
// written at system, tenant and org scope are layered over a base policy.
type PolicyStore struct {
	stateStore state.Store[map[string]any]
	domain     string
	base       policy.Policy
	scopes     ScopeBuilder
	meta       MetaBuilder
}

// NewPolicyStore constructs an adapter backed by a go-options state.Store.
func NewPolicyStore(stateStore state.Store[map[string]any], opts ...Option) *PolicyStore {
	adapter := &PolicyStore{
		stateStore: stateStore,
		domain:     DefaultDomain,
		base:       policy.Default(),
		scopes:     defaultScopes,
		meta:       defaultMeta,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.domain == "" {
		adapter.domain = DefaultDomain
	}
	if adapter.scopes == nil {
		adapter.scopes = defaultScopes
	}
	if adapter.meta == nil {
		adapter.meta = defaultMeta
	}
	return adapter
}

// WithDomain sets the options domain used for policy settings.
func WithDomain(domain string) Option {
	return func(adapter *PolicyStore) {
		if adapter == nil {
			return
		}
		adapter.domain = strings.TrimSpace(domain)
	}
}

// WithBasePolicy sets the policy stored settings are layered over.
func WithBasePolicy(base policy.Policy) Option {
	return func(adapter *PolicyStore) {
		if adapter == nil {
			return
		}
		adapter.base = base
	}
}

// WithScopeBuilder overrides the default scope mapping.
func WithScopeBuilder(builder ScopeBuilder) Option {
	return func(adapter *PolicyStore) {
		if adapter == nil {
			return
		}
		adapter.scopes = builder
	}
}

// WithMetaBuilder overrides the metadata builder used on mutations.
func WithMetaBuilder(builder MetaBuilder) Option {
	return func(adapter *PolicyStore) {
		if adapter == nil {
			return
		}
		adapter.meta = builder
	}
}

// Policy implements policy.Source. The tenant is read from ctx.
func (s *PolicyStore) Policy(ctx context.Context, orgID string) (policy.Policy, error) {
	if s == nil || s.stateStore == nil {
		return policy.Policy{}, s.storeRequired("load")
	}
	target := Target{TenantID: scope.TenantID(ctx), OrgID: strings.TrimSpace(orgID)}
	scopes := s.scopes(target)
	out := s.base.Clone()
	for i := len(scopes) - 1; i >= 0; i-- {
		scopeDef := scopes[i]
		snapshot, _, ok, err := s.stateStore.Load(ctx, state.Ref{Domain: s.domain, Scope: scopeDef})
		if err != nil {
			return policy.Policy{}, ferrors.WrapExternal(err, ferrors.TextCodePolicyLookupFailed, "optionsadapter: load failed", storeMeta(scopeDef, "load", s.domain))
		}
		if !ok || len(snapshot) == 0 {
			continue
		}
		out, err = policy.Apply(out, snapshot)
		if err != nil {
			if rich, ok := ferrors.As(err); ok {
				rich.WithMetadata(storeMeta(scopeDef, "decode", s.domain))
			}
			return policy.Policy{}, err
		}
	}
	return out, nil
}

// Set stores one policy setting at target. key is a dotted path such as
// "lock_terminal_stage" or "strategies.deal"; the value is validated before
// it is written.
func (s *PolicyStore) Set(ctx context.Context, target Target, key string, value any, actor authz.Actor) error {
	if s == nil || s.stateStore == nil {
		return s.storeRequired("set")
	}
	path := strings.ToLower(strings.TrimSpace(key))
	if err := validateSetting(path, value); err != nil {
		return err
	}
	return s.mutate(ctx, target, "set", actor, func(snapshot map[string]any) error {
		return setPath(snapshot, path, value)
	})
}

// Unset removes a policy setting from target so lower scopes apply again.
func (s *PolicyStore) Unset(ctx context.Context, target Target, key string, actor authz.Actor) error {
	if s == nil || s.stateStore == nil {
		return s.storeRequired("unset")
	}
	path := strings.ToLower(strings.TrimSpace(key))
	if len(splitPath(path)) == 0 {
		return ferrors.WrapSentinel(ferrors.ErrPathRequired, "optionsadapter: setting key is required", nil)
	}
	return s.mutate(ctx, target, "unset", actor, func(snapshot map[string]any) error {
		deletePath(snapshot, path)
		return nil
	})
}

func (s *PolicyStore) mutate(ctx context.Context, target Target, operation string, actor authz.Actor, fn func(map[string]any) error) error {
	ref := state.Ref{Domain: s.domain, Scope: writeScope(target)}
	resolver := state.Resolver[map[string]any]{Store: s.stateStore}
	_, _, err := resolver.Mutate(ctx, ref, s.meta(actor), func(snapshot *map[string]any) error {
		if snapshot == nil {
			return ferrors.WrapSentinel(ferrors.ErrSnapshotRequired, "optionsadapter: snapshot is nil", storeMeta(ref.Scope, operation, s.domain))
		}
		if *snapshot == nil {
			*snapshot = map[string]any{}
		}
		return fn(*snapshot)
	})
	if err != nil {
		if ferrors.IsBadInput(err) {
			return err
		}
		return ferrors.WrapExternal(err, ferrors.TextCodeStoreWriteFailed, "optionsadapter: "+operation+" failed", storeMeta(ref.Scope, operation, s.domain))
	}
	return nil
}

func (s *PolicyStore) storeRequired(operation string) error {
	domain := ""
	if s != nil {
		domain = s.domain
	}
	return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "optionsadapter: state store is required", map[string]any{
		ferrors.MetaAdapter:   "options",
		ferrors.MetaStore:     "state",
		ferrors.MetaDomain:    domain,
		ferrors.MetaOperation: operation,
	})
}

// validateSetting applies the single setting to the default policy and
// reports the error Apply would return at read time.
func validateSetting(path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ferrors.WrapSentinel(ferrors.ErrPathRequired, "optionsadapter: setting key is required", nil)
	}
	switch segments[0] {
	case policy.KeyStrategies, policy.KeyLockTerminalStage, policy.KeyDefaultCurrency, policy.KeySupportedCurrencies:
	default:
		return ferrors.WrapSentinel(ferrors.ErrInvalidPolicy, "unknown policy setting "+path, map[string]any{ferrors.MetaPath: path})
	}
	probe := map[string]any{}
	if err := setPath(probe, path, value); err != nil {
		return err
	}
	_, err := policy.Apply(policy.Default(), probe)
	return err
}

func defaultScopes(target Target) []opts.Scope {
	var scopes []opts.Scope
	if target.OrgID != "" {
		scopes = append(scopes, scoped("org", "Org", priorityOrg, scope.MetadataOrgID, target.OrgID))
	}
	if target.TenantID != "" {
		scopes = append(scopes, scoped("tenant", "Tenant", priorityTenant, scope.MetadataTenantID, target.TenantID))
	}
	return append(scopes, scoped("system", "System", prioritySystem, "", ""))
}

func writeScope(target Target) opts.Scope {
	switch {
	case target.OrgID != "":
		return scoped("org", "Org", priorityOrg, scope.MetadataOrgID, target.OrgID)
	case target.TenantID != "":
		return scoped("tenant", "Tenant", priorityTenant, scope.MetadataTenantID, target.TenantID)
	default:
		return scoped("system", "System", prioritySystem, "", "")
	}
}

func scoped(name, label string, priority int, metadataKey, metadataValue string) opts.Scope {
	var metadata map[string]any
	if metadataKey != "" && metadataValue != "" {
		metadata = map[string]any{metadataKey: metadataValue}
	}
	return opts.NewScope(
		name,
		priority,
		opts.WithScopeLabel(label),
		opts.WithScopeMetadata(metadata),
	)
}

func defaultMeta(actor authz.Actor) state.Meta {
	extra := map[string]string{}
	if actor.UserID != "" {
		extra["actor_id"] = actor.UserID
	}
	if actor.Role != "" {
		extra["actor_role"] = string(actor.Role)
	}
	if actor.OrgID != "" {
		extra["actor_org_id"] = actor.OrgID
	}
	if len(extra) == 0 {
		return state.Meta{}
	}
	return state.Meta{Extra: extra}
}

func storeMeta(scopeDef opts.Scope, operation, domain string) map[string]any {
	meta := map[string]any{
		ferrors.MetaAdapter:   "options",
		ferrors.MetaStore:     "state",
		ferrors.MetaOperation: operation,
		ferrors.MetaScope:     scopeDef.Name,
	}
	if strings.TrimSpace(domain) != "" {
		meta[ferrors.MetaDomain] = strings.TrimSpace(domain)
	}
	return meta
}

var _ policy.Source = (*PolicyStore)(nil)
