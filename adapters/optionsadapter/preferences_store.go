package optionsadapter

import (
	"context"
	"sort"
	"strings"

	"github.com/goliatone/go-admin/admin"
	opts "github.com/goliatone/go-options"
	"github.com/goliatone/go-options/pkg/state"

	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/scope"
)

// ErrPreferencesStoreRequired indicates a missing preferences store.
var ErrPreferencesStoreRequired = ferrors.ErrPreferencesRequired

// PreferencesOption customizes the PreferencesStore adapter.
type PreferencesOption func(*PreferencesStoreAdapter)

// PreferencesStoreAdapter lets go-admin preferences back a PolicyStore.
// Policy settings are stored as flat "<domain>.<path>" preference keys.
type PreferencesStoreAdapter struct {
	store     admin.PreferencesStore
	keyPrefix string
	keys      []string
}

// NewPreferencesStoreAdapter constructs a new adapter for PreferencesStore.
func NewPreferencesStoreAdapter(store admin.PreferencesStore, opts ...PreferencesOption) *PreferencesStoreAdapter {
	adapter := &PreferencesStoreAdapter{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

// WithKeyPrefix overrides the key prefix used instead of the domain name.
func WithKeyPrefix(prefix string) PreferencesOption {
	return func(adapter *PreferencesStoreAdapter) {
		if adapter == nil {
			return
		}
		adapter.keyPrefix = strings.TrimSpace(prefix)
	}
}

// WithKeys restricts loads to the provided setting keys (without prefix),
// e.g. "lock_terminal_stage" or "strategies.deal".
func WithKeys(keys ...string) PreferencesOption {
	return func(adapter *PreferencesStoreAdapter) {
		if adapter == nil {
			return
		}
		cleaned := make([]string, 0, len(keys))
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				cleaned = append(cleaned, key)
			}
		}
		adapter.keys = cleaned
	}
}

// Load implements state.Store.
func (a *PreferencesStoreAdapter) Load(ctx context.Context, ref state.Ref) (map[string]any, state.Meta, bool, error) {
	if a == nil || a.store == nil {
		return nil, state.Meta{}, false, a.required("load")
	}
	flat, err := a.resolve(ctx, ref)
	if err != nil || len(flat) == 0 {
		return nil, state.Meta{}, false, err
	}
	settings := map[string]any{}
	for _, key := range sortedKeys(flat) {
		if err := setPath(settings, key, flat[key]); err != nil {
			return nil, state.Meta{}, false, err
		}
	}
	return settings, state.Meta{}, true, nil
}

// resolve returns the stored preferences for ref keyed by setting path.
func (a *PreferencesStoreAdapter) resolve(ctx context.Context, ref state.Ref) (map[string]any, error) {
	level, prefScope, err := preferenceScope(ref.Scope)
	if err != nil {
		return nil, err
	}
	resolved, err := a.store.Resolve(ctx, admin.PreferencesResolveInput{
		Scope:  prefScope,
		Levels: []admin.PreferenceLevel{level},
		Keys:   a.prefixedKeys(ref.Domain),
	})
	if err != nil {
		return nil, err
	}
	prefix := a.domainPrefix(ref.Domain)
	out := make(map[string]any, len(resolved.Effective))
	for key, value := range resolved.Effective {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = value
	}
	return out, nil
}

// Save implements state.Store. Settings dropped from snapshot are deleted
// from the preferences store.
func (a *PreferencesStoreAdapter) Save(ctx context.Context, ref state.Ref, snapshot map[string]any, _ state.Meta) (state.Meta, error) {
	if a == nil || a.store == nil {
		return state.Meta{}, a.required("save")
	}
	level, prefScope, err := preferenceScope(ref.Scope)
	if err != nil {
		return state.Meta{}, err
	}
	current, err := a.resolve(ctx, ref)
	if err != nil {
		return state.Meta{}, err
	}

	prefix := a.domainPrefix(ref.Domain)
	next := flatten(snapshot)
	values := make(map[string]any, len(next))
	for key, value := range next {
		values[prefix+key] = value
	}
	var removed []string
	for key := range current {
		if _, kept := next[key]; !kept {
			removed = append(removed, prefix+key)
		}
	}

	if len(values) > 0 {
		_, err := a.store.Upsert(ctx, admin.PreferencesUpsertInput{Scope: prefScope, Level: level, Values: values})
		if err != nil {
			return state.Meta{}, err
		}
	}
	if len(removed) > 0 {
		err := a.store.Delete(ctx, admin.PreferencesDeleteInput{Scope: prefScope, Level: level, Keys: removed})
		if err != nil {
			return state.Meta{}, err
		}
	}
	return state.Meta{}, nil
}

func (a *PreferencesStoreAdapter) required(operation string) error {
	return ferrors.WrapSentinel(ferrors.ErrPreferencesRequired, "optionsadapter: preferences store is required", map[string]any{
		ferrors.MetaAdapter:   "options",
		ferrors.MetaStore:     "preferences",
		ferrors.MetaOperation: operation,
	})
}

func preferenceScope(scopeDef opts.Scope) (admin.PreferenceLevel, admin.PreferenceScope, error) {
	switch scopeDef.Name {
	case "system":
		return admin.PreferenceLevelSystem, admin.PreferenceScope{}, nil
	case "tenant":
		id, err := extractScopeID(scopeDef, scope.MetadataTenantID)
		if err != nil {
			return "", admin.PreferenceScope{}, err
		}
		return admin.PreferenceLevelTenant, admin.PreferenceScope{TenantID: id}, nil
	case "org":
		id, err := extractScopeID(scopeDef, scope.MetadataOrgID)
		if err != nil {
			return "", admin.PreferenceScope{}, err
		}
		return admin.PreferenceLevelOrg, admin.PreferenceScope{OrgID: id}, nil
	default:
		return "", admin.PreferenceScope{}, ferrors.WrapSentinel(ferrors.ErrScopeRequired, "optionsadapter: unsupported scope "+scopeDef.Name, map[string]any{
			ferrors.MetaScope: scopeDef.Name,
		})
	}
}

func extractScopeID(scopeDef opts.Scope, key string) (string, error) {
	raw, _ := scopeDef.Metadata[key].(string)
	if id := strings.TrimSpace(raw); id != "" {
		return id, nil
	}
	return "", ferrors.WrapSentinel(ferrors.ErrScopeMetadataRequired, "", map[string]any{
		ferrors.MetaScope: scopeDef.Name,
		"metadata_key":    key,
	})
}

func (a *PreferencesStoreAdapter) domainPrefix(domain string) string {
	if a.keyPrefix != "" {
		return normalizePrefix(a.keyPrefix)
	}
	return normalizePrefix(domain)
}

func (a *PreferencesStoreAdapter) prefixedKeys(domain string) []string {
	if len(a.keys) == 0 {
		return nil
	}
	prefix := a.domainPrefix(domain)
	keys := make([]string, 0, len(a.keys))
	for _, key := range a.keys {
		keys = append(keys, prefix+key)
	}
	return keys
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func flatten(snapshot map[string]any) map[string]any {
	out := map[string]any{}
	flattenMap("", snapshot, out)
	return out
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.HasSuffix(prefix, ".") {
		return prefix
	}
	return prefix + "."
}

var _ state.Store[map[string]any] = (*PreferencesStoreAdapter)(nil)
