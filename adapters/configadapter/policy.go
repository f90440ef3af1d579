package configadapter

import (
	"sort"
	"strings"

	"github.com/goliatone/go-config/config"

	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/policy"
)

// KeyOrgs holds per-organization policy overrides.
const KeyOrgs = "orgs"

type configOptions struct {
	base         policy.Policy
	withDefaults bool
}

// Option configures configadapter parsing.
type Option func(*configOptions)

// WithBasePolicy sets the policy config values are applied on top of.
func WithBasePolicy(base policy.Policy) Option {
	return func(cfg *configOptions) {
		if cfg == nil {
			return
		}
		cfg.base = base
	}
}

// WithDefaultLabels merges config labels over catalog.Default.
func WithDefaultLabels(enabled bool) Option {
	return func(cfg *configOptions) {
		if cfg == nil {
			return
		}
		cfg.withDefaults = enabled
	}
}

func newOptions(opts []Option) configOptions {
	cfg := configOptions{base: policy.Default(), withDefaults: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewPolicySource builds a policy source from a config section such as:
//
//	lock_terminal_stage: true
//	default_currency: EUR
//	strategies: {deal: manager_or_resource_owner}
//	orgs:
//	  org-1: {lock_terminal_stage: false}
//
// Organization entries are applied over the resolved top-level policy.
func NewPolicySource(data map[string]any, opts ...Option) (*policy.Static, error) {
	cfg := newOptions(opts)
	base, err := policy.Apply(cfg.base, normalizePolicyMap(data))
	if err != nil {
		return nil, err
	}
	source := policy.NewStatic(base)

	orgs, err := orgSections(data[KeyOrgs])
	if err != nil {
		return nil, err
	}
	for _, orgID := range sortedKeys(orgs) {
		p, err := policy.Apply(base, normalizePolicyMap(orgs[orgID]))
		if err != nil {
			if rich, ok := ferrors.As(err); ok {
				rich.WithMetadata(map[string]any{ferrors.MetaOrgID: orgID})
			}
			return nil, err
		}
		source.Orgs[orgID] = p
	}
	return source, nil
}

type optionalBool interface {
	IsSet() bool
	Value() bool
}

// normalizePolicyMap replaces optional bools with *bool so policy.Apply can
// tell unset values from false.
func normalizePolicyMap(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || key == KeyOrgs {
			continue
		}
		out[key] = boolValue(value)
	}
	return out
}

func boolValue(value any) any {
	switch typed := value.(type) {
	case optionalBool:
		return optionalPtr(typed.IsSet(), typed.Value())
	case config.OptionalBool:
		return optionalPtr(typed.IsSet(), typed.Value())
	case *config.OptionalBool:
		if typed == nil {
			return (*bool)(nil)
		}
		return optionalPtr(typed.IsSet(), typed.Value())
	}
	return value
}

func optionalPtr(set, value bool) *bool {
	if !set {
		return nil
	}
	return &value
}

func orgSections(raw any) (map[string]map[string]any, error) {
	out := map[string]map[string]any{}
	if raw == nil {
		return out, nil
	}
	sections, ok := raw.(map[string]any)
	if !ok {
		return nil, ferrors.WrapSentinel(ferrors.ErrInvalidPolicy, "", map[string]any{ferrors.MetaPath: KeyOrgs})
	}
	for orgID, value := range sections {
		orgID = strings.TrimSpace(orgID)
		if orgID == "" {
			continue
		}
		section, ok := value.(map[string]any)
		if !ok {
			return nil, ferrors.WrapSentinel(ferrors.ErrInvalidPolicy, "", map[string]any{ferrors.MetaPath: KeyOrgs + "." + orgID})
		}
		out[orgID] = section
	}
	return out, nil
}

func sortedKeys[V any](data map[string]V) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
