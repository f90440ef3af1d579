package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/permissions"
)

// Setting keys understood by Apply.
const (
	KeyStrategies          = "strategies"
	KeyLockTerminalStage   = "lock_terminal_stage"
	KeyDefaultCurrency     = "default_currency"
	KeySupportedCurrencies = "supported_currencies"
)

// Policy is the tunable part of the lifecycle rules for one organization.
type Policy struct {
	// Strategies maps resource types to ownership strategy names.
	Strategies map[authz.ResourceType]string
	// LockTerminalStage rejects stage changes once the status is won or lost.
	LockTerminalStage   bool
	DefaultCurrency     string
	SupportedCurrencies []string
}

// Default returns the built-in policy.
func Default() Policy {
	return Policy{
		Strategies: map[authz.ResourceType]string{
			authz.ResourceDeal:    permissions.StrategyOwnerOrResourceOwner,
			authz.ResourceContact: permissions.StrategyOwnerOrResourceOwner,
			authz.ResourceTask:    permissions.StrategyOwnerOrResourceOwner,
		},
		LockTerminalStage:   true,
		DefaultCurrency:     "USD",
		SupportedCurrencies: []string{"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "RUB"},
	}
}

// Strategy resolves the ownership strategy for a resource type, falling
// back to permissions.DefaultStrategy.
func (p Policy) Strategy(resource authz.ResourceType) permissions.Strategy {
	if name, ok := p.Strategies[resource]; ok {
		if strategy, ok := permissions.StrategyByName(name); ok {
			return strategy
		}
	}
	return permissions.DefaultStrategy
}

// ResourceChecker builds a checker for the resource type.
func (p Policy) ResourceChecker(resource authz.ResourceType) permissions.ResourceChecker {
	return permissions.NewResourceChecker(permissions.WithStrategy(p.Strategy(resource)))
}

// SupportsCurrency reports whether code is accepted. An empty list accepts
// every code.
func (p Policy) SupportsCurrency(code string) bool {
	code = deal.NormalizeCurrency(code)
	if len(p.SupportedCurrencies) == 0 {
		return len(code) == 3
	}
	for _, supported := range p.SupportedCurrencies {
		if deal.NormalizeCurrency(supported) == code {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	out := p
	if p.Strategies != nil {
		out.Strategies = make(map[authz.ResourceType]string, len(p.Strategies))
		for k, v := range p.Strategies {
			out.Strategies[k] = v
		}
	}
	out.SupportedCurrencies = append([]string(nil), p.SupportedCurrencies...)
	return out
}

// Apply overlays settings from a config-style map onto base. Unknown keys
// are ignored; malformed values return an error.
func Apply(base Policy, data map[string]any) (Policy, error) {
	out := base.Clone()
	if len(data) == 0 {
		return out, nil
	}
	if raw, ok := data[KeyStrategies]; ok && raw != nil {
		strategies, err := strategiesFromValue(raw)
		if err != nil {
			return base, err
		}
		if out.Strategies == nil {
			out.Strategies = map[authz.ResourceType]string{}
		}
		for resource, name := range strategies {
			out.Strategies[resource] = name
		}
	}
	if raw, ok := data[KeyLockTerminalStage]; ok && raw != nil {
		value, set, err := boolFromValue(raw)
		if err != nil {
			return base, invalid(KeyLockTerminalStage, raw)
		}
		if set {
			out.LockTerminalStage = value
		}
	}
	if raw, ok := data[KeyDefaultCurrency]; ok && raw != nil {
		code, ok := raw.(string)
		if !ok || len(deal.NormalizeCurrency(code)) != 3 {
			return base, invalid(KeyDefaultCurrency, raw)
		}
		out.DefaultCurrency = deal.NormalizeCurrency(code)
	}
	if raw, ok := data[KeySupportedCurrencies]; ok && raw != nil {
		codes, err := stringsFromValue(raw)
		if err != nil {
			return base, invalid(KeySupportedCurrencies, raw)
		}
		for i, code := range codes {
			codes[i] = deal.NormalizeCurrency(code)
		}
		out.SupportedCurrencies = codes
	}
	return out, nil
}

// Map renders the policy in the form Apply reads.
func (p Policy) Map() map[string]any {
	strategies := make(map[string]any, len(p.Strategies))
	for resource, name := range p.Strategies {
		strategies[resource.String()] = name
	}
	currencies := make([]any, 0, len(p.SupportedCurrencies))
	for _, code := range p.SupportedCurrencies {
		currencies = append(currencies, code)
	}
	return map[string]any{
		KeyStrategies:          strategies,
		KeyLockTerminalStage:   p.LockTerminalStage,
		KeyDefaultCurrency:     p.DefaultCurrency,
		KeySupportedCurrencies: currencies,
	}
}

// Source resolves the policy for an organization.
type Source interface {
	Policy(ctx context.Context, orgID string) (Policy, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, orgID string) (Policy, error)

// Policy implements Source.
func (fn SourceFunc) Policy(ctx context.Context, orgID string) (Policy, error) {
	return fn(ctx, orgID)
}

// Static serves one policy to every organization, with optional per-org
// replacements.
type Static struct {
	Base Policy
	Orgs map[string]Policy
}

// NewStatic builds a Static source.
func NewStatic(base Policy) *Static {
	return &Static{Base: base, Orgs: map[string]Policy{}}
}

// Policy implements Source.
func (s *Static) Policy(_ context.Context, orgID string) (Policy, error) {
	if s == nil {
		return Default(), nil
	}
	if p, ok := s.Orgs[orgID]; ok {
		return p.Clone(), nil
	}
	return s.Base.Clone(), nil
}

func strategiesFromValue(raw any) (map[authz.ResourceType]string, error) {
	out := map[authz.ResourceType]string{}
	add := func(key string, value any) error {
		name, ok := value.(string)
		if !ok {
			return invalid(KeyStrategies+"."+key, value)
		}
		if _, ok := permissions.StrategyByName(name); !ok {
			return invalid(KeyStrategies+"."+key, value)
		}
		out[authz.NormalizeResourceType(key)] = strings.ToLower(strings.TrimSpace(name))
		return nil
	}
	switch typed := raw.(type) {
	case map[string]any:
		for _, key := range sortedKeys(typed) {
			if err := add(key, typed[key]); err != nil {
				return nil, err
			}
		}
	case map[string]string:
		for key, value := range typed {
			if err := add(key, value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, invalid(KeyStrategies, raw)
	}
	return out, nil
}

func boolFromValue(raw any) (bool, bool, error) {
	switch typed := raw.(type) {
	case bool:
		return typed, true, nil
	case *bool:
		if typed == nil {
			return false, false, nil
		}
		return *typed, true, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes", "on":
			return true, true, nil
		case "false", "0", "no", "off":
			return false, true, nil
		case "":
			return false, false, nil
		}
	}
	return false, false, fmt.Errorf("not a bool: %T", raw)
}

func stringsFromValue(raw any) ([]string, error) {
	switch typed := raw.(type) {
	case []string:
		return append([]string(nil), typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("not a string: %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		parts := strings.Split(typed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list: %T", raw)
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func invalid(key string, value any) error {
	return ferrors.WrapSentinel(ferrors.ErrInvalidPolicy, fmt.Sprintf("invalid value for %s", key), map[string]any{
		ferrors.MetaPath: key,
		"value":          fmt.Sprintf("%v", value),
	})
}
