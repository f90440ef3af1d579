package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/permissions"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	if !p.LockTerminalStage {
		t.Fatalf("expected terminal stage lock by default")
	}
	if p.Strategy(authz.ResourceDeal).Name() != permissions.StrategyOwnerOrResourceOwner {
		t.Fatalf("unexpected deal strategy")
	}
	if p.Strategy(authz.ResourceComment) != permissions.DefaultStrategy {
		t.Fatalf("unconfigured resources use the default strategy")
	}
	if !p.SupportsCurrency("eur") || p.SupportsCurrency("BTC") {
		t.Fatalf("unexpected currency support")
	}
}

func TestApplyOverlaysValues(t *testing.T) {
	p, err := Apply(Default(), map[string]any{
		KeyStrategies:          map[string]any{"deals": "manager_or_resource_owner"},
		KeyLockTerminalStage:   "false",
		KeyDefaultCurrency:     "eur",
		KeySupportedCurrencies: []any{"eur", "usd"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Strategy(authz.ResourceDeal).Name() != permissions.StrategyManagerOrResourceOwner {
		t.Fatalf("expected manager strategy for deals")
	}
	if p.LockTerminalStage {
		t.Fatalf("expected lock to be disabled")
	}
	if p.DefaultCurrency != "EUR" || len(p.SupportedCurrencies) != 2 || p.SupportedCurrencies[1] != "USD" {
		t.Fatalf("unexpected currencies: %+v", p)
	}
}

func TestApplyRejectsUnknownStrategy(t *testing.T) {
	base := Default()
	_, err := Apply(base, map[string]any{
		KeyStrategies: map[string]any{"deal": "everyone"},
	})
	if !errors.Is(err, ferrors.ErrInvalidPolicy) {
		t.Fatalf("expected invalid policy, got %v", err)
	}
	if base.Strategy(authz.ResourceDeal).Name() != permissions.StrategyOwnerOrResourceOwner {
		t.Fatalf("base must not be mutated")
	}
}

func TestApplyRoundTripsMap(t *testing.T) {
	p := Default()
	p.LockTerminalStage = false
	out, err := Apply(Policy{}, p.Map())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.LockTerminalStage || out.DefaultCurrency != "USD" || len(out.SupportedCurrencies) != len(p.SupportedCurrencies) {
		t.Fatalf("unexpected policy: %+v", out)
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStatic(Default())
	strict := Default()
	strict.Strategies[authz.ResourceDeal] = permissions.StrategyAdminOrOwner
	src.Orgs["org-2"] = strict

	p, _ := src.Policy(context.Background(), "org-1")
	if p.Strategy(authz.ResourceDeal).Name() != permissions.StrategyOwnerOrResourceOwner {
		t.Fatalf("org-1 should use the base policy")
	}
	p, _ = src.Policy(context.Background(), "org-2")
	if p.Strategy(authz.ResourceDeal).Name() != permissions.StrategyAdminOrOwner {
		t.Fatalf("org-2 should use its own policy")
	}
}
