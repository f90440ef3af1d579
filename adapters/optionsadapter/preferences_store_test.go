package optionsadapter

import (
	"context"
	"testing"

	goadmin "github.com/goliatone/go-admin/admin"
)

func TestPreferencesStoreAdapterSetAndPolicy(t *testing.T) {
	ctx := context.Background()
	prefs := goadmin.NewInMemoryPreferencesStore()
	store := NewPolicyStore(NewPreferencesStoreAdapter(prefs))

	if err := store.Set(ctx, Target{OrgID: "org-1"}, "lock_terminal_stage", false, policyAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(ctx, Target{OrgID: "org-1"}, "default_currency", "GBP", policyAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := store.Policy(ctx, "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.LockTerminalStage || p.DefaultCurrency != "GBP" {
		t.Fatalf("unexpected policy: %+v", p)
	}

	snapshot, err := prefs.Resolve(ctx, goadmin.PreferencesResolveInput{
		Scope:  goadmin.PreferenceScope{OrgID: "org-1"},
		Levels: []goadmin.PreferenceLevel{goadmin.PreferenceLevelOrg},
		Keys:   []string{"dealflow_policy.lock_terminal_stage"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Effective["dealflow_policy.lock_terminal_stage"] != false {
		t.Fatalf("expected stored preference value to be false")
	}

	if err := store.Unset(ctx, Target{OrgID: "org-1"}, "lock_terminal_stage", policyAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = store.Policy(ctx, "org-1")
	if !p.LockTerminalStage || p.DefaultCurrency != "GBP" {
		t.Fatalf("unset must only drop one key: %+v", p)
	}
}
