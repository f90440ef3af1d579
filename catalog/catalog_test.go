package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestStaticCatalogGetNormalizesKey(t *testing.T) {
	cat := NewStatic(Definition{
		Kind:  KindStage,
		Key:   " Discovery ",
		Label: Message{Text: " Discovery call "},
	})

	def, ok := cat.Get(KindStage, "discovery")
	if !ok {
		t.Fatalf("expected definition to be found")
	}
	if def.Key != "discovery" || def.Label.Text != "Discovery call" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if _, ok := cat.Get(KindStatus, "discovery"); ok {
		t.Fatalf("kinds must not leak into each other")
	}
}

func TestDefaultCatalogOrder(t *testing.T) {
	stages := Default().List(KindStage)
	want := []string{"qualification", "proposal", "negotiation", "closed"}
	if len(stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(stages))
	}
	for i, key := range want {
		if stages[i].Key != key {
			t.Fatalf("stage %d = %q, want %q", i, stages[i].Key, key)
		}
	}
	roles := Default().List(KindRole)
	if roles[0].Key != "member" || roles[len(roles)-1].Label.Text != "Owner" {
		t.Fatalf("unexpected roles: %+v", roles)
	}
}

func TestPlainResolverPrefersText(t *testing.T) {
	resolver := PlainResolver{}
	value, _ := resolver.Resolve(context.Background(), "en", Message{Key: "deal.stage.closed", Text: "Closed"})
	if value != "Closed" {
		t.Fatalf("expected text to be returned, got %q", value)
	}
	value, _ = resolver.Resolve(context.Background(), "en", Message{Key: "deal.stage.closed"})
	if value != "deal.stage.closed" {
		t.Fatalf("expected key to be returned, got %q", value)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string, Message) (string, error) {
	return "", errors.New("no bundle")
}

func TestLabelFallsBackToKey(t *testing.T) {
	ctx := context.Background()
	cat := Default()
	if got := Label(ctx, cat, nil, "en", KindStatus, "in_progress"); got != "In progress" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := Label(ctx, cat, nil, "en", KindStatus, "archived"); got != "archived" {
		t.Fatalf("unknown keys fall back, got %q", got)
	}
	if got := Label(ctx, cat, failingResolver{}, "en", KindStage, "proposal"); got != "proposal" {
		t.Fatalf("resolver errors fall back, got %q", got)
	}
}
