package urlbuilder

import "testing"

func TestPatternResolve(t *testing.T) {
	p := Pattern{"dealflow/deal": "/orgs/:org/deals/:id"}
	got, err := p.Resolve("/dealflow/", "deal", map[string]any{"org": "acme", "id": "deal 1"}, map[string]string{"tab": "timeline"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "/orgs/acme/deals/deal%201?tab=timeline" {
		t.Fatalf("unexpected url %q", got)
	}
	if _, err := p.Resolve("dealflow", "deal", map[string]any{"org": "acme"}, nil); err == nil {
		t.Fatalf("expected missing param error")
	}
	if _, err := p.Resolve("dealflow", "contact", nil, nil); err == nil {
		t.Fatalf("expected unknown route error")
	}
}
