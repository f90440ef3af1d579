package urlkitadapter

import (
	"errors"
	"testing"

	"github.com/goliatone/go-dealflow/ferrors"
)

func TestResolveRequiresResolver(t *testing.T) {
	_, err := New(nil).Resolve("dealflow", "deal", map[string]any{"id": "deal-1"}, nil)
	if !errors.Is(err, ErrResolverRequired) {
		t.Fatalf("expected resolver required, got %v", err)
	}
	rich, ok := ferrors.As(err)
	if !ok || rich.Metadata["route"] != "deal" {
		t.Fatalf("expected route metadata, got %#v", rich)
	}
}
