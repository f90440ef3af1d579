package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/cache"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/scope"
	"github.com/goliatone/go-dealflow/store"
)

type countingLookup struct {
	roles map[string]authz.Role
	err   error
	calls int
}

func (c *countingLookup) GetRole(_ context.Context, orgID, userID string) (authz.Role, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	role, ok := c.roles[orgID+"/"+userID]
	if !ok {
		return "", ferrors.WrapSentinel(ferrors.ErrNotAMember, "", nil)
	}
	return role, nil
}

func TestResolverCachesRoles(t *testing.T) {
	ctx := context.Background()
	lookup := &countingLookup{roles: map[string]authz.Role{"org-1/u-1": authz.RoleAdmin}}
	r := New(lookup, WithCache(cache.NewMemoryCache()))

	for i := 0; i < 3; i++ {
		role, err := r.GetRole(ctx, "org-1", "u-1")
		if err != nil || role != authz.RoleAdmin {
			t.Fatalf("expected admin, got %q (%v)", role, err)
		}
	}
	if lookup.calls != 1 {
		t.Fatalf("expected one lookup, got %d", lookup.calls)
	}

	r.Invalidate(ctx, "org-1", "u-1")
	_, _ = r.GetRole(ctx, "org-1", "u-1")
	if lookup.calls != 2 {
		t.Fatalf("expected lookup after invalidate, got %d", lookup.calls)
	}
}

func TestResolverNonMember(t *testing.T) {
	ctx := context.Background()
	lookup := &countingLookup{roles: map[string]authz.Role{}}
	r := New(lookup, WithCache(cache.NewMemoryCache()))

	if _, err := r.GetRole(ctx, "org-1", "u-9"); !errors.Is(err, ferrors.ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}
	ok, err := r.IsMember(ctx, "org-1", "u-9")
	if err != nil || ok {
		t.Fatalf("expected non-member without error, got %v %v", ok, err)
	}
	if lookup.calls != 2 {
		t.Fatalf("non-members must not be cached, got %d calls", lookup.calls)
	}
}

func TestResolverWrapsLookupFailure(t *testing.T) {
	r := New(&countingLookup{err: errors.New("connection reset")})
	_, err := r.GetRole(context.Background(), "org-1", "u-1")
	if err == nil || ferrors.IsNotFound(err) {
		t.Fatalf("expected external failure, got %v", err)
	}
	rich, ok := ferrors.As(err)
	if !ok || rich.TextCode != ferrors.TextCodeMembershipLookupFailed {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolverRequiresLookup(t *testing.T) {
	_, err := New(nil).GetRole(context.Background(), "org-1", "u-1")
	if !errors.Is(err, ferrors.ErrMembershipRequired) {
		t.Fatalf("expected membership required, got %v", err)
	}
}

func TestResolverResolveActorFromContext(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SetRole("org-1", "u-1", authz.RoleManager)
	r := New(mem)

	ctx := scope.WithOrgID(context.Background(), "org-1")
	ctx = scope.WithUserID(ctx, "u-1")
	ctx = scope.WithRole(ctx, authz.RoleOwner)

	actor, err := r.ResolveActor(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.Role != authz.RoleManager {
		t.Fatalf("role must come from membership, got %q", actor.Role)
	}

	empty, err := r.ResolveActor(context.Background())
	if err != nil || !empty.IsZero() {
		t.Fatalf("expected zero actor, got %+v (%v)", empty, err)
	}
}
