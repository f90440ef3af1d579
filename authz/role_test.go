package authz

import (
	"errors"
	"testing"

	"github.com/goliatone/go-dealflow/ferrors"
)

func TestRoleOrderIsTotal(t *testing.T) {
	roles := Roles()
	for _, a := range roles {
		for _, b := range roles {
			cmp := Compare(a, b)
			less, equal, greater := cmp < 0, cmp == 0, cmp > 0
			count := 0
			for _, v := range []bool{less, equal, greater} {
				if v {
					count++
				}
			}
			if count != 1 {
				t.Fatalf("expected exactly one relation for %s/%s", a, b)
			}
			if Compare(b, a) != -cmp {
				t.Fatalf("expected antisymmetry for %s/%s", a, b)
			}
			if equal != (a == b) {
				t.Fatalf("level must be injective: %s/%s", a, b)
			}
		}
	}
}

func TestRoleHierarchyIsStrict(t *testing.T) {
	if !(RoleOwner.Above(RoleAdmin) && RoleAdmin.Above(RoleManager) && RoleManager.Above(RoleMember)) {
		t.Fatalf("expected owner > admin > manager > member")
	}
	if RoleMember.Above(RoleMember) {
		t.Fatalf("role must not be above itself")
	}
}

func TestAtLeastIsReflexive(t *testing.T) {
	for _, role := range Roles() {
		if !role.AtLeast(role) {
			t.Fatalf("expected %s to satisfy itself", role)
		}
	}
}

func TestUnknownRoleNeverSatisfies(t *testing.T) {
	unknown := Role("guest")
	if unknown.AtLeast(RoleMember) {
		t.Fatalf("unknown role must not satisfy member")
	}
	if unknown.Level() != 0 {
		t.Fatalf("expected level 0, got %d", unknown.Level())
	}
}

func TestComparisonUsesLevelsNotLexicalOrder(t *testing.T) {
	// "admin" < "manager" lexically, but admin outranks manager.
	if Compare(RoleAdmin, RoleManager) != 1 {
		t.Fatalf("expected admin above manager")
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  ADMIN ")
	if err != nil || role != RoleAdmin {
		t.Fatalf("expected admin, got %q (%v)", role, err)
	}
	_, err = ParseRole("root")
	if !errors.Is(err, ferrors.ErrInvalidRole) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestActorOwnsIgnoresEmptyOwner(t *testing.T) {
	actor := Actor{UserID: "", Role: RoleMember}
	if actor.Owns("") {
		t.Fatalf("empty ids must not match")
	}
	actor.UserID = "u-1"
	if actor.Owns("") || !actor.Owns("u-1") {
		t.Fatalf("unexpected ownership result")
	}
}

func TestNormalizeResourceType(t *testing.T) {
	if NormalizeResourceType(" Deals ") != ResourceDeal {
		t.Fatalf("expected alias to resolve")
	}
	if NormalizeResourceType("").Label() != "resource" {
		t.Fatalf("expected fallback label")
	}
}
