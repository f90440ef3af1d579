package permissions

import (
	"fmt"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
)

const (
	ReasonOnlyOwnersChangeRoles = "only owners can change roles"
	ReasonCannotChangeOwner     = "cannot change owner role, use ownership transfer"
	ReasonCannotPromoteToOwner  = "cannot promote to owner via role change, use ownership transfer"
	ReasonOnlyAdminsAddMembers  = "only owners and admins can add members"
	ReasonOnlyOwnersAddOwners   = "only owners can add other owners"
	ReasonOnlyAdminsRemove      = "only owners and admins can remove members"
	ReasonOnlyOwnersRemoveAdmin = "only owners can remove owners or admins"
)

// MemberChecker answers organization-level membership questions. It holds
// no state and is safe to share.
type MemberChecker struct{}

// NewMemberChecker returns a MemberChecker.
func NewMemberChecker() MemberChecker {
	return MemberChecker{}
}

// CheckMinimumRole reports whether actor is at or above required.
func (MemberChecker) CheckMinimumRole(actor, required authz.Role) bool {
	return actor.AtLeast(required)
}

// RequireMinimumRole is CheckMinimumRole that returns an authorization
// error naming the required role.
func (c MemberChecker) RequireMinimumRole(actor, required authz.Role) error {
	if c.CheckMinimumRole(actor, required) {
		return nil
	}
	return ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, fmt.Sprintf("Requires %s role or higher", required), map[string]any{
		ferrors.MetaRequiredRole: required.String(),
		ferrors.MetaActorRole:    actor.String(),
	})
}

func (MemberChecker) CanManageMembers(role authz.Role) bool {
	return role.In(authz.RoleAdmin, authz.RoleOwner)
}

func (MemberChecker) CanDeleteOrganization(role authz.Role) bool {
	return role == authz.RoleOwner
}

func (MemberChecker) CanViewAllMembers(role authz.Role) bool {
	return role.AtLeast(authz.RoleManager)
}

// CanChangeMemberRole applies the role change rules in order. The owner
// role can only move through ownership transfer.
func (MemberChecker) CanChangeMemberRole(actor, targetCurrent, proposed authz.Role) (bool, string) {
	if actor != authz.RoleOwner {
		return false, ReasonOnlyOwnersChangeRoles
	}
	if targetCurrent == authz.RoleOwner {
		return false, ReasonCannotChangeOwner
	}
	if proposed == authz.RoleOwner {
		return false, ReasonCannotPromoteToOwner
	}
	return true, ""
}

// RequireMemberRoleChange is CanChangeMemberRole returning an error.
func (c MemberChecker) RequireMemberRoleChange(actor, targetCurrent, proposed authz.Role) error {
	ok, reason := c.CanChangeMemberRole(actor, targetCurrent, proposed)
	if ok {
		return nil
	}
	return ferrors.WrapSentinel(ferrors.ErrRoleChangeDenied, reason, map[string]any{
		ferrors.MetaActorRole: actor.String(),
		ferrors.MetaRole:      targetCurrent.String(),
		ferrors.MetaReason:    reason,
	})
}

// CanAddMember reports whether actor may invite someone with proposed role.
func (c MemberChecker) CanAddMember(actor, proposed authz.Role) (bool, string) {
	if !c.CanManageMembers(actor) {
		return false, ReasonOnlyAdminsAddMembers
	}
	if proposed == authz.RoleOwner && actor != authz.RoleOwner {
		return false, ReasonOnlyOwnersAddOwners
	}
	return true, ""
}

// CanRemoveMember reports whether actor may remove a member holding target.
// The last-owner rule needs a member count and is left to the caller.
func (c MemberChecker) CanRemoveMember(actor, target authz.Role) (bool, string) {
	if !c.CanManageMembers(actor) {
		return false, ReasonOnlyAdminsRemove
	}
	if target.In(authz.RoleOwner, authz.RoleAdmin) && actor != authz.RoleOwner {
		return false, ReasonOnlyOwnersRemoveAdmin
	}
	return true, ""
}
