package permissions

import (
	"strings"

	"github.com/goliatone/go-dealflow/authz"
)

// Strategy decides whether an actor may modify or delete a resource owned
// by ownerID. An empty ownerID never grants access through ownership.
type Strategy interface {
	Name() string
	CanModify(actorID, ownerID string, role authz.Role) bool
	CanDelete(actorID, ownerID string, role authz.Role) bool
}

const (
	StrategyAdminOrOwner           = "admin_or_owner"
	StrategyOwnerOrResourceOwner   = "owner_or_resource_owner"
	StrategyManagerOrResourceOwner = "manager_or_resource_owner"
)

// DefaultStrategy is the policy applied to contacts, deals and tasks when
// nothing else is configured: admins and owners, or the resource owner.
var DefaultStrategy Strategy = OwnerOrResourceOwner{}

// AdminOrOwner grants admins and organization owners only.
type AdminOrOwner struct{}

func (AdminOrOwner) Name() string { return StrategyAdminOrOwner }

func (AdminOrOwner) CanModify(_, _ string, role authz.Role) bool {
	return isAdminOrOwner(role)
}

func (s AdminOrOwner) CanDelete(actorID, ownerID string, role authz.Role) bool {
	return s.CanModify(actorID, ownerID, role)
}

// OwnerOrResourceOwner grants admins, organization owners and the user that
// owns the resource.
type OwnerOrResourceOwner struct{}

func (OwnerOrResourceOwner) Name() string { return StrategyOwnerOrResourceOwner }

func (OwnerOrResourceOwner) CanModify(actorID, ownerID string, role authz.Role) bool {
	return isAdminOrOwner(role) || ownsResource(actorID, ownerID)
}

func (s OwnerOrResourceOwner) CanDelete(actorID, ownerID string, role authz.Role) bool {
	return s.CanModify(actorID, ownerID, role)
}

// ManagerOrResourceOwner grants managers and above, or the resource owner.
type ManagerOrResourceOwner struct{}

func (ManagerOrResourceOwner) Name() string { return StrategyManagerOrResourceOwner }

func (ManagerOrResourceOwner) CanModify(actorID, ownerID string, role authz.Role) bool {
	return role.AtLeast(authz.RoleManager) || ownsResource(actorID, ownerID)
}

func (s ManagerOrResourceOwner) CanDelete(actorID, ownerID string, role authz.Role) bool {
	return s.CanModify(actorID, ownerID, role)
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyAdminOrOwner:
		return AdminOrOwner{}, true
	case StrategyOwnerOrResourceOwner:
		return OwnerOrResourceOwner{}, true
	case StrategyManagerOrResourceOwner:
		return ManagerOrResourceOwner{}, true
	default:
		return nil, false
	}
}

// ViewStrategy decides read access to a resource.
type ViewStrategy interface {
	CanView(actorID, ownerID string, role authz.Role) bool
}

// AllRolesCanView lets every member read.
type AllRolesCanView struct{}

func (AllRolesCanView) CanView(_, _ string, role authz.Role) bool {
	return role.Valid()
}

// ManagerAndAboveCanView restricts reads to managers and above, plus the
// resource owner.
type ManagerAndAboveCanView struct{}

func (ManagerAndAboveCanView) CanView(actorID, ownerID string, role authz.Role) bool {
	return role.AtLeast(authz.RoleManager) || ownsResource(actorID, ownerID)
}

func isAdminOrOwner(role authz.Role) bool {
	return role.In(authz.RoleAdmin, authz.RoleOwner)
}

func ownsResource(actorID, ownerID string) bool {
	return ownerID != "" && actorID != "" && actorID == ownerID
}

var (
	_ Strategy     = AdminOrOwner{}
	_ Strategy     = OwnerOrResourceOwner{}
	_ Strategy     = ManagerOrResourceOwner{}
	_ ViewStrategy = AllRolesCanView{}
	_ ViewStrategy = ManagerAndAboveCanView{}
)
