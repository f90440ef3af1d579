package permissions

import "github.com/goliatone/go-dealflow/authz"

// DealPermissions answers the deal-specific role questions asked by the
// lifecycle service.
type DealPermissions interface {
	CanChangeStageBackward(role authz.Role) bool
	CanCreateDeal(role authz.Role) bool
	CanForceCloseDeal(role authz.Role) bool
	CanChangeDealOwner(role authz.Role) bool
	CanViewDealAnalytics(role authz.Role) bool
}

// DealChecker holds deal-specific role predicates. None of them look at
// ownership.
type DealChecker struct{}

func NewDealChecker() DealChecker {
	return DealChecker{}
}

// CanChangeStageBackward must agree with the pipeline engine's backward
// gate; the lifecycle service consults both.
func (DealChecker) CanChangeStageBackward(role authz.Role) bool {
	return role.In(authz.RoleAdmin, authz.RoleOwner)
}

func (DealChecker) CanCreateDeal(authz.Role) bool {
	return true
}

func (DealChecker) CanForceCloseDeal(role authz.Role) bool {
	return role.In(authz.RoleAdmin, authz.RoleOwner)
}

func (DealChecker) CanChangeDealOwner(role authz.Role) bool {
	return role.AtLeast(authz.RoleManager)
}

func (DealChecker) CanViewDealAnalytics(role authz.Role) bool {
	return role.AtLeast(authz.RoleManager)
}

var _ DealPermissions = DealChecker{}
