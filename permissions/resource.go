package permissions

import (
	"fmt"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
)

// ResourceChecker answers ownership questions through a Strategy.
type ResourceChecker struct {
	strategy Strategy
}

// ResourceOption customizes a ResourceChecker.
type ResourceOption func(*ResourceChecker)

// WithStrategy selects the ownership strategy.
func WithStrategy(strategy Strategy) ResourceOption {
	return func(c *ResourceChecker) {
		if c == nil {
			return
		}
		c.strategy = strategy
	}
}

// NewResourceChecker builds a checker. Without WithStrategy it uses
// DefaultStrategy.
func NewResourceChecker(opts ...ResourceOption) ResourceChecker {
	c := ResourceChecker{strategy: DefaultStrategy}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if c.strategy == nil {
		c.strategy = DefaultStrategy
	}
	return c
}

// Strategy returns the active strategy.
func (c ResourceChecker) Strategy() Strategy {
	if c.strategy == nil {
		return DefaultStrategy
	}
	return c.strategy
}

func (ResourceChecker) CanViewAllResources(role authz.Role) bool {
	return role.AtLeast(authz.RoleManager)
}

// CanCreateResource is true for every role.
func (ResourceChecker) CanCreateResource(authz.Role) bool {
	return true
}

func (c ResourceChecker) CanModifyResource(actorID, ownerID string, role authz.Role) bool {
	return c.Strategy().CanModify(actorID, ownerID, role)
}

func (c ResourceChecker) CanDeleteResource(actorID, ownerID string, role authz.Role) bool {
	return c.Strategy().CanDelete(actorID, ownerID, role)
}

// CheckResourceOwnership returns an ownership error when the actor may not
// modify the resource.
func (c ResourceChecker) CheckResourceOwnership(actorID, ownerID string, role authz.Role, resourceType authz.ResourceType, resourceID string) error {
	if c.CanModifyResource(actorID, ownerID, role) {
		return nil
	}
	return ownershipError(actorID, role, resourceType, resourceID, "modify")
}

// CheckResourceDeletion is CheckResourceOwnership for deletes.
func (c ResourceChecker) CheckResourceDeletion(actorID, ownerID string, role authz.Role, resourceType authz.ResourceType, resourceID string) error {
	if c.CanDeleteResource(actorID, ownerID, role) {
		return nil
	}
	return ownershipError(actorID, role, resourceType, resourceID, "delete")
}

func ownershipError(actorID string, role authz.Role, resourceType authz.ResourceType, resourceID, verb string) error {
	return ferrors.WrapSentinel(ferrors.ErrOwnershipDenied, fmt.Sprintf("You don't have permission to %s this %s", verb, resourceType.Label()), map[string]any{
		ferrors.MetaResourceType: resourceType.String(),
		ferrors.MetaResourceID:   resourceID,
		ferrors.MetaActorID:      actorID,
		ferrors.MetaActorRole:    role.String(),
		ferrors.MetaOperation:    verb,
	})
}
