package store

import (
	"context"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
)

// DealReader loads deals by id. Missing deals return ferrors.ErrDealNotFound.
type DealReader interface {
	Load(ctx context.Context, id string) (deal.Deal, error)
}

// DealWriter persists deals. Save and Delete fail with
// ferrors.ErrVersionConflict when the stored version differs from
// expectedVersion.
type DealWriter interface {
	Create(ctx context.Context, d deal.Deal) error
	Save(ctx context.Context, d deal.Deal, expectedVersion int64) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

// DealStore is a combined reader and writer.
type DealStore interface {
	DealReader
	DealWriter
}

// MembershipLookup resolves a user's role in an organization. Non-members
// return ferrors.ErrNotAMember.
type MembershipLookup interface {
	GetRole(ctx context.Context, orgID, userID string) (authz.Role, error)
}

// MembershipLookupFunc adapts a function to MembershipLookup.
type MembershipLookupFunc func(ctx context.Context, orgID, userID string) (authz.Role, error)

// GetRole implements MembershipLookup.
func (fn MembershipLookupFunc) GetRole(ctx context.Context, orgID, userID string) (authz.Role, error) {
	return fn(ctx, orgID, userID)
}

// TxRunner runs fn inside one transaction. Stores reached through the
// context passed to fn take part in it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx runs fn directly.
type NoTx struct{}

// RunInTx implements TxRunner.
func (NoTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
