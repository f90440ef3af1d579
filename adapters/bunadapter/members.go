package bunadapter

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/store"
)

// GetRole implements store.MembershipLookup.
func (s *Store) GetRole(ctx context.Context, orgID, userID string) (authz.Role, error) {
	if s == nil || s.db == nil {
		return "", dbRequired("get_role")
	}
	record := MemberRecord{}
	err := s.conn(ctx).NewSelect().Model(&record).
		Where("org_id = ?", orgID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ferrors.WrapSentinel(ferrors.ErrNotAMember, "", map[string]any{
				ferrors.MetaOrgID:   orgID,
				ferrors.MetaActorID: userID,
			})
		}
		return "", ferrors.WrapExternal(err, ferrors.TextCodeMembershipLookupFailed, "bunadapter: membership lookup failed", map[string]any{
			ferrors.MetaAdapter: "bun",
			ferrors.MetaOrgID:   orgID,
		})
	}
	return record.role(), nil
}

// SetRole upserts a membership.
func (s *Store) SetRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	if s == nil || s.db == nil {
		return dbRequired("set_role")
	}
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return ferrors.WrapSentinel(ferrors.ErrScopeRequired, "bunadapter: org and user are required", nil)
	}
	if !role.Valid() {
		return ferrors.WrapSentinel(ferrors.ErrInvalidRole, "", map[string]any{ferrors.MetaRole: string(role)})
	}
	record := MemberRecord{
		OrgID:     orgID,
		UserID:    userID,
		Role:      string(role),
		UpdatedAt: s.now(),
	}
	_, err := s.conn(ctx).NewInsert().Model(&record).
		On("CONFLICT (org_id, user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return ferrors.WrapExternal(err, ferrors.TextCodeStoreWriteFailed, "bunadapter: set role failed", map[string]any{
			ferrors.MetaAdapter: "bun",
			ferrors.MetaOrgID:   orgID,
		})
	}
	return nil
}

// RemoveMember deletes a membership row.
func (s *Store) RemoveMember(ctx context.Context, orgID, userID string) error {
	if s == nil || s.db == nil {
		return dbRequired("remove_member")
	}
	_, err := s.conn(ctx).NewDelete().Model((*MemberRecord)(nil)).
		Where("org_id = ?", orgID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return ferrors.WrapExternal(err, ferrors.TextCodeStoreWriteFailed, "bunadapter: remove member failed", map[string]any{
			ferrors.MetaAdapter: "bun",
			ferrors.MetaOrgID:   orgID,
		})
	}
	return nil
}

var _ store.MembershipLookup = (*Store)(nil)
