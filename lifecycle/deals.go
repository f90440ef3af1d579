package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/policy"
)

// CreateInput describes a new deal. OrgID and OwnerID default to the
// actor's; Currency defaults to the org policy.
type CreateInput struct {
	ID        string
	OrgID     string
	ContactID string
	OwnerID   string
	Title     string
	Amount    decimal.Decimal
	Currency  string
}

// Changes is a partial update. Nil fields are left alone.
type Changes struct {
	Title    *string
	Amount   *decimal.Decimal
	Currency *string
	Stage    *deal.Stage
	Status   *deal.Status
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Amount == nil && c.Currency == nil && c.Stage == nil && c.Status == nil
}

// CreateDeal stores a new deal in status new and stage qualification and
// records a system activity.
func (s *Service) CreateDeal(ctx context.Context, input CreateInput, actor authz.Actor) (deal.Deal, error) {
	if err := requireOrg(actor); err != nil {
		return deal.Deal{}, err
	}
	orgID := strings.TrimSpace(input.OrgID)
	if orgID == "" {
		orgID = actor.OrgID
	}
	target := deal.Deal{OrgID: orgID}
	if actor.OrgID != orgID {
		err := ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, "Cannot create deals in another organization", map[string]any{
			ferrors.MetaOrgID:   orgID,
			ferrors.MetaActorID: actor.UserID,
		})
		s.decide(ctx, OperationCreate, actor, target, authz.Decision{Rule: authz.RuleMinimumRole, Reason: reasonOf(err)})
		return deal.Deal{}, err
	}
	if !actor.Role.Valid() || !s.dealPerms.CanCreateDeal(actor.Role) {
		err := ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, fmt.Sprintf("Requires %s role or higher", authz.RoleMember), map[string]any{
			ferrors.MetaActorID:      actor.UserID,
			ferrors.MetaActorRole:    actor.Role.String(),
			ferrors.MetaRequiredRole: authz.RoleMember.String(),
		})
		s.decide(ctx, OperationCreate, actor, target, authz.Decision{Rule: authz.RuleMinimumRole, Reason: reasonOf(err)})
		return deal.Deal{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrTitleRequired, "", nil)
	}
	if input.Amount.IsNegative() {
		return deal.Deal{}, negativeAmount(input.Amount)
	}
	p, err := s.policy(ctx, orgID)
	if err != nil {
		return deal.Deal{}, err
	}
	currency := deal.NormalizeCurrency(input.Currency)
	if currency == "" {
		currency = deal.NormalizeCurrency(p.DefaultCurrency)
	}
	if !p.SupportsCurrency(currency) {
		return deal.Deal{}, unsupportedCurrency(currency)
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		ownerID = actor.UserID
	}
	if ownerID == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrOwnerRequired, "", nil)
	}
	if ownerID != actor.UserID {
		if err := s.requireMember(ctx, orgID, ownerID); err != nil {
			return deal.Deal{}, err
		}
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = s.newID()
	}
	now := s.now()
	created := deal.Deal{
		ID:        id,
		OrgID:     orgID,
		ContactID: strings.TrimSpace(input.ContactID),
		OwnerID:   ownerID,
		Title:     title,
		Amount:    input.Amount,
		Currency:  currency,
		Status:    deal.StatusNew,
		Stage:     deal.StageQualification,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec := record{
		kind: activity.KindSystem,
		payload: map[string]any{
			activity.PayloadMessage: "Deal created",
			"amount":                created.Amount.String(),
			"currency":              created.Currency,
		},
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deals.Create(ctx, created); err != nil {
			return s.storeError(err, ferrors.TextCodeStoreWriteFailed, id)
		}
		if err := s.sink.Record(ctx, id, rec.kind, rec.payload, actor.UserID); err != nil {
			return s.storeError(err, ferrors.TextCodeActivityWriteFailed, id)
		}
		return nil
	})
	if err != nil {
		s.logFailure(OperationCreate, id, err)
		return deal.Deal{}, err
	}
	s.logger.Debug("deal created", "deal_id", id, "org_id", orgID, "actor_id", actor.UserID)
	s.publish(ctx, created, actor, []record{rec})
	return created, nil
}

// Update applies title, amount, currency, stage and status in that order
// in one transaction. The won check sees the new amount.
func (s *Service) Update(ctx context.Context, dealID string, changes Changes, actor authz.Actor) (deal.Deal, error) {
	if changes.Status != nil && !changes.Status.Valid() {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrInvalidStatus, "", map[string]any{
			ferrors.MetaDealID:   dealID,
			ferrors.MetaToStatus: string(*changes.Status),
		})
	}
	if changes.Stage != nil && *changes.Stage == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrInvalidStage, "", map[string]any{
			ferrors.MetaDealID: dealID,
		})
	}
	return s.mutate(ctx, OperationUpdate, dealID, actor, func(ctx context.Context, current deal.Deal, p policy.Policy) (deal.Deal, []record, error) {
		diff := diffChanges(current, changes)
		if diff.empty() {
			return current, nil, nil
		}
		if err := s.checkOwnership(ctx, OperationUpdate, actor, current, p, false); err != nil {
			return current, nil, err
		}

		next := current
		fields := map[string]any{}
		if diff.title != nil {
			if *diff.title == "" {
				return current, nil, ferrors.WrapSentinel(ferrors.ErrTitleRequired, "", map[string]any{ferrors.MetaDealID: current.ID})
			}
			fields["title"] = map[string]any{"old": current.Title, "new": *diff.title}
			next.Title = *diff.title
		}
		if diff.amount != nil {
			if diff.amount.IsNegative() {
				return current, nil, negativeAmount(*diff.amount)
			}
			fields["amount"] = map[string]any{"old": current.Amount.String(), "new": diff.amount.String()}
			next.Amount = *diff.amount
		}
		if diff.currency != nil {
			if !p.SupportsCurrency(*diff.currency) {
				return current, nil, unsupportedCurrency(*diff.currency)
			}
			fields["currency"] = map[string]any{"old": current.Currency, "new": *diff.currency}
			next.Currency = *diff.currency
		}

		var recs []record
		if len(fields) > 0 {
			recs = append(recs, record{
				kind: activity.KindSystem,
				payload: map[string]any{
					activity.PayloadMessage: "Deal updated",
					activity.PayloadChanges: fields,
				},
			})
		}
		if diff.stage != nil {
			staged, rec, err := s.applyStage(ctx, OperationUpdate, actor, next, *diff.stage, p)
			if err != nil {
				return current, nil, err
			}
			next = staged
			recs = append(recs, rec)
		}
		if diff.status != nil && *diff.status != next.Status {
			updated, rec, err := s.applyStatus(next, *diff.status)
			if err != nil {
				return current, nil, err
			}
			next = updated
			recs = append(recs, rec)
		}
		return next, recs, nil
	})
}

// ReassignOwner hands the deal to another member. Manager and above only.
func (s *Service) ReassignOwner(ctx context.Context, dealID, newOwnerID string, actor authz.Actor) (deal.Deal, error) {
	newOwnerID = strings.TrimSpace(newOwnerID)
	if newOwnerID == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrOwnerRequired, "", map[string]any{ferrors.MetaDealID: dealID})
	}
	return s.mutate(ctx, OperationReassignOwner, dealID, actor, func(ctx context.Context, current deal.Deal, _ policy.Policy) (deal.Deal, []record, error) {
		if current.OwnerID == newOwnerID {
			return current, nil, nil
		}
		allowed := s.dealPerms.CanChangeDealOwner(actor.Role)
		decision := authz.Decision{Allowed: allowed, Rule: authz.RuleDealOwner}
		if !allowed {
			decision.Reason = fmt.Sprintf("Requires %s role or higher", authz.RoleManager)
		}
		s.decide(ctx, OperationReassignOwner, actor, current, decision)
		if !allowed {
			return current, nil, ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, decision.Reason, map[string]any{
				ferrors.MetaDealID:       current.ID,
				ferrors.MetaActorID:      actor.UserID,
				ferrors.MetaActorRole:    actor.Role.String(),
				ferrors.MetaRequiredRole: authz.RoleManager.String(),
			})
		}
		if err := s.requireMember(ctx, current.OrgID, newOwnerID); err != nil {
			return current, nil, err
		}

		next := current
		next.OwnerID = newOwnerID
		return next, []record{{
			kind: activity.KindOwnerChanged,
			payload: map[string]any{
				activity.PayloadOldOwner: current.OwnerID,
				activity.PayloadNewOwner: newOwnerID,
			},
		}}, nil
	})
}

// Delete removes a deal and its activity when the org's delete strategy
// allows it.
func (s *Service) Delete(ctx context.Context, dealID string, actor authz.Actor) error {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return ferrors.WrapSentinel(ferrors.ErrDealIDRequired, "", nil)
	}
	var (
		removed deal.Deal
		err     error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			current, err := s.load(ctx, dealID, actor)
			if err != nil {
				return err
			}
			p, err := s.policy(ctx, current.OrgID)
			if err != nil {
				return err
			}
			if err := s.checkOwnership(ctx, OperationDelete, actor, current, p, true); err != nil {
				return err
			}
			if err := s.deals.Delete(ctx, dealID, current.Version); err != nil {
				return s.storeError(err, ferrors.TextCodeStoreWriteFailed, dealID)
			}
			removed = current
			return nil
		})
		if err == nil || !errors.Is(err, ferrors.ErrVersionConflict) {
			break
		}
		if attempt < maxAttempts {
			s.logger.Warn("deal version conflict, retrying", "deal_id", dealID, "operation", OperationDelete, "attempt", attempt)
		}
	}
	if err != nil {
		if errors.Is(err, ferrors.ErrVersionConflict) {
			return ferrors.WrapSentinel(ferrors.ErrVersionConflict, "deal was modified concurrently, retry the request", map[string]any{
				ferrors.MetaDealID:    dealID,
				ferrors.MetaOperation: OperationDelete,
				ferrors.MetaAttempt:   maxAttempts,
			})
		}
		s.logFailure(OperationDelete, dealID, err)
		return err
	}
	s.publish(ctx, removed, actor, []record{{
		kind:    activity.KindSystem,
		payload: map[string]any{activity.PayloadMessage: "Deal deleted"},
	}})
	return nil
}

// Get loads a deal visible to the actor.
func (s *Service) Get(ctx context.Context, dealID string, actor authz.Actor) (deal.Deal, error) {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrDealIDRequired, "", nil)
	}
	return s.load(ctx, dealID, actor)
}

// Timeline lists a deal's activity newest first with the total count.
func (s *Service) Timeline(ctx context.Context, dealID string, actor authz.Actor, page activity.Page) ([]activity.Entry, int, error) {
	if s.timeline == nil {
		return nil, 0, ferrors.WrapSentinel(ferrors.ErrActivitySinkRequired, "activity timeline is not configured", nil)
	}
	current, err := s.Get(ctx, dealID, actor)
	if err != nil {
		return nil, 0, err
	}
	entries, total, err := s.timeline.List(ctx, current.ID, page.Normalize())
	if err != nil {
		return nil, 0, s.storeError(err, ferrors.TextCodeStoreReadFailed, current.ID)
	}
	return entries, total, nil
}

// requireMember checks the user belongs to the org when a membership
// lookup is configured.
func (s *Service) requireMember(ctx context.Context, orgID, userID string) error {
	if s.members == nil {
		return nil
	}
	if _, err := s.members.GetRole(ctx, orgID, userID); err != nil {
		if ferrors.IsNotFound(err) {
			return ferrors.WrapSentinel(ferrors.ErrNotAMember, "", map[string]any{
				ferrors.MetaOrgID:   orgID,
				ferrors.MetaActorID: userID,
			})
		}
		return ferrors.WrapExternal(err, ferrors.TextCodeMembershipLookupFailed, "membership lookup failed", map[string]any{
			ferrors.MetaOrgID: orgID,
		})
	}
	return nil
}

type changeSet struct {
	title    *string
	amount   *decimal.Decimal
	currency *string
	stage    *deal.Stage
	status   *deal.Status
}

func (c changeSet) empty() bool {
	return c.title == nil && c.amount == nil && c.currency == nil && c.stage == nil && c.status == nil
}

// diffChanges keeps only the fields that differ from current.
func diffChanges(current deal.Deal, changes Changes) changeSet {
	var out changeSet
	if changes.Title != nil {
		if title := strings.TrimSpace(*changes.Title); title != current.Title {
			out.title = &title
		}
	}
	if changes.Amount != nil && !changes.Amount.Equal(current.Amount) {
		amount := *changes.Amount
		out.amount = &amount
	}
	if changes.Currency != nil {
		if code := deal.NormalizeCurrency(*changes.Currency); code != "" && code != current.Currency {
			out.currency = &code
		}
	}
	if changes.Stage != nil && *changes.Stage != current.Stage {
		stage := *changes.Stage
		out.stage = &stage
	}
	if changes.Status != nil && *changes.Status != current.Status {
		status := *changes.Status
		out.status = &status
	}
	return out
}

func negativeAmount(amount decimal.Decimal) error {
	return ferrors.WrapSentinel(ferrors.ErrNegativeAmount, "", map[string]any{
		ferrors.MetaAmount: amount.String(),
	})
}

func unsupportedCurrency(code string) error {
	return ferrors.WrapSentinel(ferrors.ErrUnsupportedCurrency, fmt.Sprintf("Currency '%s' is not supported", code), map[string]any{
		ferrors.MetaCurrency: code,
	})
}
