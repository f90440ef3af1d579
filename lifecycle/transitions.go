package lifecycle

import (
	"context"
	"fmt"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/pipeline"
	"github.com/goliatone/go-dealflow/policy"
)

// ChangeStatus moves a deal to status. Setting the current status again is
// a no-op without activity. Won and lost force the terminal stage.
func (s *Service) ChangeStatus(ctx context.Context, dealID string, status deal.Status, actor authz.Actor) (deal.Deal, error) {
	if !status.Valid() {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrInvalidStatus, "", map[string]any{
			ferrors.MetaDealID:   dealID,
			ferrors.MetaToStatus: string(status),
		})
	}
	return s.mutate(ctx, OperationChangeStatus, dealID, actor, func(ctx context.Context, current deal.Deal, p policy.Policy) (deal.Deal, []record, error) {
		if current.Status == status {
			return current, nil, nil
		}
		if err := s.checkOwnership(ctx, OperationChangeStatus, actor, current, p, false); err != nil {
			return current, nil, err
		}
		next, rec, err := s.applyStatus(current, status)
		if err != nil {
			return current, nil, err
		}
		return next, []record{rec}, nil
	})
}

// ChangeStage moves a deal to stage after the stage engine approves the
// edge for the actor's role.
func (s *Service) ChangeStage(ctx context.Context, dealID string, stage deal.Stage, actor authz.Actor) (deal.Deal, error) {
	if stage == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrInvalidStage, "", map[string]any{
			ferrors.MetaDealID: dealID,
		})
	}
	return s.mutate(ctx, OperationChangeStage, dealID, actor, func(ctx context.Context, current deal.Deal, p policy.Policy) (deal.Deal, []record, error) {
		if current.Stage == stage {
			return current, nil, nil
		}
		if err := s.checkOwnership(ctx, OperationChangeStage, actor, current, p, false); err != nil {
			return current, nil, err
		}
		next, rec, err := s.applyStage(ctx, OperationChangeStage, actor, current, stage, p)
		if err != nil {
			return current, nil, err
		}
		return next, []record{rec}, nil
	})
}

// applyStatus enforces the status invariants against current.
func (s *Service) applyStatus(current deal.Deal, status deal.Status) (deal.Deal, record, error) {
	meta := map[string]any{
		ferrors.MetaDealID:     current.ID,
		ferrors.MetaFromStatus: string(current.Status),
		ferrors.MetaToStatus:   string(status),
	}
	if current.Status.IsTerminal() {
		return current, record{}, ferrors.WrapSentinel(ferrors.ErrTerminalStatus,
			fmt.Sprintf("Cannot change status from terminal state '%s'", current.Status), meta)
	}
	if status == deal.StatusWon && !current.HasPositiveAmount() {
		meta[ferrors.MetaAmount] = current.Amount.String()
		return current, record{}, ferrors.WrapSentinel(ferrors.ErrWonRequiresAmount,
			fmt.Sprintf("Cannot mark deal as won with amount %s. Amount must be greater than 0.", current.Amount.String()), meta)
	}

	next := current
	next.Status = status
	if status.IsTerminal() {
		next.Stage = s.engine.TerminalStage()
	}
	return next, record{
		kind: activity.KindStatusChanged,
		payload: map[string]any{
			activity.PayloadOldStatus: string(current.Status),
			activity.PayloadNewStatus: string(status),
		},
	}, nil
}

// applyStage enforces the terminal lock and consults both the engine and
// the deal checker for backward moves.
func (s *Service) applyStage(ctx context.Context, operation string, actor authz.Actor, current deal.Deal, stage deal.Stage, p policy.Policy) (deal.Deal, record, error) {
	meta := map[string]any{
		ferrors.MetaDealID:    current.ID,
		ferrors.MetaFromStage: string(current.Stage),
		ferrors.MetaToStage:   string(stage),
	}
	if p.LockTerminalStage && current.Status.IsTerminal() {
		meta[ferrors.MetaFromStatus] = string(current.Status)
		return current, record{}, ferrors.WrapSentinel(ferrors.ErrTerminalStage,
			fmt.Sprintf("Cannot change stage of a deal with terminal status '%s'", current.Status), meta)
	}

	verdict := s.engine.Evaluate(current.Stage, stage, actor.Role)
	if verdict.Denial == pipeline.DenialInvalid {
		s.decide(ctx, operation, actor, current, authz.Decision{Rule: authz.RuleTransition, Reason: verdict.Reason})
		return current, record{}, ferrors.WrapSentinel(ferrors.ErrInvalidTransition, verdict.Reason, meta)
	}
	if verdict.Backward {
		allowed := verdict.Allowed && s.dealPerms.CanChangeStageBackward(actor.Role)
		reason := verdict.Reason
		if !allowed && reason == "" {
			reason = pipeline.BackwardReason
		}
		s.decide(ctx, operation, actor, current, authz.Decision{Allowed: allowed, Rule: authz.RuleBackwardStage, Reason: reason})
		if !allowed {
			meta[ferrors.MetaActorID] = actor.UserID
			meta[ferrors.MetaActorRole] = actor.Role.String()
			meta[ferrors.MetaRequiredRole] = authz.RoleAdmin.String()
			return current, record{}, ferrors.WrapSentinel(ferrors.ErrBackwardStageDenied, reason, meta)
		}
	}

	next := current
	next.Stage = stage
	return next, record{
		kind: activity.KindStageChanged,
		payload: map[string]any{
			activity.PayloadOldStage: string(current.Stage),
			activity.PayloadNewStage: string(stage),
		},
	}, nil
}
