package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/logger"
	"github.com/goliatone/go-dealflow/permissions"
	"github.com/goliatone/go-dealflow/pipeline"
	"github.com/goliatone/go-dealflow/policy"
	"github.com/goliatone/go-dealflow/store"
	"github.com/goliatone/go-dealflow/urlbuilder"
)

// Operation names reported to decision hooks and logs.
const (
	OperationChangeStatus  = "change_status"
	OperationChangeStage   = "change_stage"
	OperationCreate        = "create"
	OperationUpdate        = "update"
	OperationReassignOwner = "reassign_owner"
	OperationDelete        = "delete"
	OperationGet           = "get"
	OperationTimeline      = "timeline"
)

// Route names used when building deal links for activity events.
const (
	LinkGroup = "dealflow"
	LinkRoute = "deal"
)

// maxAttempts bounds the optimistic retry loop: one try plus one retry.
const maxAttempts = 2

// Service orchestrates deal mutations: permission checks, the stage
// engine, invariants, persistence and the activity trail.
type Service struct {
	deals     store.DealStore
	sink      activity.Sink
	timeline  activity.Timeline
	tx        store.TxRunner
	engine    *pipeline.Engine
	policies  policy.Source
	members   store.MembershipLookup
	dealPerms permissions.DealPermissions
	logger    logger.Logger
	hook      activity.Hook
	decisions authz.DecisionHook
	urls      urlbuilder.Builder
	now       func() time.Time
	newID     func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithDealStore sets the deal store. Required.
func WithDealStore(deals store.DealStore) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.deals = deals
	}
}

// WithActivitySink sets the activity sink. Required. When the sink also
// implements activity.Timeline it backs Timeline.
func WithActivitySink(sink activity.Sink) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.sink = sink
		if timeline, ok := sink.(activity.Timeline); ok && s.timeline == nil {
			s.timeline = timeline
		}
	}
}

// WithTimeline sets the activity reader used by Timeline.
func WithTimeline(timeline activity.Timeline) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.timeline = timeline
	}
}

// WithTxRunner sets the transaction runner. Defaults to store.NoTx.
func WithTxRunner(tx store.TxRunner) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.tx = tx
	}
}

// WithEngine sets the stage transition engine.
func WithEngine(engine *pipeline.Engine) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.engine = engine
	}
}

// WithPolicySource sets where per-org policy comes from.
func WithPolicySource(src policy.Source) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.policies = src
	}
}

// WithMembershipLookup enables membership validation for reassignment.
func WithMembershipLookup(lookup store.MembershipLookup) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.members = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.logger = l
	}
}

// WithDealChecker replaces the deal role predicates. The stage engine still
// gates backward moves on its own.
func WithDealChecker(checker permissions.DealPermissions) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.dealPerms = checker
	}
}

// WithActivityHook sets the hook notified after each committed mutation.
func WithActivityHook(hook activity.Hook) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.hook = hook
	}
}

// WithDecisionHook sets the hook notified after each authorization check.
func WithDecisionHook(hook authz.DecisionHook) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.decisions = hook
	}
}

// WithURLBuilder enables deal links on activity events.
func WithURLBuilder(urls urlbuilder.Builder) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.urls = urls
	}
}

// WithNowFunc sets the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.now = now
	}
}

// WithIDGenerator sets the deal id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if s == nil {
			return
		}
		s.newID = fn
	}
}

// New constructs a Service. A deal store and an activity sink are required.
func New(opts ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.deals == nil {
		return nil, ferrors.WrapSentinel(ferrors.ErrDealStoreRequired, "", nil)
	}
	if s.sink == nil {
		return nil, ferrors.WrapSentinel(ferrors.ErrActivitySinkRequired, "", nil)
	}
	if s.tx == nil {
		if runner, ok := s.deals.(store.TxRunner); ok {
			s.tx = runner
		} else {
			s.tx = store.NoTx{}
		}
	}
	if s.engine == nil {
		s.engine = pipeline.Default()
	}
	if s.policies == nil {
		s.policies = policy.NewStatic(policy.Default())
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.hook == nil {
		s.hook = activity.NoopHook{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.dealPerms == nil {
		s.dealPerms = permissions.NewDealChecker()
	}
	return s, nil
}

// Engine returns the stage engine in use.
func (s *Service) Engine() *pipeline.Engine {
	return s.engine
}

type record struct {
	kind    activity.Kind
	payload map[string]any
}

// step inspects the current deal and returns the next state plus the
// activity to record. No records means nothing changed.
type step func(ctx context.Context, current deal.Deal, p policy.Policy) (deal.Deal, []record, error)

// mutate runs load, step, save and record inside one transaction. A
// version conflict is retried once from a fresh load.
func (s *Service) mutate(ctx context.Context, operation, dealID string, actor authz.Actor, fn step) (deal.Deal, error) {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrDealIDRequired, "", nil)
	}

	var (
		result  deal.Deal
		records []record
		err     error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, records, err = s.attempt(ctx, dealID, actor, fn)
		if err == nil || !errors.Is(err, ferrors.ErrVersionConflict) {
			break
		}
		if attempt < maxAttempts {
			s.logger.Warn("deal version conflict, retrying", "deal_id", dealID, "operation", operation, "attempt", attempt)
		}
	}
	if err != nil {
		if errors.Is(err, ferrors.ErrVersionConflict) {
			return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrVersionConflict, "deal was modified concurrently, retry the request", map[string]any{
				ferrors.MetaDealID:    dealID,
				ferrors.MetaOperation: operation,
				ferrors.MetaAttempt:   maxAttempts,
			})
		}
		s.logFailure(operation, dealID, err)
		return deal.Deal{}, err
	}
	s.publish(ctx, result, actor, records)
	return result, nil
}

func (s *Service) attempt(ctx context.Context, dealID string, actor authz.Actor, fn step) (deal.Deal, []record, error) {
	var (
		result  deal.Deal
		records []record
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, dealID, actor)
		if err != nil {
			return err
		}
		p, err := s.policy(ctx, current.OrgID)
		if err != nil {
			return err
		}
		next, recs, err := fn(ctx, current, p)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			result = current
			return nil
		}
		next.Version = current.Version + 1
		next.UpdatedAt = s.now()
		if err := s.deals.Save(ctx, next, current.Version); err != nil {
			return s.storeError(err, ferrors.TextCodeStoreWriteFailed, dealID)
		}
		for _, rec := range recs {
			if err := s.sink.Record(ctx, dealID, rec.kind, rec.payload, actor.UserID); err != nil {
				return s.storeError(err, ferrors.TextCodeActivityWriteFailed, dealID)
			}
		}
		result, records = next, recs
		return nil
	})
	if err != nil {
		return deal.Deal{}, nil, err
	}
	return result, records, nil
}

// load reads a deal and hides deals that belong to another organization.
// Actors without an organization see no deals.
func (s *Service) load(ctx context.Context, dealID string, actor authz.Actor) (deal.Deal, error) {
	if err := requireOrg(actor); err != nil {
		return deal.Deal{}, err
	}
	current, err := s.deals.Load(ctx, dealID)
	if err != nil {
		return deal.Deal{}, s.storeError(err, ferrors.TextCodeStoreReadFailed, dealID)
	}
	if current.OrgID != actor.OrgID {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrDealNotFound, "Deal with id '"+dealID+"' not found", map[string]any{
			ferrors.MetaDealID: dealID,
		})
	}
	return current, nil
}

func requireOrg(actor authz.Actor) error {
	if strings.TrimSpace(actor.OrgID) != "" {
		return nil
	}
	return ferrors.WrapSentinel(ferrors.ErrScopeRequired, "actor has no organization", map[string]any{
		ferrors.MetaActorID: actor.UserID,
	})
}

func (s *Service) policy(ctx context.Context, orgID string) (policy.Policy, error) {
	p, err := s.policies.Policy(ctx, orgID)
	if err != nil {
		return policy.Policy{}, ferrors.WrapExternal(err, ferrors.TextCodePolicyLookupFailed, "policy lookup failed", map[string]any{
			ferrors.MetaOrgID: orgID,
		})
	}
	return p, nil
}

// storeError passes domain errors through and wraps everything else as an
// external failure.
func (s *Service) storeError(err error, textCode, dealID string) error {
	if _, ok := ferrors.As(err); ok {
		return err
	}
	return ferrors.WrapExternal(err, textCode, "", map[string]any{
		ferrors.MetaDealID: dealID,
	})
}

// checkOwnership applies the org's strategy for deals and reports the
// decision.
func (s *Service) checkOwnership(ctx context.Context, operation string, actor authz.Actor, current deal.Deal, p policy.Policy, del bool) error {
	checker := p.ResourceChecker(authz.ResourceDeal)
	var err error
	if del {
		err = checker.CheckResourceDeletion(actor.UserID, current.OwnerID, actor.Role, authz.ResourceDeal, current.ID)
	} else {
		err = checker.CheckResourceOwnership(actor.UserID, current.OwnerID, actor.Role, authz.ResourceDeal, current.ID)
	}
	s.decide(ctx, operation, actor, current, authz.Decision{
		Allowed: err == nil,
		Rule:    authz.RuleOwnership,
		Reason:  reasonOf(err),
	})
	return err
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	if rich, ok := ferrors.As(err); ok {
		return rich.Message
	}
	return err.Error()
}

func (s *Service) decide(ctx context.Context, operation string, actor authz.Actor, d deal.Deal, decision authz.Decision) {
	if !decision.Allowed {
		s.logger.Debug("deal access denied",
			"operation", operation,
			"deal_id", d.ID,
			"actor_id", actor.UserID,
			"role", actor.Role.String(),
			"rule", string(decision.Rule),
			"reason", decision.Reason,
		)
	}
	if s.decisions == nil {
		return
	}
	s.decisions.OnDecision(ctx, authz.DecisionEvent{
		Actor:        actor,
		Operation:    operation,
		ResourceType: authz.ResourceDeal,
		ResourceID:   d.ID,
		OwnerID:      d.OwnerID,
		Decision:     decision,
	})
}

func (s *Service) publish(ctx context.Context, d deal.Deal, actor authz.Actor, records []record) {
	if len(records) == 0 {
		return
	}
	link := s.link(d)
	for _, rec := range records {
		s.hook.OnActivity(ctx, activity.Event{
			DealID:  d.ID,
			OrgID:   d.OrgID,
			Kind:    rec.kind,
			Payload: activity.ClonePayload(rec.payload),
			Actor:   actor,
			Deal:    d,
			Link:    link,
		})
	}
}

func (s *Service) link(d deal.Deal) string {
	if s.urls == nil || d.ID == "" {
		return ""
	}
	link, err := s.urls.Resolve(LinkGroup, LinkRoute, map[string]any{"id": d.ID}, nil)
	if err != nil {
		s.logger.Debug("deal link unavailable", "deal_id", d.ID, "error", err)
		return ""
	}
	return link
}

func (s *Service) logFailure(operation, dealID string, err error) {
	if ferrors.IsAuthorizationDenied(err) || ferrors.IsInvalidTransition(err) ||
		ferrors.IsBusinessInvariant(err) || ferrors.IsNotFound(err) || ferrors.IsBadInput(err) {
		return
	}
	s.logger.Error("deal mutation failed", "operation", operation, "deal_id", dealID, "error", err)
}
