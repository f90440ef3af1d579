package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/permissions"
	"github.com/goliatone/go-dealflow/policy"
	"github.com/goliatone/go-dealflow/store"
)

var (
	ownerUser   = authz.Actor{UserID: "u-owner", OrgID: "org-1", Role: authz.RoleMember}
	otherMember = authz.Actor{UserID: "u-other", OrgID: "org-1", Role: authz.RoleMember}
	adminUser   = authz.Actor{UserID: "u-admin", OrgID: "org-1", Role: authz.RoleAdmin}
	orgOwner    = authz.Actor{UserID: "u-boss", OrgID: "org-1", Role: authz.RoleOwner}
	manager     = authz.Actor{UserID: "u-mgr", OrgID: "org-1", Role: authz.RoleManager}
)

type recordingHook struct {
	events []activity.Event
}

func (h *recordingHook) OnActivity(_ context.Context, event activity.Event) {
	h.events = append(h.events, event)
}

type recordingDecisions struct {
	events []authz.DecisionEvent
}

func (h *recordingDecisions) OnDecision(_ context.Context, event authz.DecisionEvent) {
	h.events = append(h.events, event)
}

func newFixture(t *testing.T, amount int64, opts ...Option) (*Service, *store.MemoryStore, deal.Deal) {
	t.Helper()
	mem := store.NewMemoryStore()
	d := deal.Deal{
		ID:       "deal-1",
		OrgID:    "org-1",
		OwnerID:  ownerUser.UserID,
		Title:    "Platform renewal",
		Amount:   decimal.NewFromInt(amount),
		Currency: "USD",
		Status:   deal.StatusNew,
		Stage:    deal.StageQualification,
		Version:  1,
	}
	if err := mem.Create(context.Background(), d); err != nil {
		t.Fatalf("seed: %v", err)
	}
	base := []Option{WithDealStore(mem), WithActivitySink(mem), WithTxRunner(mem)}
	svc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, mem, d
}

func timelineKinds(t *testing.T, mem *store.MemoryStore, dealID string) []activity.Kind {
	t.Helper()
	entries, _, err := mem.List(context.Background(), dealID, activity.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	kinds := make([]activity.Kind, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		kinds = append(kinds, entries[i].Kind)
	}
	return kinds
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(); !errors.Is(err, ferrors.ErrDealStoreRequired) {
		t.Fatalf("expected deal store required, got %v", err)
	}
	mem := store.NewMemoryStore()
	if _, err := New(WithDealStore(mem)); !errors.Is(err, ferrors.ErrActivitySinkRequired) {
		t.Fatalf("expected activity sink required, got %v", err)
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	hook := &recordingHook{}
	svc, mem, d := newFixture(t, 5000, WithActivityHook(hook))

	got, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, ownerUser)
	if err != nil {
		t.Fatalf("forward move by member owner: %v", err)
	}
	if got.Stage != deal.StageProposal || got.Version != 2 {
		t.Fatalf("unexpected deal after forward move: %+v", got)
	}

	_, err = svc.ChangeStage(ctx, d.ID, deal.StageQualification, ownerUser)
	if !ferrors.IsAuthorizationDenied(err) || !errors.Is(err, ferrors.ErrBackwardStageDenied) {
		t.Fatalf("expected backward denial for member, got %v", err)
	}

	got, err = svc.ChangeStage(ctx, d.ID, deal.StageQualification, adminUser)
	if err != nil {
		t.Fatalf("backward move by admin: %v", err)
	}
	if got.Stage != deal.StageQualification {
		t.Fatalf("expected qualification, got %s", got.Stage)
	}

	got, err = svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner)
	if err != nil {
		t.Fatalf("won by owner: %v", err)
	}
	if got.Status != deal.StatusWon || got.Stage != deal.StageClosed {
		t.Fatalf("expected won and closed, got %s/%s", got.Status, got.Stage)
	}

	_, err = svc.ChangeStatus(ctx, d.ID, deal.StatusLost, orgOwner)
	if !ferrors.IsBusinessInvariant(err) || !errors.Is(err, ferrors.ErrTerminalStatus) {
		t.Fatalf("expected terminal lock, got %v", err)
	}
	rich, _ := ferrors.As(err)
	if rich.Message != "Cannot change status from terminal state 'won'" {
		t.Fatalf("unexpected message %q", rich.Message)
	}

	want := []activity.Kind{activity.KindStageChanged, activity.KindStageChanged, activity.KindStatusChanged}
	kinds := timelineKinds(t, mem, d.ID)
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
	if len(hook.events) != 3 {
		t.Fatalf("expected 3 committed events, got %d", len(hook.events))
	}
	last := hook.events[2]
	if last.Payload[activity.PayloadOldStatus] != "new" || last.Payload[activity.PayloadNewStatus] != "won" {
		t.Fatalf("unexpected status payload: %v", last.Payload)
	}
	if last.Actor != orgOwner || last.Deal.Version != 4 {
		t.Fatalf("unexpected event: %+v", last)
	}
}

func TestChangeStatusSameValueIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, mem, d := newFixture(t, 10)

	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner); err != nil {
		t.Fatalf("won: %v", err)
	}
	got, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, otherMember)
	if err != nil {
		t.Fatalf("repeating won must be a no-op, got %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("no-op must not bump version, got %d", got.Version)
	}
	if kinds := timelineKinds(t, mem, d.ID); len(kinds) != 1 {
		t.Fatalf("no-op must not record activity, got %v", kinds)
	}
}

func TestTerminalStatusLock(t *testing.T) {
	ctx := context.Background()
	svc, _, d := newFixture(t, 10)
	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner); err != nil {
		t.Fatalf("won: %v", err)
	}
	for _, status := range []deal.Status{deal.StatusInProgress, deal.StatusNew, deal.StatusLost} {
		t.Run(string(status), func(t *testing.T) {
			_, err := svc.ChangeStatus(ctx, d.ID, status, orgOwner)
			if !errors.Is(err, ferrors.ErrTerminalStatus) {
				t.Fatalf("expected terminal lock, got %v", err)
			}
		})
	}
}

func TestWonRequiresPositiveAmount(t *testing.T) {
	ctx := context.Background()

	svc, _, d := newFixture(t, 0)
	_, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner)
	if !ferrors.IsBusinessInvariant(err) || !errors.Is(err, ferrors.ErrWonRequiresAmount) {
		t.Fatalf("expected won amount invariant, got %v", err)
	}
	rich, _ := ferrors.As(err)
	if rich.Message != "Cannot mark deal as won with amount 0. Amount must be greater than 0." {
		t.Fatalf("unexpected message %q", rich.Message)
	}

	svc, _, d = newFixture(t, 1)
	got, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner)
	if err != nil {
		t.Fatalf("won with amount 1: %v", err)
	}
	if got.Stage != deal.StageClosed {
		t.Fatalf("expected forced closed stage, got %s", got.Stage)
	}
}

func TestLostForcesClosedStage(t *testing.T) {
	svc, _, d := newFixture(t, 0)
	got, err := svc.ChangeStatus(context.Background(), d.ID, deal.StatusLost, ownerUser)
	if err != nil {
		t.Fatalf("lost: %v", err)
	}
	if got.Status != deal.StatusLost || got.Stage != deal.StageClosed {
		t.Fatalf("unexpected deal: %+v", got)
	}
}

func TestOwnershipGate(t *testing.T) {
	ctx := context.Background()
	decisions := &recordingDecisions{}
	svc, _, d := newFixture(t, 10, WithDecisionHook(decisions))

	_, err := svc.ChangeStatus(ctx, d.ID, deal.StatusInProgress, otherMember)
	if !ferrors.IsAuthorizationDenied(err) || !errors.Is(err, ferrors.ErrOwnershipDenied) {
		t.Fatalf("expected ownership denial, got %v", err)
	}
	rich, _ := ferrors.As(err)
	if rich.Message != "You don't have permission to modify this deal" {
		t.Fatalf("unexpected message %q", rich.Message)
	}
	if _, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, otherMember); !ferrors.IsAuthorizationDenied(err) {
		t.Fatalf("expected ownership denial on stage, got %v", err)
	}

	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusInProgress, ownerUser); err != nil {
		t.Fatalf("owner must pass: %v", err)
	}
	if _, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, ownerUser); err != nil {
		t.Fatalf("owner must pass on stage: %v", err)
	}

	if len(decisions.events) != 4 {
		t.Fatalf("expected 4 decisions, got %d", len(decisions.events))
	}
	first := decisions.events[0]
	if first.Decision.Allowed || first.Decision.Rule != authz.RuleOwnership || first.OwnerID != ownerUser.UserID {
		t.Fatalf("unexpected first decision: %+v", first)
	}
}

func TestOwnershipStrategyFromPolicy(t *testing.T) {
	ctx := context.Background()
	strict := policy.Default()
	strict.Strategies[authz.ResourceDeal] = "admin_or_owner"
	svc, _, d := newFixture(t, 10, WithPolicySource(policy.NewStatic(strict)))

	if _, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, ownerUser); !errors.Is(err, ferrors.ErrOwnershipDenied) {
		t.Fatalf("admin_or_owner must deny resource owners, got %v", err)
	}
	if _, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, adminUser); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}
}

func TestChangeStageInvalidTransition(t *testing.T) {
	ctx := context.Background()
	svc, mem, d := newFixture(t, 10)

	_, err := svc.ChangeStage(ctx, d.ID, deal.Stage("archived"), orgOwner)
	if !ferrors.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	rich, _ := ferrors.As(err)
	if rich.Message != "Invalid stage transition from qualification to archived" {
		t.Fatalf("unexpected message %q", rich.Message)
	}
	if kinds := timelineKinds(t, mem, d.ID); len(kinds) != 0 {
		t.Fatalf("denied transitions must not record activity")
	}
}

func TestChangeStageTerminalLock(t *testing.T) {
	ctx := context.Background()
	svc, _, d := newFixture(t, 10)
	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusWon, orgOwner); err != nil {
		t.Fatalf("won: %v", err)
	}
	_, err := svc.ChangeStage(ctx, d.ID, deal.StageNegotiation, orgOwner)
	if !errors.Is(err, ferrors.ErrTerminalStage) {
		t.Fatalf("expected terminal stage lock, got %v", err)
	}
}

func TestChangeStageTerminalLockDisabled(t *testing.T) {
	ctx := context.Background()
	loose := policy.Default()
	loose.LockTerminalStage = false
	svc, _, d := newFixture(t, 10, WithPolicySource(policy.NewStatic(loose)))
	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusLost, orgOwner); err != nil {
		t.Fatalf("lost: %v", err)
	}
	_, err := svc.ChangeStage(ctx, d.ID, deal.StageNegotiation, orgOwner)
	if !ferrors.IsInvalidTransition(err) {
		t.Fatalf("closed stays a sink without the lock, got %v", err)
	}
}

func TestCrossOrgDealIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, d := newFixture(t, 10)
	outsider := authz.Actor{UserID: "u-x", OrgID: "org-2", Role: authz.RoleOwner}

	if _, err := svc.Get(ctx, d.ID, outsider); !ferrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusLost, outsider); !errors.Is(err, ferrors.ErrDealNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActorWithoutOrgSeesNoDeals(t *testing.T) {
	ctx := context.Background()
	svc, mem, d := newFixture(t, 10)
	orphan := authz.Actor{UserID: "u-x", Role: authz.RoleAdmin}

	if _, err := svc.ChangeStatus(ctx, d.ID, deal.StatusLost, orphan); !errors.Is(err, ferrors.ErrScopeRequired) {
		t.Fatalf("expected scope required, got %v", err)
	}
	if _, err := svc.Get(ctx, d.ID, orphan); !errors.Is(err, ferrors.ErrScopeRequired) {
		t.Fatalf("expected scope required, got %v", err)
	}
	if err := svc.Delete(ctx, d.ID, orphan); !errors.Is(err, ferrors.ErrScopeRequired) {
		t.Fatalf("expected scope required, got %v", err)
	}
	if _, err := svc.CreateDeal(ctx, CreateInput{Title: "x", OrgID: "org-1"}, orphan); !errors.Is(err, ferrors.ErrScopeRequired) {
		t.Fatalf("expected scope required, got %v", err)
	}
	loaded, err := mem.Load(ctx, d.ID)
	if err != nil || loaded.Status != deal.StatusNew || loaded.Version != 1 {
		t.Fatalf("deal must be untouched: %+v (%v)", loaded, err)
	}
}

func TestMissingDeal(t *testing.T) {
	svc, _, _ := newFixture(t, 10)
	_, err := svc.ChangeStage(context.Background(), "nope", deal.StageProposal, orgOwner)
	if !errors.Is(err, ferrors.ErrDealNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	rich, _ := ferrors.As(err)
	if rich.Message != "Deal with id 'nope' not found" {
		t.Fatalf("unexpected message %q", rich.Message)
	}
}

// conflictingStore fails the first n saves with a version conflict.
type conflictingStore struct {
	*store.MemoryStore
	failures int
	saves    int
}

func (c *conflictingStore) Save(ctx context.Context, d deal.Deal, expected int64) error {
	c.saves++
	if c.failures > 0 {
		c.failures--
		return ferrors.ErrVersionConflict
	}
	return c.MemoryStore.Save(ctx, d, expected)
}

func TestVersionConflictRetriedOnce(t *testing.T) {
	ctx := context.Background()
	_, mem, d := newFixture(t, 10)
	conflicting := &conflictingStore{MemoryStore: mem, failures: 1}
	svc, err := New(WithDealStore(conflicting), WithActivitySink(mem), WithTxRunner(mem))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, ownerUser)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got.Stage != deal.StageProposal || conflicting.saves != 2 {
		t.Fatalf("unexpected result %+v after %d saves", got, conflicting.saves)
	}
	if kinds := timelineKinds(t, mem, d.ID); len(kinds) != 1 {
		t.Fatalf("expected one activity entry, got %v", kinds)
	}
}

func TestVersionConflictTwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	_, mem, d := newFixture(t, 10)
	conflicting := &conflictingStore{MemoryStore: mem, failures: 2}
	hook := &recordingHook{}
	svc, err := New(WithDealStore(conflicting), WithActivitySink(mem), WithTxRunner(mem), WithActivityHook(hook))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = svc.ChangeStatus(ctx, d.ID, deal.StatusInProgress, ownerUser)
	if !ferrors.IsConflict(err) || !errors.Is(err, ferrors.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if conflicting.saves != 2 {
		t.Fatalf("expected exactly one retry, got %d saves", conflicting.saves)
	}
	if len(hook.events) != 0 {
		t.Fatalf("hooks must not fire on failure")
	}
}

func TestActivityFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	_, mem, d := newFixture(t, 10)
	failing := activity.SinkFunc(func(context.Context, string, activity.Kind, map[string]any, string) error {
		return errors.New("disk full")
	})
	svc, err := New(WithDealStore(mem), WithActivitySink(failing), WithTxRunner(mem))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = svc.ChangeStage(ctx, d.ID, deal.StageProposal, ownerUser)
	rich, ok := ferrors.As(err)
	if !ok || rich.TextCode != ferrors.TextCodeActivityWriteFailed {
		t.Fatalf("expected activity write failure, got %v", err)
	}
	loaded, _ := mem.Load(ctx, d.ID)
	if loaded.Stage != deal.StageQualification || loaded.Version != 1 {
		t.Fatalf("expected rollback, got %+v", loaded)
	}
}

func TestUpdatedAtUsesClock(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, d := newFixture(t, 10, WithNowFunc(func() time.Time { return fixed }))
	got, err := svc.ChangeStage(context.Background(), d.ID, deal.StageProposal, ownerUser)
	if err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", got.UpdatedAt)
	}
}

type staticURLs struct{}

func (staticURLs) Resolve(_, _ string, params map[string]any, _ map[string]string) (string, error) {
	return "/deals/" + params["id"].(string), nil
}

func TestActivityEventCarriesLink(t *testing.T) {
	hook := &recordingHook{}
	svc, _, d := newFixture(t, 10, WithActivityHook(hook), WithURLBuilder(staticURLs{}))
	if _, err := svc.ChangeStage(context.Background(), d.ID, deal.StageProposal, ownerUser); err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if len(hook.events) != 1 || hook.events[0].Link != "/deals/deal-1" {
		t.Fatalf("unexpected events: %+v", hook.events)
	}
}

func TestConcurrentMutationsKeepVersionAndTimelineInStep(t *testing.T) {
	ctx := context.Background()
	svc, mem, d := newFixture(t, 10)
	stages := []deal.Stage{deal.StageProposal, deal.StageQualification}
	statuses := []deal.Status{deal.StatusNew, deal.StatusInProgress}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.ChangeStage(ctx, d.ID, stages[i%len(stages)], orgOwner); err != nil {
				errs <- err
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.ChangeStatus(ctx, d.ID, statuses[i%len(statuses)], orgOwner); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent mutation failed: %v", err)
	}

	final, err := mem.Load(ctx, d.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, total, err := mem.List(ctx, d.ID, activity.Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if final.Version-1 != int64(total) {
		t.Fatalf("version %d does not match %d activity entries", final.Version, total)
	}
}

// frozenBackward denies every backward move regardless of role.
type frozenBackward struct {
	permissions.DealChecker
}

func (frozenBackward) CanChangeStageBackward(authz.Role) bool { return false }

func TestCustomDealCheckerDeniesBackwardMove(t *testing.T) {
	ctx := context.Background()
	svc, mem, d := newFixture(t, 10, WithDealChecker(frozenBackward{}))
	if _, err := svc.ChangeStage(ctx, d.ID, deal.StageProposal, orgOwner); err != nil {
		t.Fatalf("forward: %v", err)
	}
	_, err := svc.ChangeStage(ctx, d.ID, deal.StageQualification, orgOwner)
	if !errors.Is(err, ferrors.ErrBackwardStageDenied) {
		t.Fatalf("expected backward denial, got %v", err)
	}
	loaded, _ := mem.Load(ctx, d.ID)
	if loaded.Stage != deal.StageProposal || loaded.Version != 2 {
		t.Fatalf("denied move must not persist: %+v", loaded)
	}
}
