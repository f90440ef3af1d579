package pipeline

import (
	"errors"
	"testing"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
)

func TestStageOrderIsMonotonic(t *testing.T) {
	e := Default()
	stages := deal.Stages()
	for i := 1; i < len(stages); i++ {
		if e.Order(stages[i-1]) >= e.Order(stages[i]) {
			t.Fatalf("expected %s before %s", stages[i-1], stages[i])
		}
	}
}

func TestTransitionReflexivity(t *testing.T) {
	e := Default()
	for _, stage := range deal.Stages() {
		for _, role := range authz.Roles() {
			allowed, reason := e.CanTransition(stage, stage, role)
			if !allowed || reason != "" {
				t.Fatalf("expected %s -> %s allowed for %s, got %v %q", stage, stage, role, allowed, reason)
			}
		}
	}
}

func TestForwardHopsNeedNoRole(t *testing.T) {
	e := Default()
	cases := []struct {
		from, to deal.Stage
	}{
		{deal.StageQualification, deal.StageProposal},
		{deal.StageQualification, deal.StageNegotiation},
		{deal.StageQualification, deal.StageClosed},
		{deal.StageProposal, deal.StageNegotiation},
		{deal.StageProposal, deal.StageClosed},
		{deal.StageNegotiation, deal.StageClosed},
	}
	for _, tc := range cases {
		allowed, reason := e.CanTransition(tc.from, tc.to, authz.RoleMember)
		if !allowed {
			t.Fatalf("expected %s -> %s allowed, got %q", tc.from, tc.to, reason)
		}
		if !e.IsForward(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be forward", tc.from, tc.to)
		}
	}
}

func TestBackwardGate(t *testing.T) {
	e := Default()
	stages := deal.Stages()
	for _, from := range stages {
		for _, to := range stages {
			if !e.IsBackward(from, to) || from == deal.StageClosed {
				continue
			}
			for _, role := range authz.Roles() {
				allowed, reason := e.CanTransition(from, to, role)
				privileged := role == authz.RoleAdmin || role == authz.RoleOwner
				if allowed != privileged {
					t.Fatalf("%s -> %s for %s: allowed=%v", from, to, role, allowed)
				}
				if !privileged && reason != BackwardReason {
					t.Fatalf("expected backward reason, got %q", reason)
				}
				if privileged && reason != "" {
					t.Fatalf("expected empty reason, got %q", reason)
				}
			}
		}
	}
}

func TestClosedIsSink(t *testing.T) {
	e := Default()
	if next := e.NextStages(deal.StageClosed); len(next) != 0 {
		t.Fatalf("expected no next stages, got %v", next)
	}
	if !e.IsTerminal(deal.StageClosed) {
		t.Fatalf("expected closed to be terminal")
	}
	for _, to := range deal.Stages() {
		if to == deal.StageClosed {
			continue
		}
		if e.IsValidTransition(deal.StageClosed, to) {
			t.Fatalf("closed -> %s must be invalid", to)
		}
		verdict := e.Evaluate(deal.StageClosed, to, authz.RoleOwner)
		if verdict.Allowed || verdict.Denial != DenialInvalid {
			t.Fatalf("expected invalid denial, got %+v", verdict)
		}
		if verdict.Reason != "Invalid stage transition from closed to "+string(to) {
			t.Fatalf("unexpected reason %q", verdict.Reason)
		}
	}
}

func TestNextStagesReturnsCopy(t *testing.T) {
	e := Default()
	next := e.NextStages(deal.StageQualification)
	if len(next) != 3 {
		t.Fatalf("expected three forward targets, got %v", next)
	}
	next[0] = deal.StageClosed
	if e.NextStages(deal.StageQualification)[0] != deal.StageProposal {
		t.Fatalf("engine tables must not be mutable through NextStages")
	}
}

func TestUnknownStageIsInvalid(t *testing.T) {
	e := Default()
	verdict := e.Evaluate(deal.Stage("archived"), deal.StageProposal, authz.RoleOwner)
	if verdict.Allowed || verdict.Denial != DenialInvalid {
		t.Fatalf("expected invalid verdict, got %+v", verdict)
	}
}

func TestCustomPipelineExtendsTables(t *testing.T) {
	discovery := deal.Stage("discovery")
	order := DefaultOrder()
	for stage := range order {
		order[stage]++
	}
	order[discovery] = 1
	forward := DefaultForward()
	forward[discovery] = []deal.Stage{deal.StageQualification, deal.StageClosed}

	e, err := New(WithStages(order, forward))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed, _ := e.CanTransition(discovery, deal.StageClosed, authz.RoleMember); !allowed {
		t.Fatalf("expected discovery -> closed allowed")
	}
	if allowed, _ := e.CanTransition(deal.StageProposal, discovery, authz.RoleManager); allowed {
		t.Fatalf("expected backward move into discovery to be gated")
	}
	if stages := e.Stages(); stages[0] != discovery {
		t.Fatalf("expected discovery first, got %v", stages)
	}
}

func TestNewRejectsNonIncreasingForwardEdge(t *testing.T) {
	forward := DefaultForward()
	forward[deal.StageNegotiation] = []deal.Stage{deal.StageProposal}
	_, err := New(WithStages(DefaultOrder(), forward))
	if !errors.Is(err, ferrors.ErrInvalidPipeline) {
		t.Fatalf("expected invalid pipeline error, got %v", err)
	}
}
