package templates

import (
	"context"
	"testing"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/pipeline"
	"github.com/goliatone/go-dealflow/scope"
)

func execWith(data pongo2.Context) *pongo2.ExecutionContext {
	return &pongo2.ExecutionContext{Public: data}
}

func TestCanTransitionUsesActorRole(t *testing.T) {
	helpers := TemplateHelpers(nil)
	fn, ok := helpers["deal_can_transition"].(func(*pongo2.ExecutionContext, any, any) bool)
	if !ok {
		t.Fatalf("deal_can_transition helper not found")
	}

	member := execWith(pongo2.Context{TemplateActorKey: map[string]any{"user_id": "u-1", "role": "member"}})
	if !fn(member, "qualification", "proposal") {
		t.Fatalf("forward moves are open to members")
	}
	if fn(member, "proposal", "qualification") {
		t.Fatalf("backward moves need admin")
	}

	admin := execWith(pongo2.Context{TemplateActorKey: authz.Actor{UserID: "u-2", Role: authz.RoleAdmin}})
	if !fn(admin, deal.StageProposal, deal.StageQualification) {
		t.Fatalf("admins may move backward")
	}
	if fn(admin, "closed", "proposal") {
		t.Fatalf("closed is a sink")
	}
}

func TestActorFallsBackToContext(t *testing.T) {
	helpers := TemplateHelpers(pipeline.Default())
	fn := helpers["role_at_least"].(func(*pongo2.ExecutionContext, any) bool)

	ctx := scope.WithActor(context.Background(), authz.Actor{UserID: "u-1", OrgID: "org-1", Role: authz.RoleManager})
	execCtx := execWith(pongo2.Context{TemplateContextKey: ctx})
	if !fn(execCtx, "member") || !fn(execCtx, "manager") || fn(execCtx, "admin") {
		t.Fatalf("unexpected role comparison")
	}
	if fn(execCtx, "superuser") {
		t.Fatalf("unknown roles must be false")
	}
}

func TestTransitionReason(t *testing.T) {
	helpers := TemplateHelpers(nil, WithStructuredErrors(true))
	fn := helpers["deal_transition_reason"].(func(*pongo2.ExecutionContext, any, any) any)
	member := execWith(pongo2.Context{TemplateActorKey: map[string]string{"user_id": "u-1", "role": "member"}})

	if got := fn(member, "proposal", "qualification"); got != pipeline.BackwardReason {
		t.Fatalf("unexpected reason %v", got)
	}
	if got := fn(member, "qualification", "proposal"); got != "" {
		t.Fatalf("allowed moves have no reason, got %v", got)
	}
	got, ok := fn(member, "", "proposal").(TemplateError)
	if !ok || got.TextCode != ferrors.TextCodeInvalidStage {
		t.Fatalf("expected structured error, got %#v", got)
	}
}

func TestNextStagesAndLabels(t *testing.T) {
	helpers := TemplateHelpers(nil)
	next := helpers["deal_next_stages"].(func(*pongo2.ExecutionContext, any) []string)(execWith(nil), "proposal")
	if len(next) != 2 || next[0] != "negotiation" || next[1] != "closed" {
		t.Fatalf("unexpected next stages: %v", next)
	}

	label := helpers["deal_stage_label"].(func(*pongo2.ExecutionContext, any) string)
	if got := label(execWith(nil), "negotiation"); got != "Negotiation" {
		t.Fatalf("unexpected label %q", got)
	}
	status := helpers["deal_status_label"].(func(*pongo2.ExecutionContext, any) string)
	if got := status(execWith(nil), deal.StatusInProgress); got != "In progress" {
		t.Fatalf("unexpected status label %q", got)
	}
}

func TestIsTerminal(t *testing.T) {
	fn := TemplateHelpers(nil)["deal_is_terminal"].(func(*pongo2.ExecutionContext, any) bool)
	if !fn(nil, "won") || !fn(nil, deal.Deal{Status: deal.StatusLost}) {
		t.Fatalf("won and lost are terminal")
	}
	if fn(nil, "in_progress") || fn(nil, 42) {
		t.Fatalf("unexpected terminal result")
	}
}
