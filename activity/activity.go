package activity

import (
	"context"
	"time"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
)

// Kind is the activity type stored on a deal timeline.
type Kind string

// Kinds recorded by the lifecycle service.
const (
	KindStatusChanged Kind = "status_changed"
	KindStageChanged  Kind = "stage_changed"
	KindOwnerChanged  Kind = "owner_changed"
	KindSystem        Kind = "system"
)

// Kinds written through Sink by the comment and task layers outside this
// module. The lifecycle service never records them.
const (
	KindComment       Kind = "comment"
	KindTaskCreated   Kind = "task_created"
	KindTaskCompleted Kind = "task_completed"
)

// Payload keys written by the lifecycle service.
const (
	PayloadOldStatus = "old_status"
	PayloadNewStatus = "new_status"
	PayloadOldStage  = "old_stage"
	PayloadNewStage  = "new_stage"
	PayloadOldOwner  = "old_owner_id"
	PayloadNewOwner  = "new_owner_id"
	PayloadMessage   = "message"
	PayloadChanges   = "changes"
)

// Entry is one persisted timeline record.
type Entry struct {
	ID        string
	DealID    string
	Kind      Kind
	Payload   map[string]any
	ActorID   string
	CreatedAt time.Time
}

// Sink records activity. Callers invoke it inside the same transaction as
// the deal mutation it describes.
type Sink interface {
	Record(ctx context.Context, dealID string, kind Kind, payload map[string]any, actorID string) error
}

// Page bounds a timeline query.
type Page struct {
	Offset int
	Limit  int
}

// DefaultPageLimit applies when Page.Limit is not positive.
const DefaultPageLimit = 100

// Normalize clamps offset and limit.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	return p
}

// Timeline lists a deal's activity newest first.
type Timeline interface {
	List(ctx context.Context, dealID string, page Page) ([]Entry, int, error)
}

// Event is published to hooks after a mutation commits.
type Event struct {
	DealID  string
	OrgID   string
	Kind    Kind
	Payload map[string]any
	Actor   authz.Actor
	Deal    deal.Deal
	Link    string
}

// Hook receives committed activity events.
type Hook interface {
	OnActivity(ctx context.Context, event Event)
}

// HookFunc wraps a function as a Hook.
type HookFunc func(context.Context, Event)

// OnActivity implements Hook.
func (fn HookFunc) OnActivity(ctx context.Context, event Event) {
	if fn == nil {
		return
	}
	fn(ctx, event)
}

// NoopHook ignores events.
type NoopHook struct{}

// OnActivity implements Hook.
func (NoopHook) OnActivity(context.Context, Event) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, dealID string, kind Kind, payload map[string]any, actorID string) error

// Record implements Sink.
func (fn SinkFunc) Record(ctx context.Context, dealID string, kind Kind, payload map[string]any, actorID string) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, dealID, kind, payload, actorID)
}

// ClonePayload copies a payload map one level deep.
func ClonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	return out
}
