package gologgeradapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/scope"
)

// Hook logs committed deal activity and authorization decisions using
// go-logger.
type Hook struct {
	logger          glog.Logger
	activityLevel   string
	allowLevel      string
	denyLevel       string
	activityMessage string
	decisionMessage string
}

// Option customizes the logger hook.
type Option func(*Hook)

// New builds a logging hook for activity and decision events.
func New(logger glog.Logger, opts ...Option) *Hook {
	hook := &Hook{
		logger:          logger,
		activityLevel:   "info",
		allowLevel:      "debug",
		denyLevel:       "info",
		activityMessage: "dealflow.activity",
		decisionMessage: "dealflow.decision",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hook)
		}
	}
	return hook
}

// WithActivityLevel sets the log level for activity events.
func WithActivityLevel(level string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.activityLevel = normalizeLevel(level)
	}
}

// WithDecisionLevels sets the log levels for allowed and denied decisions.
func WithDecisionLevels(allow, deny string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.allowLevel = normalizeLevel(allow)
		hook.denyLevel = normalizeLevel(deny)
	}
}

// WithActivityMessage overrides the activity log message.
func WithActivityMessage(message string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.activityMessage = message
	}
}

// WithDecisionMessage overrides the decision log message.
func WithDecisionMessage(message string) Option {
	return func(hook *Hook) {
		if hook == nil {
			return
		}
		hook.decisionMessage = message
	}
}

// OnActivity implements activity.Hook.
func (h *Hook) OnActivity(ctx context.Context, event activity.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"deal_id":       event.DealID,
		"activity_kind": string(event.Kind),
		"deal_stage":    string(event.Deal.Stage),
		"deal_status":   string(event.Deal.Status),
		"deal_version":  event.Deal.Version,
	}
	if event.Link != "" {
		fields["deal_link"] = event.Link
	}
	for key, value := range event.Payload {
		if _, taken := fields[key]; !taken {
			fields[key] = value
		}
	}
	for key, value := range actorFields(event.Actor) {
		fields[key] = value
	}
	fields[scope.MetadataOrgID] = event.OrgID
	if tenant := scope.TenantID(ctx); tenant != "" {
		fields[scope.MetadataTenantID] = tenant
	}
	h.log(ctx, h.activityLevel, h.activityMessage, fields)
}

// OnDecision implements authz.DecisionHook.
func (h *Hook) OnDecision(ctx context.Context, event authz.DecisionEvent) {
	if h == nil || h.logger == nil {
		return
	}
	fields := map[string]any{
		"operation":        event.Operation,
		"resource_type":    string(event.ResourceType),
		"resource_id":      event.ResourceID,
		"resource_owner":   event.OwnerID,
		"decision_allowed": event.Decision.Allowed,
		"decision_rule":    string(event.Decision.Rule),
	}
	if event.Decision.Reason != "" {
		fields["decision_reason"] = event.Decision.Reason
	}
	for key, value := range actorFields(event.Actor) {
		fields[key] = value
	}
	level := h.allowLevel
	if !event.Decision.Allowed {
		level = h.denyLevel
	}
	h.log(ctx, level, h.decisionMessage, fields)
}

func (h *Hook) log(ctx context.Context, level string, message string, fields map[string]any) {
	logger := h.logger
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(glog.FieldsLogger); ok && len(fields) > 0 {
		logger = fieldsLogger.WithFields(fields)
	}
	switch level {
	case "trace":
		logger.Trace(message)
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error", "fatal":
		// Fatal would exit the process from inside a request.
		logger.Error(message)
	default:
		logger.Info(message)
	}
}

func actorFields(actor authz.Actor) map[string]any {
	return map[string]any{
		scope.MetadataUserID: actor.UserID,
		scope.MetadataRole:   string(actor.Role),
	}
}

func normalizeLevel(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}

var _ activity.Hook = (*Hook)(nil)
var _ authz.DecisionHook = (*Hook)(nil)
