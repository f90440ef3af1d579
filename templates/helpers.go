package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/catalog"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/logger"
	"github.com/goliatone/go-dealflow/pipeline"
	"github.com/goliatone/go-dealflow/scope"
)

const (
	TemplateContextKey = "deal_ctx"
	TemplateActorKey   = "deal_actor"
	TemplateLocaleKey  = "locale"
)

// HelperConfig configures template helpers.
type HelperConfig struct {
	ContextKey             string
	ActorKey               string
	LocaleKey              string
	Catalog                catalog.Catalog
	MessageResolver        catalog.MessageResolver
	EnableStructuredErrors bool
	EnableErrorLogging     bool
	Logger                 logger.Logger
}

// HelperOption configures template helpers.
type HelperOption func(*HelperConfig)

// DefaultHelperConfig returns the default helper configuration.
func DefaultHelperConfig() HelperConfig {
	return HelperConfig{
		ContextKey:      TemplateContextKey,
		ActorKey:        TemplateActorKey,
		LocaleKey:       TemplateLocaleKey,
		Catalog:         catalog.Default(),
		MessageResolver: catalog.PlainResolver{},
	}
}

// WithContextKey overrides the template key holding a context.Context.
func WithContextKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.ContextKey = strings.TrimSpace(key)
	}
}

// WithActorKey overrides the template key holding the actor.
func WithActorKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.ActorKey = strings.TrimSpace(key)
	}
}

// WithLocaleKey overrides the template key holding the locale.
func WithLocaleKey(key string) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.LocaleKey = strings.TrimSpace(key)
	}
}

// WithCatalog sets the label catalog and its message resolver.
func WithCatalog(cat catalog.Catalog, resolver catalog.MessageResolver) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.Catalog = cat
		if resolver != nil {
			cfg.MessageResolver = resolver
		}
	}
}

// WithStructuredErrors toggles structured error output for string helpers.
func WithStructuredErrors(enabled bool) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.EnableStructuredErrors = enabled
	}
}

// WithErrorLogging toggles error logging for helper failures.
func WithErrorLogging(enabled bool) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.EnableErrorLogging = enabled
	}
}

// WithLogger injects a logger for helper error logging.
func WithLogger(lgr logger.Logger) HelperOption {
	return func(cfg *HelperConfig) {
		if cfg == nil {
			return
		}
		cfg.Logger = lgr
	}
}

// TemplateHelpers returns deal pipeline helpers suitable for pongo2
// globals. A nil engine uses the default pipeline.
func TemplateHelpers(engine *pipeline.Engine, opts ...HelperOption) map[string]any {
	cfg := DefaultHelperConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.EnableErrorLogging && cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if engine == nil {
		engine = pipeline.Default()
	}
	helpers := &helperSet{engine: engine, cfg: cfg}

	return map[string]any{
		"deal_can_transition":    helpers.canTransition,
		"deal_transition_reason": helpers.transitionReason,
		"deal_next_stages":       helpers.nextStages,
		"deal_stage_label":       helpers.stageLabel,
		"deal_status_label":      helpers.statusLabel,
		"deal_is_terminal":       helpers.isTerminal,
		"role_at_least":          helpers.roleAtLeast,
	}
}

type helperSet struct {
	engine *pipeline.Engine
	cfg    HelperConfig
}

func (h *helperSet) canTransition(execCtx *pongo2.ExecutionContext, from, to any) bool {
	fromStage, ok := parseStage(from)
	if !ok {
		return false
	}
	toStage, ok := parseStage(to)
	if !ok {
		return false
	}
	allowed, _ := h.engine.CanTransition(fromStage, toStage, h.actor(execCtx).Role)
	return allowed
}

func (h *helperSet) transitionReason(execCtx *pongo2.ExecutionContext, from, to any) any {
	fromStage, ok := parseStage(from)
	if !ok {
		return h.errorOrFallback("deal_transition_reason", invalidStage(from), "")
	}
	toStage, ok := parseStage(to)
	if !ok {
		return h.errorOrFallback("deal_transition_reason", invalidStage(to), "")
	}
	_, reason := h.engine.CanTransition(fromStage, toStage, h.actor(execCtx).Role)
	return reason
}

func (h *helperSet) nextStages(_ *pongo2.ExecutionContext, from any) []string {
	stage, ok := parseStage(from)
	if !ok {
		return nil
	}
	next := h.engine.NextStages(stage)
	out := make([]string, 0, len(next))
	for _, s := range next {
		out = append(out, string(s))
	}
	return out
}

func (h *helperSet) stageLabel(execCtx *pongo2.ExecutionContext, stage any) string {
	return h.label(execCtx, catalog.KindStage, stage)
}

func (h *helperSet) statusLabel(execCtx *pongo2.ExecutionContext, status any) string {
	return h.label(execCtx, catalog.KindStatus, status)
}

func (h *helperSet) label(execCtx *pongo2.ExecutionContext, kind catalog.Kind, value any) string {
	key, ok := parseString(value)
	if !ok {
		return ""
	}
	locale, _ := parseString(lookup(execCtx, h.cfg.LocaleKey))
	return catalog.Label(h.context(execCtx), h.cfg.Catalog, h.cfg.MessageResolver, locale, kind, key)
}

// isTerminal accepts a status name or a deal.
func (h *helperSet) isTerminal(_ *pongo2.ExecutionContext, value any) bool {
	switch typed := unwrapValue(value).(type) {
	case deal.Deal:
		return typed.Status.IsTerminal()
	case *deal.Deal:
		return typed != nil && typed.Status.IsTerminal()
	}
	status, ok := parseString(value)
	if !ok {
		return false
	}
	return deal.Status(strings.ToLower(status)).IsTerminal()
}

func (h *helperSet) roleAtLeast(execCtx *pongo2.ExecutionContext, required any) bool {
	name, ok := parseString(required)
	if !ok {
		return false
	}
	role, err := authz.ParseRole(name)
	if err != nil {
		if h.cfg.EnableErrorLogging {
			h.logHelperError("role_at_least", err)
		}
		return false
	}
	return h.actor(execCtx).Role.AtLeast(role)
}

// actor reads the actor from the actor key, falling back to the context.
func (h *helperSet) actor(execCtx *pongo2.ExecutionContext) authz.Actor {
	if actor, ok := actorFromValue(lookup(execCtx, h.cfg.ActorKey)); ok {
		return actor
	}
	actor, _ := scope.ActorFromContext(h.context(execCtx))
	return actor
}

func (h *helperSet) context(execCtx *pongo2.ExecutionContext) context.Context {
	return contextFromValue(lookup(execCtx, h.cfg.ContextKey))
}

func (h *helperSet) errorOrFallback(helper string, err error, fallback any) any {
	if h.cfg.EnableErrorLogging {
		h.logHelperError(helper, err)
	}
	if h.cfg.EnableStructuredErrors {
		return templateError(helper, err)
	}
	return fallback
}

// TemplateError provides structured helper error output.
type TemplateError struct {
	Helper   string         `json:"helper"`
	Type     string         `json:"type,omitempty"`
	Message  string         `json:"message,omitempty"`
	Category string         `json:"category,omitempty"`
	TextCode string         `json:"text_code,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func templateError(helper string, err error) TemplateError {
	out := TemplateError{Helper: helper}
	if err == nil {
		return out
	}
	if rich, ok := ferrors.As(err); ok {
		out.Message = rich.Message
		out.Category = rich.Category.String()
		out.TextCode = rich.TextCode
		if len(rich.Metadata) > 0 {
			out.Metadata = rich.Metadata
		}
		if out.TextCode != "" {
			out.Type = out.TextCode
		} else {
			out.Type = out.Category
		}
		return out
	}
	out.Message = err.Error()
	out.Type = "error"
	return out
}

func invalidStage(value any) error {
	return ferrors.WrapSentinel(ferrors.ErrInvalidStage, "", map[string]any{
		"value": fmt.Sprintf("%v", unwrapValue(value)),
	})
}

func lookup(execCtx *pongo2.ExecutionContext, key string) any {
	if execCtx == nil || execCtx.Public == nil || key == "" {
		return nil
	}
	return unwrapValue(execCtx.Public[key])
}

func parseStage(value any) (deal.Stage, bool) {
	raw, ok := parseString(value)
	if !ok {
		return "", false
	}
	stage, err := deal.ParseStage(raw)
	if err != nil {
		return "", false
	}
	return stage, true
}

func parseString(value any) (string, bool) {
	var out string
	switch typed := unwrapValue(value).(type) {
	case string:
		out = typed
	case deal.Stage:
		out = string(typed)
	case deal.Status:
		out = string(typed)
	case authz.Role:
		out = string(typed)
	case fmt.Stringer:
		out = typed.String()
	default:
		return "", false
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}

func actorFromValue(value any) (authz.Actor, bool) {
	switch typed := value.(type) {
	case authz.Actor:
		return typed, !typed.IsZero()
	case *authz.Actor:
		if typed == nil {
			return authz.Actor{}, false
		}
		return *typed, !typed.IsZero()
	case map[string]any:
		return actorFromMap(typed)
	case map[string]string:
		raw := make(map[string]any, len(typed))
		for key, val := range typed {
			raw[key] = val
		}
		return actorFromMap(raw)
	}
	return authz.Actor{}, false
}

func actorFromMap(data map[string]any) (authz.Actor, bool) {
	actor := authz.Actor{}
	actor.UserID, _ = data[scope.MetadataUserID].(string)
	actor.OrgID, _ = data[scope.MetadataOrgID].(string)
	if name, ok := parseString(data[scope.MetadataRole]); ok {
		if role, err := authz.ParseRole(name); err == nil {
			actor.Role = role
		}
	}
	return actor, !actor.IsZero()
}

func unwrapValue(value any) any {
	if value == nil {
		return nil
	}
	if pv, ok := value.(*pongo2.Value); ok && pv != nil {
		return pv.Interface()
	}
	return value
}

func contextFromValue(value any) context.Context {
	switch typed := value.(type) {
	case context.Context:
		return typed
	case interface{ Context() context.Context }:
		return typed.Context()
	default:
		return context.Background()
	}
}

func (h *helperSet) logHelperError(helper string, err error) {
	if h == nil || h.cfg.Logger == nil || err == nil {
		return
	}
	args := []any{
		"helper", helper,
		"error", err,
	}
	if rich, ok := ferrors.As(err); ok {
		args = append(args,
			"category", rich.Category,
			"text_code", rich.TextCode,
			"metadata", rich.Metadata,
		)
	}
	h.cfg.Logger.Error("dealflow.helper_error", args...)
}
