package guard

import (
	"context"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/permissions"
	"github.com/goliatone/go-dealflow/scope"
)

// Option configures Require behavior.
type Option func(*config)

type config struct {
	resolver    authz.ActorResolver
	deniedErr   error
	errorMapper func(error) error
	hook        authz.DecisionHook
	operation   string
}

// WithActorResolver sets how the actor is read from the context. Defaults
// to scope.ActorResolver.
func WithActorResolver(resolver authz.ActorResolver) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.resolver = resolver
	}
}

// WithDeniedError sets the error returned when access is denied.
func WithDeniedError(err error) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.deniedErr = err
	}
}

// WithErrorMapper transforms resolver errors before returning them.
func WithErrorMapper(mapper func(error) error) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.errorMapper = mapper
	}
}

// WithDecisionHook reports each check to hook under operation.
func WithDecisionHook(operation string, hook authz.DecisionHook) Option {
	return func(c *config) {
		if c == nil {
			return
		}
		c.operation = operation
		c.hook = hook
	}
}

// Require returns an error unless the context actor holds at least the
// required role.
func Require(ctx context.Context, required authz.Role, opts ...Option) error {
	checker := permissions.NewMemberChecker()
	return check(ctx, authz.RuleMinimumRole, opts, func(actor authz.Actor) error {
		return checker.RequireMinimumRole(actor.Role, required)
	})
}

// RequirePredicate returns an error unless allow accepts the context
// actor's role. reason becomes the denial message.
func RequirePredicate(ctx context.Context, allow func(authz.Role) bool, reason string, opts ...Option) error {
	return check(ctx, authz.RuleMinimumRole, opts, func(actor authz.Actor) error {
		if allow != nil && allow(actor.Role) {
			return nil
		}
		return ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, reason, map[string]any{
			ferrors.MetaActorID:   actor.UserID,
			ferrors.MetaActorRole: actor.Role.String(),
		})
	})
}

func check(ctx context.Context, rule authz.DecisionRule, opts []Option, fn func(authz.Actor) error) error {
	cfg := &config{resolver: scope.ActorResolver}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.resolver == nil {
		return ferrors.WrapSentinel(ferrors.ErrResolverRequired, "guard: actor resolver is required", nil)
	}

	actor, err := cfg.resolver.ResolveActor(ctx)
	if err != nil {
		return mapErr(cfg, err)
	}

	var denied error
	if actor.UserID == "" || !actor.Role.Valid() {
		denied = ferrors.WrapSentinel(ferrors.ErrAuthorizationDenied, "authenticated organization member required", nil)
	} else {
		denied = fn(actor)
	}

	if cfg.hook != nil {
		decision := authz.Decision{Allowed: denied == nil, Rule: rule}
		if rich, ok := ferrors.As(denied); ok {
			decision.Reason = rich.Message
		}
		cfg.hook.OnDecision(ctx, authz.DecisionEvent{
			Actor:     actor,
			Operation: cfg.operation,
			Decision:  decision,
		})
	}

	if denied == nil {
		return nil
	}
	if cfg.deniedErr != nil {
		return cfg.deniedErr
	}
	return denied
}

func mapErr(cfg *config, err error) error {
	if err == nil {
		return nil
	}
	if cfg != nil && cfg.errorMapper != nil {
		return cfg.errorMapper(err)
	}
	return err
}
