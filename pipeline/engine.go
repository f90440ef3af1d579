package pipeline

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
)

// BackwardReason is the denial reason for backward moves below admin.
const BackwardReason = "only admins and owners can move deal stage backward"

// Denial classifies why a transition was refused.
type Denial string

const (
	DenialNone    Denial = ""
	DenialInvalid Denial = "invalid"
	DenialRole    Denial = "role"
)

// Verdict is the detailed result of Evaluate.
type Verdict struct {
	Allowed  bool
	Denial   Denial
	Reason   string
	Backward bool
}

// Engine validates stage transitions from two lookup tables: stage order
// and direct forward adjacency. Adding a stage only touches the tables.
type Engine struct {
	order   map[deal.Stage]int
	forward map[deal.Stage][]deal.Stage
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStages replaces the order and forward tables.
func WithStages(order map[deal.Stage]int, forward map[deal.Stage][]deal.Stage) Option {
	return func(e *Engine) {
		if e == nil {
			return
		}
		e.order = copyOrder(order)
		e.forward = copyForward(forward)
	}
}

// DefaultOrder returns the built-in stage order table.
func DefaultOrder() map[deal.Stage]int {
	return map[deal.Stage]int{
		deal.StageQualification: 1,
		deal.StageProposal:      2,
		deal.StageNegotiation:   3,
		deal.StageClosed:        4,
	}
}

// DefaultForward returns the built-in forward adjacency table. Every later
// stage is directly reachable, so skipping stages is a single hop.
func DefaultForward() map[deal.Stage][]deal.Stage {
	return map[deal.Stage][]deal.Stage{
		deal.StageQualification: {deal.StageProposal, deal.StageNegotiation, deal.StageClosed},
		deal.StageProposal:      {deal.StageNegotiation, deal.StageClosed},
		deal.StageNegotiation:   {deal.StageClosed},
		deal.StageClosed:        {},
	}
}

// New builds an Engine and validates its tables.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		order:   DefaultOrder(),
		forward: DefaultForward(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Default returns an Engine over the built-in pipeline.
func Default() *Engine {
	return &Engine{order: DefaultOrder(), forward: DefaultForward()}
}

// Order returns the position of stage, or 0 when unknown.
func (e *Engine) Order(stage deal.Stage) int {
	return e.order[stage]
}

// Known reports whether the stage exists in this pipeline.
func (e *Engine) Known(stage deal.Stage) bool {
	_, ok := e.order[stage]
	return ok
}

// Stages lists the pipeline stages sorted by order.
func (e *Engine) Stages() []deal.Stage {
	out := make([]deal.Stage, 0, len(e.order))
	for stage := range e.order {
		out = append(out, stage)
	}
	sort.Slice(out, func(i, j int) bool { return e.order[out[i]] < e.order[out[j]] })
	return out
}

// IsBackward reports whether to sits earlier in the pipeline than from.
func (e *Engine) IsBackward(from, to deal.Stage) bool {
	return e.Order(to) < e.Order(from)
}

// IsForward reports whether to sits later in the pipeline than from.
func (e *Engine) IsForward(from, to deal.Stage) bool {
	return e.Order(to) > e.Order(from)
}

// IsValidTransition reports whether the graph allows the hop regardless of
// role. Backward hops of any distance are valid unless the source is
// terminal.
func (e *Engine) IsValidTransition(from, to deal.Stage) bool {
	if !e.Known(from) || !e.Known(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range e.forward[from] {
		if next == to {
			return true
		}
	}
	return e.IsBackward(from, to) && !e.IsTerminal(from)
}

// CanTransition applies the graph and the backward role gate. The reason
// is empty when allowed.
func (e *Engine) CanTransition(from, to deal.Stage, role authz.Role) (bool, string) {
	verdict := e.Evaluate(from, to, role)
	return verdict.Allowed, verdict.Reason
}

// Evaluate is CanTransition with the denial classified.
func (e *Engine) Evaluate(from, to deal.Stage, role authz.Role) Verdict {
	if from == to && e.Known(from) {
		return Verdict{Allowed: true}
	}
	if !e.IsValidTransition(from, to) {
		return Verdict{
			Denial: DenialInvalid,
			Reason: fmt.Sprintf("Invalid stage transition from %s to %s", from, to),
		}
	}
	if e.IsBackward(from, to) {
		if !role.In(authz.RoleAdmin, authz.RoleOwner) {
			return Verdict{Denial: DenialRole, Reason: BackwardReason, Backward: true}
		}
		return Verdict{Allowed: true, Backward: true}
	}
	return Verdict{Allowed: true}
}

// NextStages returns the direct forward targets of from.
func (e *Engine) NextStages(from deal.Stage) []deal.Stage {
	next := e.forward[from]
	out := make([]deal.Stage, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether the stage has no forward edges.
func (e *Engine) IsTerminal(stage deal.Stage) bool {
	return e.Known(stage) && len(e.forward[stage]) == 0
}

// TerminalStage returns the highest-ordered terminal stage, the stage a deal
// is forced to when its status closes.
func (e *Engine) TerminalStage() deal.Stage {
	var best deal.Stage
	for stage := range e.order {
		if e.IsTerminal(stage) && (best == "" || e.order[stage] > e.order[best]) {
			best = stage
		}
	}
	return best
}

func (e *Engine) validate() error {
	if len(e.order) == 0 {
		return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, "pipeline has no stages", nil)
	}
	seen := map[int]deal.Stage{}
	for stage, pos := range e.order {
		if pos <= 0 {
			return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, fmt.Sprintf("stage %s needs a positive order", stage), nil)
		}
		if other, dup := seen[pos]; dup {
			return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, fmt.Sprintf("stages %s and %s share order %d", other, stage, pos), nil)
		}
		seen[pos] = stage
	}
	for from, targets := range e.forward {
		if !e.Known(from) {
			return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, fmt.Sprintf("forward table references unknown stage %s", from), nil)
		}
		for _, to := range targets {
			if !e.Known(to) {
				return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, fmt.Sprintf("forward table references unknown stage %s", to), nil)
			}
			if e.order[to] <= e.order[from] {
				return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, fmt.Sprintf("forward edge %s -> %s does not increase order", from, to), map[string]any{
					ferrors.MetaFromStage: from,
					ferrors.MetaToStage:   to,
				})
			}
		}
	}
	if e.TerminalStage() == "" {
		return ferrors.WrapSentinel(ferrors.ErrInvalidPipeline, "pipeline needs a terminal stage", nil)
	}
	return nil
}

func copyOrder(in map[deal.Stage]int) map[deal.Stage]int {
	out := make(map[deal.Stage]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyForward(in map[deal.Stage][]deal.Stage) map[deal.Stage][]deal.Stage {
	out := make(map[deal.Stage][]deal.Stage, len(in))
	for k, v := range in {
		out[k] = append([]deal.Stage(nil), v...)
	}
	return out
}
