package deal

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goliatone/go-dealflow/ferrors"
)

// Status is the outcome state of a deal.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// IsTerminal reports whether no further status change is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusWon, StatusLost:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Statuses lists every status in pipeline order.
func Statuses() []Status {
	return []Status{StatusNew, StatusInProgress, StatusWon, StatusLost}
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, nil
	}
	return "", ferrors.WrapSentinel(ferrors.ErrInvalidStatus, "", map[string]any{
		ferrors.MetaToStatus: value,
	})
}

// Stage is a pipeline position. Ordering lives in the pipeline engine.
type Stage string

const (
	StageQualification Stage = "qualification"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosed        Stage = "closed"
)

func (s Stage) String() string { return string(s) }

// Stages lists the built-in stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageQualification, StageProposal, StageNegotiation, StageClosed}
}

// ParseStage normalizes a stage name. Only non-empty names are accepted;
// membership in the pipeline is checked by the engine.
func ParseStage(value string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(value)))
	if stage != "" {
		return stage, nil
	}
	return "", ferrors.WrapSentinel(ferrors.ErrInvalidStage, "", map[string]any{
		ferrors.MetaToStage: value,
	})
}

// Deal is the aggregate mutated by the lifecycle service.
type Deal struct {
	ID        string
	OrgID     string
	ContactID string
	OwnerID   string
	Title     string
	Amount    decimal.Decimal
	Currency  string
	Status    Status
	Stage     Stage
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPositiveAmount reports whether the deal can be marked as won.
func (d Deal) HasPositiveAmount() bool {
	return d.Amount.IsPositive()
}

// IsClosed reports whether the deal reached a terminal status.
func (d Deal) IsClosed() bool {
	return d.Status.IsTerminal()
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
