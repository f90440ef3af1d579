package bunadapter

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
)

// DealRecord maps to the deals table.
type DealRecord struct {
	bun.BaseModel `bun:"table:deals"`
	ID            string          `bun:"id,pk"`
	OrgID         string          `bun:"org_id,notnull"`
	ContactID     string          `bun:"contact_id,nullzero"`
	OwnerID       string          `bun:"owner_id,notnull"`
	Title         string          `bun:"title,notnull"`
	Amount        decimal.Decimal `bun:"amount,type:numeric,notnull"`
	Currency      string          `bun:"currency,notnull"`
	Status        string          `bun:"status,notnull"`
	Stage         string          `bun:"stage,notnull"`
	Version       int64           `bun:"version,notnull"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull"`
}

// ActivityRecord maps to the deal_activities table. Position orders entries
// within one deal.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:deal_activities"`
	ID            string         `bun:"id,pk"`
	DealID        string         `bun:"deal_id,notnull"`
	Position      int64          `bun:"position,notnull"`
	Kind          string         `bun:"kind,notnull"`
	Payload       map[string]any `bun:"payload"`
	ActorID       string         `bun:"actor_id,nullzero"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
}

// MemberRecord maps to the org_members table.
type MemberRecord struct {
	bun.BaseModel `bun:"table:org_members"`
	OrgID         string    `bun:"org_id,pk"`
	UserID        string    `bun:"user_id,pk"`
	Role          string    `bun:"role,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func recordFromDeal(d deal.Deal) DealRecord {
	return DealRecord{
		ID:        d.ID,
		OrgID:     d.OrgID,
		ContactID: d.ContactID,
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Amount:    d.Amount,
		Currency:  d.Currency,
		Status:    string(d.Status),
		Stage:     string(d.Stage),
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (r DealRecord) toDeal() deal.Deal {
	return deal.Deal{
		ID:        r.ID,
		OrgID:     r.OrgID,
		ContactID: r.ContactID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Status:    deal.Status(r.Status),
		Stage:     deal.Stage(r.Stage),
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r ActivityRecord) toEntry() activity.Entry {
	return activity.Entry{
		ID:        r.ID,
		DealID:    r.DealID,
		Kind:      activity.Kind(r.Kind),
		Payload:   r.Payload,
		ActorID:   r.ActorID,
		CreatedAt: r.CreatedAt,
	}
}

func (r MemberRecord) role() authz.Role {
	return authz.Role(r.Role)
}
