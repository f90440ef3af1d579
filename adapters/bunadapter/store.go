package bunadapter

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
	"github.com/goliatone/go-dealflow/store"
)

// ErrDBRequired indicates the underlying Bun DB is missing.
var ErrDBRequired = ferrors.ErrStoreRequired

// Store persists deals, their activity and org memberships with Bun.
type Store struct {
	db    bun.IDB
	now   func() time.Time
	newID func() string
}

// Option customizes the Bun store adapter.
type Option func(*Store)

// NewStore constructs a new Bun-backed deal store.
func NewStore(db bun.IDB, opts ...Option) *Store {
	adapter := &Store{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.now == nil {
		adapter.now = time.Now
	}
	if adapter.newID == nil {
		adapter.newID = uuid.NewString
	}
	return adapter
}

// WithNowFunc overrides the timestamp function used for activity rows.
func WithNowFunc(now func() time.Time) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.now = now
	}
}

// WithIDGenerator overrides the activity id generator.
func WithIDGenerator(fn func() string) Option {
	return func(adapter *Store) {
		if adapter == nil {
			return
		}
		adapter.newID = fn
	}
}

// CreateSchema creates the deals, deal_activities and org_members tables.
func (s *Store) CreateSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return dbRequired("create_schema")
	}
	s.exactAmounts()
	models := []any{(*DealRecord)(nil), (*ActivityRecord)(nil), (*MemberRecord)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return writeFailed(err, "create_schema", "")
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*ActivityRecord)(nil)).
		Index("deal_activities_deal_position_idx").
		IfNotExists().
		Column("deal_id", "position").
		Exec(ctx)
	if err != nil {
		return writeFailed(err, "create_schema", "")
	}
	return nil
}

// exactAmounts declares the amount column as TEXT on SQLite, where NUMERIC
// affinity coerces decimals to REAL or INTEGER. Other dialects keep numeric.
func (s *Store) exactAmounts() {
	db, ok := s.db.(*bun.DB)
	if !ok || db.Dialect().Name() != dialect.SQLite {
		return
	}
	table := db.Table(reflect.TypeOf(DealRecord{}))
	if field := table.LookupField("amount"); field != nil {
		field.CreateTableSQLType = "TEXT"
	}
}

type txKey struct{}

// RunInTx implements store.TxRunner. Store calls made with the context passed
// to fn use the transaction; nested calls join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s == nil || s.db == nil {
		return dbRequired("run_in_tx")
	}
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return s.db
}

// Load implements store.DealReader.
func (s *Store) Load(ctx context.Context, id string) (deal.Deal, error) {
	if s == nil || s.db == nil {
		return deal.Deal{}, dbRequired("load")
	}
	record := DealRecord{}
	err := s.conn(ctx).NewSelect().Model(&record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deal.Deal{}, dealNotFound(id)
		}
		return deal.Deal{}, ferrors.WrapExternal(err, ferrors.TextCodeStoreReadFailed, "bunadapter: load deal failed", meta("load", id))
	}
	return record.toDeal(), nil
}

// Create implements store.DealWriter.
func (s *Store) Create(ctx context.Context, d deal.Deal) error {
	if s == nil || s.db == nil {
		return dbRequired("create")
	}
	if d.ID == "" {
		return ferrors.WrapSentinel(ferrors.ErrDealIDRequired, "", nil)
	}
	record := recordFromDeal(d)
	if _, err := s.conn(ctx).NewInsert().Model(&record).Exec(ctx); err != nil {
		if exists, _ := s.exists(ctx, d.ID); exists {
			return versionConflict(d.ID, 0)
		}
		return writeFailed(err, "create", d.ID)
	}
	return nil
}

// Save implements store.DealWriter. The row is only updated while its
// version still equals expectedVersion.
func (s *Store) Save(ctx context.Context, d deal.Deal, expectedVersion int64) error {
	if s == nil || s.db == nil {
		return dbRequired("save")
	}
	record := recordFromDeal(d)
	res, err := s.conn(ctx).NewUpdate().Model(&record).
		Column("contact_id", "owner_id", "title", "amount", "currency", "status", "stage", "version", "updated_at").
		Where("id = ?", d.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return writeFailed(err, "save", d.ID)
	}
	return s.checkAffected(ctx, res, d.ID, expectedVersion, "save")
}

// Delete implements store.DealWriter. The deal's activity goes with it.
func (s *Store) Delete(ctx context.Context, id string, expectedVersion int64) error {
	if s == nil || s.db == nil {
		return dbRequired("delete")
	}
	return s.RunInTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).NewDelete().Model((*DealRecord)(nil)).
			Where("id = ?", id).
			Where("version = ?", expectedVersion).
			Exec(ctx)
		if err != nil {
			return writeFailed(err, "delete", id)
		}
		if err := s.checkAffected(ctx, res, id, expectedVersion, "delete"); err != nil {
			return err
		}
		_, err = s.conn(ctx).NewDelete().Model((*ActivityRecord)(nil)).
			Where("deal_id = ?", id).
			Exec(ctx)
		if err != nil {
			return writeFailed(err, "delete", id)
		}
		return nil
	})
}

func (s *Store) checkAffected(ctx context.Context, res sql.Result, id string, expected int64, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return writeFailed(err, op, id)
	}
	if affected > 0 {
		return nil
	}
	exists, err := s.exists(ctx, id)
	if err != nil {
		return ferrors.WrapExternal(err, ferrors.TextCodeStoreReadFailed, "bunadapter: deal lookup failed", meta(op, id))
	}
	if !exists {
		return dealNotFound(id)
	}
	return versionConflict(id, expected)
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	return s.conn(ctx).NewSelect().Model((*DealRecord)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

// Record implements activity.Sink.
func (s *Store) Record(ctx context.Context, dealID string, kind activity.Kind, payload map[string]any, actorID string) error {
	if s == nil || s.db == nil {
		return dbRequired("record")
	}
	var last int64
	err := s.conn(ctx).NewSelect().Model((*ActivityRecord)(nil)).
		ColumnExpr("COALESCE(MAX(position), 0)").
		Where("deal_id = ?", dealID).
		Scan(ctx, &last)
	if err != nil {
		return ferrors.WrapExternal(err, ferrors.TextCodeActivityWriteFailed, "bunadapter: activity position lookup failed", meta("record", dealID))
	}
	record := ActivityRecord{
		ID:        s.newID(),
		DealID:    dealID,
		Position:  last + 1,
		Kind:      string(kind),
		Payload:   activity.ClonePayload(payload),
		ActorID:   actorID,
		CreatedAt: s.now(),
	}
	if _, err := s.conn(ctx).NewInsert().Model(&record).Exec(ctx); err != nil {
		return ferrors.WrapExternal(err, ferrors.TextCodeActivityWriteFailed, "bunadapter: record activity failed", meta("record", dealID))
	}
	return nil
}

// List implements activity.Timeline, newest entry first.
func (s *Store) List(ctx context.Context, dealID string, page activity.Page) ([]activity.Entry, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, dbRequired("list")
	}
	page = page.Normalize()
	total, err := s.conn(ctx).NewSelect().Model((*ActivityRecord)(nil)).
		Where("deal_id = ?", dealID).
		Count(ctx)
	if err != nil {
		return nil, 0, ferrors.WrapExternal(err, ferrors.TextCodeStoreReadFailed, "bunadapter: count activity failed", meta("list", dealID))
	}
	records := []ActivityRecord{}
	err = s.conn(ctx).NewSelect().Model(&records).
		Where("deal_id = ?", dealID).
		OrderExpr("position DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ferrors.WrapExternal(err, ferrors.TextCodeStoreReadFailed, "bunadapter: list activity failed", meta("list", dealID))
	}
	entries := make([]activity.Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toEntry())
	}
	return entries, total, nil
}

func meta(op, dealID string) map[string]any {
	out := map[string]any{
		ferrors.MetaAdapter:   "bun",
		ferrors.MetaOperation: op,
	}
	if dealID != "" {
		out[ferrors.MetaDealID] = dealID
	}
	return out
}

func dbRequired(op string) error {
	return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "bunadapter: db is required", meta(op, ""))
}

func writeFailed(err error, op, dealID string) error {
	return ferrors.WrapExternal(err, ferrors.TextCodeStoreWriteFailed, "bunadapter: "+op+" failed", meta(op, dealID))
}

func dealNotFound(id string) error {
	return ferrors.WrapSentinel(ferrors.ErrDealNotFound, "Deal with id '"+id+"' not found", map[string]any{
		ferrors.MetaDealID: id,
	})
}

func versionConflict(id string, expected int64) error {
	return ferrors.WrapSentinel(ferrors.ErrVersionConflict, "", map[string]any{
		ferrors.MetaDealID:          id,
		ferrors.MetaExpectedVersion: expected,
	})
}

var (
	_ store.DealStore   = (*Store)(nil)
	_ store.TxRunner    = (*Store)(nil)
	_ activity.Sink     = (*Store)(nil)
	_ activity.Timeline = (*Store)(nil)
)
