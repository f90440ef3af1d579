package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-dealflow/activity"
	"github.com/goliatone/go-dealflow/authz"
	"github.com/goliatone/go-dealflow/deal"
	"github.com/goliatone/go-dealflow/ferrors"
)

// MemoryStore keeps deals, activity and memberships in memory for tests and
// examples. Transactions are serialized and rolled back on error.
type MemoryStore struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	deals       map[string]deal.Deal
	activities  map[string][]activity.Entry
	memberships map[string]map[string]authz.Role
	now         func() time.Time
	newID       func() string
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryNowFunc sets the clock used for activity timestamps.
func WithMemoryNowFunc(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if m == nil {
			return
		}
		m.now = now
	}
}

// WithMemoryIDGenerator sets the activity id generator.
func WithMemoryIDGenerator(fn func() string) MemoryOption {
	return func(m *MemoryStore) {
		if m == nil {
			return
		}
		m.newID = fn
	}
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		deals:       map[string]deal.Deal{},
		activities:  map[string][]activity.Entry{},
		memberships: map[string]map[string]authz.Role{},
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

type memTxKey struct{}

// RunInTx implements TxRunner. Nested calls join the outer transaction.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m == nil {
		return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	deals, activities := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, m)); err != nil {
		m.restore(deals, activities)
		return err
	}
	return nil
}

// Load implements DealReader.
func (m *MemoryStore) Load(_ context.Context, id string) (deal.Deal, error) {
	if m == nil {
		return deal.Deal{}, ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deals[strings.TrimSpace(id)]
	if !ok {
		return deal.Deal{}, notFound(id)
	}
	return d, nil
}

// Create implements DealWriter.
func (m *MemoryStore) Create(_ context.Context, d deal.Deal) error {
	if m == nil {
		return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	if d.ID == "" {
		return ferrors.WrapSentinel(ferrors.ErrDealIDRequired, "", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.deals[d.ID]; exists {
		return conflict(d.ID, 0)
	}
	m.deals[d.ID] = d
	return nil
}

// Save implements DealWriter.
func (m *MemoryStore) Save(_ context.Context, d deal.Deal, expectedVersion int64) error {
	if m == nil {
		return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.deals[d.ID]
	if !ok {
		return notFound(d.ID)
	}
	if current.Version != expectedVersion {
		return conflict(d.ID, expectedVersion)
	}
	m.deals[d.ID] = d
	return nil
}

// Delete implements DealWriter. Activity for the deal is removed with it.
func (m *MemoryStore) Delete(_ context.Context, id string, expectedVersion int64) error {
	if m == nil {
		return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.deals[id]
	if !ok {
		return notFound(id)
	}
	if current.Version != expectedVersion {
		return conflict(id, expectedVersion)
	}
	delete(m.deals, id)
	delete(m.activities, id)
	return nil
}

// Record implements activity.Sink.
func (m *MemoryStore) Record(_ context.Context, dealID string, kind activity.Kind, payload map[string]any, actorID string) error {
	if m == nil {
		return ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	entry := activity.Entry{
		ID:        m.newID(),
		DealID:    dealID,
		Kind:      kind,
		Payload:   activity.ClonePayload(payload),
		ActorID:   actorID,
		CreatedAt: m.now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[dealID] = append(m.activities[dealID], entry)
	return nil
}

// List implements activity.Timeline.
func (m *MemoryStore) List(_ context.Context, dealID string, page activity.Page) ([]activity.Entry, int, error) {
	if m == nil {
		return nil, 0, ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	page = page.Normalize()
	m.mu.RLock()
	entries := append([]activity.Entry(nil), m.activities[dealID]...)
	m.mu.RUnlock()

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	total := len(entries)
	if page.Offset >= total {
		return []activity.Entry{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return entries[page.Offset:end], total, nil
}

// SetRole stores a membership.
func (m *MemoryStore) SetRole(orgID, userID string, role authz.Role) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberships[orgID] == nil {
		m.memberships[orgID] = map[string]authz.Role{}
	}
	m.memberships[orgID][userID] = role
}

// RemoveMember deletes a membership and reports whether it existed.
func (m *MemoryStore) RemoveMember(orgID, userID string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.memberships[orgID]
	if _, ok := members[userID]; !ok {
		return false
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(m.memberships, orgID)
	}
	return true
}

// GetRole implements MembershipLookup.
func (m *MemoryStore) GetRole(_ context.Context, orgID, userID string) (authz.Role, error) {
	if m == nil {
		return "", ferrors.WrapSentinel(ferrors.ErrStoreRequired, "store: memory store is required", nil)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.memberships[orgID][userID]
	if !ok {
		return "", ferrors.WrapSentinel(ferrors.ErrNotAMember, "", map[string]any{
			ferrors.MetaOrgID:   orgID,
			ferrors.MetaActorID: userID,
		})
	}
	return role, nil
}

// Clear removes everything.
func (m *MemoryStore) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = map[string]deal.Deal{}
	m.activities = map[string][]activity.Entry{}
	m.memberships = map[string]map[string]authz.Role{}
}

func (m *MemoryStore) snapshot() (map[string]deal.Deal, map[string][]activity.Entry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deals := make(map[string]deal.Deal, len(m.deals))
	for id, d := range m.deals {
		deals[id] = d
	}
	activities := make(map[string][]activity.Entry, len(m.activities))
	for id, entries := range m.activities {
		activities[id] = append([]activity.Entry(nil), entries...)
	}
	return deals, activities
}

func (m *MemoryStore) restore(deals map[string]deal.Deal, activities map[string][]activity.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = deals
	m.activities = activities
}

func notFound(id string) error {
	return ferrors.WrapSentinel(ferrors.ErrDealNotFound, "Deal with id '"+id+"' not found", map[string]any{
		ferrors.MetaDealID: id,
	})
}

func conflict(id string, expected int64) error {
	return ferrors.WrapSentinel(ferrors.ErrVersionConflict, "", map[string]any{
		ferrors.MetaDealID:          id,
		ferrors.MetaExpectedVersion: expected,
	})
}

var (
	_ DealStore         = (*MemoryStore)(nil)
	_ MembershipLookup  = (*MemoryStore)(nil)
	_ TxRunner          = (*MemoryStore)(nil)
	_ activity.Sink     = (*MemoryStore)(nil)
	_ activity.Timeline = (*MemoryStore)(nil)
)
