// Package memory is a volatile storage.Store used by tests and by the memory storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/bookbot/bookstore/domain"
	"github.com/m3rciful/bookbot/bookstore/storage"
)

// Store keeps every collection in maps guarded by one mutex. Ledger transactions are
// serialized by txMu and staged until fn returns nil.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	now func() time.Time

	nextItemID int64
	orderSeq   int64
	items      map[int64]domain.Item
	orders     map[string]domain.Order
	users      map[int64]domain.UserProfile
	settings   map[string]string
	admin      domain.AdminRecord
}

var _ storage.Store = (*Store)(nil)

// New constructs an empty store. now may be nil.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		items:    make(map[int64]domain.Item),
		orders:   make(map[string]domain.Order),
		users:    make(map[int64]domain.UserProfile),
		settings: make(map[string]string),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// CreateItem assigns the next id and stores a copy.
func (s *Store) CreateItem(_ context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.items[item.ID] = copyItem(*item)
	return nil
}

// GetItem returns the item or domain.ErrItemNotFound.
func (s *Store) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	cp := copyItem(it)
	return &cp, nil
}

// FindByTitle matches whole titles case-insensitively.
func (s *Store) FindByTitle(_ context.Context, title string) ([]domain.Item, error) {
	want := strings.ToLower(strings.TrimSpace(title))
	return s.filterItems(func(it domain.Item) bool {
		return strings.ToLower(it.Title) == want
	}), nil
}

// SearchTitle matches title fragments case-insensitively.
func (s *Store) SearchTitle(_ context.Context, fragment string) ([]domain.Item, error) {
	want := strings.ToLower(strings.TrimSpace(fragment))
	if want == "" {
		return nil, nil
	}
	return s.filterItems(func(it domain.Item) bool {
		return strings.Contains(strings.ToLower(it.Title), want)
	}), nil
}

// ListByLanguage returns all items of one locale.
func (s *Store) ListByLanguage(_ context.Context, lang domain.Language) ([]domain.Item, error) {
	return s.filterItems(func(it domain.Item) bool { return it.Language == lang }), nil
}

func (s *Store) filterItems(keep func(domain.Item) bool) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Item
	for _, it := range s.items {
		if keep(it) {
			out = append(out, copyItem(it))
		}
	}
	domain.SortItems(out)
	return out
}

// SetContent attaches deliverable content.
func (s *Store) SetContent(_ context.Context, id int64, ref string) error {
	return s.updateItem(id, func(it *domain.Item) { it.ContentRef = ref })
}

// SetCover attaches a preview image.
func (s *Store) SetCover(_ context.Context, id int64, ref string) error {
	return s.updateItem(id, func(it *domain.Item) { it.CoverRef = ref })
}

func (s *Store) updateItem(id int64, apply func(*domain.Item)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	apply(&it)
	s.items[id] = it
	return nil
}

// GetSetting reads a single key.
func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// SetSetting upserts a key.
func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// AllSettings returns a snapshot of every key.
func (s *Store) AllSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.Settings, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// Register is idempotent; the username is refreshed on every call.
func (s *Store) Register(_ context.Context, id int64, username string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		u = domain.UserProfile{ID: id, RegisteredAt: s.now()}
	}
	if username != "" {
		u.Username = username
	}
	s.users[id] = u
	return &u, nil
}

// GetUser returns the profile or domain.ErrNotFound.
func (s *Store) GetUser(_ context.Context, id int64) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// CreateOrder stores a new order.
func (s *Store) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	if _, ok := s.items[o.ItemID]; !ok {
		return domain.ErrItemNotFound
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	s.orderSeq++
	o.Seq = s.orderSeq
	s.orders[o.ID] = *o
	return nil
}

// GetOrder returns the order or domain.ErrOrderNotFound.
func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (s *Store) ListByBuyer(_ context.Context, buyerID int64) ([]domain.Order, error) {
	out := s.filterOrders(func(o domain.Order) bool { return o.BuyerID == buyerID })
	sort.Slice(out, func(i, j int) bool { return out[i].Newer(&out[j]) })
	return out, nil
}

// ListOpen returns non-terminal orders, oldest first.
func (s *Store) ListOpen(_ context.Context) ([]domain.Order, error) {
	out := s.filterOrders(func(o domain.Order) bool { return !o.Status.Terminal() })
	sort.Slice(out, func(i, j int) bool { return out[j].Newer(&out[i]) })
	return out, nil
}

func (s *Store) filterOrders(keep func(domain.Order) bool) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// InTx runs fn with exclusive access to the ledger. Writes are applied only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s, saved: make(map[string]domain.Order), purchases: make(map[int64]int)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range tx.saved {
		s.orders[id] = o
	}
	for id, n := range tx.purchases {
		u, ok := s.users[id]
		if !ok {
			u = domain.UserProfile{ID: id, RegisteredAt: s.now()}
		}
		u.PurchaseCount += n
		s.users[id] = u
	}
	return nil
}

type memTx struct {
	store     *Store
	saved     map[string]domain.Order
	purchases map[int64]int
}

func (t *memTx) lookup(id string) (domain.Order, bool) {
	if o, ok := t.saved[id]; ok {
		return o, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	o, ok := t.store.orders[id]
	return o, ok
}

func (t *memTx) OrderForUpdate(id string) (*domain.Order, error) {
	o, ok := t.lookup(id)
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (t *memTx) LatestOpenForBuyer(buyerID int64) (*domain.Order, error) {
	t.store.mu.RLock()
	var orders []domain.Order
	for id, o := range t.store.orders {
		if staged, ok := t.saved[id]; ok {
			o = staged
		}
		if o.BuyerID == buyerID {
			orders = append(orders, o)
		}
	}
	t.store.mu.RUnlock()

	latest := domain.LatestOpen(orders)
	if latest == nil {
		return nil, domain.ErrNoPendingOrder
	}
	return latest, nil
}

func (t *memTx) SaveOrder(o *domain.Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	if _, ok := t.lookup(o.ID); !ok {
		return domain.ErrOrderNotFound
	}
	t.saved[o.ID] = *o
	return nil
}

func (t *memTx) IncrementPurchases(userID int64) error {
	t.purchases[userID]++
	return nil
}

// CurrentAdmin returns the administrator record; ActorID is 0 when unset.
func (s *Store) CurrentAdmin(_ context.Context) (domain.AdminRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, nil
}

// CompareAndSwapAdmin replaces the record only if its version still equals expected.
func (s *Store) CompareAndSwapAdmin(_ context.Context, expected int64, actorID int64) (domain.AdminRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin.Version != expected {
		return s.admin, domain.ErrConflict
	}
	s.admin = domain.AdminRecord{ActorID: actorID, Version: expected + 1, UpdatedAt: s.now()}
	return s.admin, nil
}

func copyItem(it domain.Item) domain.Item {
	it.Prices = append(domain.Prices(nil), it.Prices...)
	return it
}
