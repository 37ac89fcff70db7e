// internal/adapters/out/memory/store.go
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"freesia/internal/application/usecase"
	common "freesia/internal/domain/common"
	invoicedom "freesia/internal/domain/invoice"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// Store is the in-process document store used for local runs and tests.
//
// Transactions are optimistic, like Firestore's: a body runs against the
// committed state while recording the version of everything it read, and
// its buffered writes are applied only if none of those versions moved.
// Otherwise the body is re-run, up to the attempt budget.
type Store struct {
	mu sync.Mutex

	products map[string]productRecord
	sales    map[string]saleRecord
	counter  counterRecord

	clock       uint64
	maxAttempts int
	now         func() time.Time

	watchers  map[uint64]*watcher
	nextWatch uint64

	// beforeCommit runs (unlocked) between a body and its commit. Tests use
	// it to interleave writers.
	beforeCommit func()
}

type productRecord struct {
	p   productdom.Product
	ver uint64
}

type saleRecord struct {
	s   saledom.Sale
	ver uint64
}

type counterRecord struct {
	c   invoicedom.Counter
	ver uint64
	ok  bool
}

type collection int

const (
	colProducts collection = iota
	colSales
)

type watcher struct {
	col    collection
	notify chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAttempts sets the ledger transaction attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides the timestamp source used for product audit fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		products:    map[string]productRecord{},
		sales:       map[string]saleRecord{},
		maxAttempts: 5,
		now:         time.Now,
		watchers:    map[uint64]*watcher{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var errReadAfterWrite = errors.New("memory: read after write in transaction")

// ============================================================
// Ledger transaction
// ============================================================

type ledgerTx struct {
	s *Store

	reads map[string]uint64

	quantities map[string]quantityWrite
	creates    []saledom.Sale
	deletes    []string
	wrote      bool
}

type quantityWrite struct {
	qty int
	at  time.Time
}

func productKey(id string) string { return "products/" + id }
func saleKey(id string) string    { return "sales/" + id }

func (t *ledgerTx) GetProducts(ids []string) (map[string]productdom.Product, error) {
	if t.wrote {
		return nil, errReadAfterWrite
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	out := make(map[string]productdom.Product, len(ids))
	for _, id := range ids {
		rec, ok := t.s.products[id]
		t.reads[productKey(id)] = rec.ver
		if ok {
			out[id] = rec.p
		}
	}
	return out, nil
}

func (t *ledgerTx) GetSale(id string) (saledom.Sale, error) {
	if t.wrote {
		return saledom.Sale{}, errReadAfterWrite
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	rec, ok := t.s.sales[id]
	t.reads[saleKey(id)] = rec.ver
	if !ok {
		return saledom.Sale{}, saledom.ErrNotFound
	}
	return cloneSale(rec.s), nil
}

func (t *ledgerTx) CreateSale(s saledom.Sale) error {
	t.wrote = true
	t.creates = append(t.creates, cloneSale(s))
	return nil
}

func (t *ledgerTx) DeleteSale(id string) error {
	t.wrote = true
	t.deletes = append(t.deletes, id)
	return nil
}

func (t *ledgerTx) SetQuantity(productID string, quantity int, at time.Time) error {
	t.wrote = true
	t.quantities[productID] = quantityWrite{qty: quantity, at: at}
	return nil
}

// RunLedgerTx implements usecase.LedgerStore.
func (s *Store) RunLedgerTx(ctx context.Context, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &ledgerTx{
			s:          s,
			reads:      map[string]uint64{},
			quantities: map[string]quantityWrite{},
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if hook := s.beforeCommit; hook != nil {
			hook()
		}
		committed, err := s.commitLedger(tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return fmt.Errorf("%w: ledger transaction after %d attempts", common.ErrContention, s.maxAttempts)
}

func (s *Store) commitLedger(tx *ledgerTx) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validateLocked(tx.reads) {
		return false, nil
	}

	// Preconditions first so a failing write applies nothing.
	for _, sl := range tx.creates {
		if _, exists := s.sales[sl.ID]; exists {
			return false, fmt.Errorf("%w: %s", saledom.ErrConflict, sl.ID)
		}
	}
	for id := range tx.quantities {
		if _, ok := s.products[id]; !ok {
			return false, fmt.Errorf("%w: %s", productdom.ErrNotFound, id)
		}
	}

	s.clock++
	ver := s.clock
	touched := map[collection]bool{}

	for id, w := range tx.quantities {
		rec := s.products[id]
		rec.p.Quantity = w.qty
		rec.p.UpdatedAt = w.at
		rec.ver = ver
		s.products[id] = rec
		touched[colProducts] = true
	}
	for _, sl := range tx.creates {
		s.sales[sl.ID] = saleRecord{s: sl, ver: ver}
		touched[colSales] = true
	}
	for _, id := range tx.deletes {
		if _, ok := s.sales[id]; ok {
			delete(s.sales, id)
			touched[colSales] = true
		}
	}

	s.notifyLocked(touched)
	return true, nil
}

func (s *Store) validateLocked(reads map[string]uint64) bool {
	for key, seen := range reads {
		var cur uint64
		if id, ok := strings.CutPrefix(key, "products/"); ok {
			cur = s.products[id].ver
		} else if id, ok := strings.CutPrefix(key, "sales/"); ok {
			cur = s.sales[id].ver
		}
		if cur != seen {
			return false
		}
	}
	return true
}

// ============================================================
// Invoice counter
// ============================================================

type counterTx struct {
	s       *Store
	read    bool
	seenVer uint64
	pending *invoicedom.Counter
}

func (t *counterTx) Get() (invoicedom.Counter, bool, error) {
	if t.pending != nil {
		return invoicedom.Counter{}, false, errReadAfterWrite
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.read = true
	t.seenVer = t.s.counter.ver
	return t.s.counter.c, t.s.counter.ok, nil
}

func (t *counterTx) Set(c invoicedom.Counter) error {
	if c.Current < 0 {
		return invoicedom.ErrInvalidCounter
	}
	t.pending = &c
	return nil
}

// RunCounterTx implements invoice.CounterStore.
func (s *Store) RunCounterTx(ctx context.Context, maxAttempts int, fn func(ctx context.Context, tx invoicedom.CounterTx) error) error {
	if maxAttempts <= 0 {
		maxAttempts = s.maxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &counterTx{s: s}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if hook := s.beforeCommit; hook != nil {
			hook()
		}
		if s.commitCounter(tx) {
			return nil
		}
	}
	return fmt.Errorf("%w: counter transaction after %d attempts", common.ErrContention, maxAttempts)
}

func (s *Store) commitCounter(tx *counterTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.read && s.counter.ver != tx.seenVer {
		return false
	}
	if tx.pending == nil {
		return true
	}
	s.clock++
	s.counter = counterRecord{c: *tx.pending, ver: s.clock, ok: true}
	return true
}

// Peek implements invoice.CounterStore.
func (s *Store) Peek(ctx context.Context) (invoicedom.Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.c, s.counter.ok, nil
}

// ============================================================
// Seed writer
// ============================================================

func (s *Store) HasProducts(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products) > 0, nil
}

func (s *Store) HasSales(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales) > 0, nil
}

// WriteSeed overwrites the given documents in one step, like a batch Set.
func (s *Store) WriteSeed(ctx context.Context, products []productdom.Product, sales []saledom.Sale) error {
	for _, p := range products {
		if p.ID == "" {
			return productdom.ErrInvalidID
		}
	}
	for _, sl := range sales {
		if sl.ID == "" {
			return errors.New("memory: seed sale without id")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock++
	touched := map[collection]bool{}
	for _, p := range products {
		s.products[p.ID] = productRecord{p: p, ver: s.clock}
		touched[colProducts] = true
	}
	for _, sl := range sales {
		s.sales[sl.ID] = saleRecord{s: cloneSale(sl), ver: s.clock}
		touched[colSales] = true
	}
	s.notifyLocked(touched)
	return nil
}

// ============================================================
// Change stream
// ============================================================

func (s *Store) addWatcher(col collection) (uint64, *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWatch++
	w := &watcher{col: col, notify: make(chan struct{}, 1)}
	w.notify <- struct{}{}
	s.watchers[s.nextWatch] = w
	return s.nextWatch, w
}

func (s *Store) removeWatcher(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, id)
}

func (s *Store) notifyLocked(touched map[collection]bool) {
	for _, w := range s.watchers {
		if !touched[w.col] {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// WatchProducts implements feed.Source. The first call to fn carries the
// current contents.
func (s *Store) WatchProducts(ctx context.Context, fn func([]productdom.Product)) error {
	id, w := s.addWatcher(colProducts)
	defer s.removeWatcher(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.notify:
			fn(s.snapshotProducts())
		}
	}
}

// WatchSales implements feed.Source.
func (s *Store) WatchSales(ctx context.Context, fn func([]saledom.Sale)) error {
	id, w := s.addWatcher(colSales)
	defer s.removeWatcher(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.notify:
			fn(s.snapshotSales())
		}
	}
}

func (s *Store) snapshotProducts() []productdom.Product {
	s.mu.Lock()
	out := make([]productdom.Product, 0, len(s.products))
	for _, rec := range s.products {
		out = append(out, rec.p)
	}
	s.mu.Unlock()
	productdom.SortByTitle(out)
	return out
}

func (s *Store) snapshotSales() []saledom.Sale {
	s.mu.Lock()
	out := make([]saledom.Sale, 0, len(s.sales))
	for _, rec := range s.sales {
		out = append(out, cloneSale(rec.s))
	}
	s.mu.Unlock()
	saledom.SortByDateDesc(out)
	return out
}

func cloneSale(s saledom.Sale) saledom.Sale {
	items := make([]saledom.Item, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

func newID() string { return uuid.NewString() }
