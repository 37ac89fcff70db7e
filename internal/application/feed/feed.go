// internal/application/feed/feed.go
package feed

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// Source delivers the full, committed contents of a collection every time it
// changes. Watch calls block until ctx is done or the listener breaks.
type Source interface {
	WatchProducts(ctx context.Context, fn func([]productdom.Product)) error
	WatchSales(ctx context.Context, fn func([]saledom.Sale)) error
}

// Snapshot is the converged view pushed to observers. Slices are shared
// between observers and must be treated as read-only.
type Snapshot struct {
	Seq           uint64               `json:"seq"`
	Products      []productdom.Product `json:"products"`
	Sales         []saledom.Sale       `json:"sales"`
	ProductsReady bool                 `json:"productsReady"`
	SalesReady    bool                 `json:"salesReady"`
	At            time.Time            `json:"at"`
}

// Ready reports whether both collections have been received at least once.
func (s Snapshot) Ready() bool { return s.ProductsReady && s.SalesReady }

var (
	ErrAlreadyStarted = errors.New("feed: already started")
	ErrClosed         = errors.New("feed: closed")
)

// Feed is the single subscriber to the store's change streams and the single
// publisher to in-process observers.
type Feed struct {
	src        Source
	retryDelay time.Duration

	mu      sync.Mutex
	current Snapshot
	subs    map[uint64]*Subscription
	nextSub uint64
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(src Source) *Feed {
	return &Feed{
		src:        src,
		retryDelay: 2 * time.Second,
		subs:       map[uint64]*Subscription{},
	}
}

// Start opens one listener per collection. It returns immediately.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.started {
		return ErrAlreadyStarted
	}
	f.started = true

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(2)
	go f.watch(ctx, "products", func(ctx context.Context) error {
		return f.src.WatchProducts(ctx, f.onProducts)
	})
	go f.watch(ctx, "sales", func(ctx context.Context) error {
		return f.src.WatchSales(ctx, f.onSales)
	})
	return nil
}

// watch keeps a listener alive, re-subscribing after a broken stream.
func (f *Feed) watch(ctx context.Context, name string, run func(context.Context) error) {
	defer f.wg.Done()
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[feed] %s listener stopped: %v (retry in %s)", name, err, f.retryDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retryDelay):
		}
	}
}

// Close stops the listeners and closes every observer channel.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()

	f.mu.Lock()
	for id, s := range f.subs {
		close(s.ch)
		delete(f.subs, id)
	}
	f.mu.Unlock()
}

// Current returns the latest published snapshot.
func (f *Feed) Current() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Feed) onProducts(ps []productdom.Product) {
	cp := make([]productdom.Product, len(ps))
	copy(cp, ps)
	productdom.SortByTitle(cp)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.current.Products = cp
	f.current.ProductsReady = true
	f.publishLocked()
}

func (f *Feed) onSales(ss []saledom.Sale) {
	cp := make([]saledom.Sale, len(ss))
	copy(cp, ss)
	saledom.SortByDateDesc(cp)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.current.Sales = cp
	f.current.SalesReady = true
	f.publishLocked()
}

func (f *Feed) publishLocked() {
	if f.closed {
		return
	}
	f.current.Seq++
	f.current.At = time.Now().UTC()
	snap := f.current
	for _, s := range f.subs {
		s.offer(snap)
	}
}

// ============================================================
// Subscription
// ============================================================

// Subscription receives full snapshots on C. Only the latest undelivered
// snapshot is kept; C is closed by Close or when the feed closes.
type Subscription struct {
	C <-chan Snapshot

	ch   chan Snapshot
	id   uint64
	feed *Feed
}

// Subscribe registers an observer. If a snapshot was already published it is
// delivered immediately.
func (f *Feed) Subscribe() *Subscription {
	ch := make(chan Snapshot, 1)
	s := &Subscription{C: ch, ch: ch, feed: f}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return s
	}
	f.nextSub++
	s.id = f.nextSub
	f.subs[s.id] = s
	if f.current.Seq > 0 {
		s.offer(f.current)
	}
	return s
}

// offer replaces any pending snapshot with snap. Callers hold feed.mu, so
// no other sender races the drain.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// Close unregisters the observer. Safe to call more than once.
func (s *Subscription) Close() {
	f := s.feed
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s.id]; !ok {
		return
	}
	delete(f.subs, s.id)
	close(s.ch)
}

// Subscribers returns the number of registered observers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
