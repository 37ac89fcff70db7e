package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freesia/internal/application/feed"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// scriptedSource hands the test direct control over what each listener emits.
type scriptedSource struct {
	mu       sync.Mutex
	products func([]productdom.Product)
	sales    func([]saledom.Sale)
	ready    chan struct{}
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{ready: make(chan struct{}, 2)}
}

func (s *scriptedSource) WatchProducts(ctx context.Context, fn func([]productdom.Product)) error {
	s.mu.Lock()
	s.products = fn
	s.mu.Unlock()
	s.ready <- struct{}{}
	<-ctx.Done()
	return nil
}

func (s *scriptedSource) WatchSales(ctx context.Context, fn func([]saledom.Sale)) error {
	s.mu.Lock()
	s.sales = fn
	s.mu.Unlock()
	s.ready <- struct{}{}
	<-ctx.Done()
	return nil
}

func (s *scriptedSource) emitProducts(ps ...productdom.Product) {
	s.mu.Lock()
	fn := s.products
	s.mu.Unlock()
	fn(ps)
}

func (s *scriptedSource) emitSales(ss ...saledom.Sale) {
	s.mu.Lock()
	fn := s.sales
	s.mu.Unlock()
	fn(ss)
}

func startFeed(t *testing.T, src *scriptedSource) *feed.Feed {
	t.Helper()
	f := feed.New(src)
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(f.Close)
	for i := 0; i < 2; i++ {
		select {
		case <-src.ready:
		case <-time.After(5 * time.Second):
			t.Fatal("listeners did not start")
		}
	}
	return f
}

func receive(t *testing.T, sub *feed.Subscription) feed.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
		return feed.Snapshot{}
	}
}

func TestFeed_PublishesFullSortedSnapshots(t *testing.T) {
	src := newScriptedSource()
	f := startFeed(t, src)
	sub := f.Subscribe()
	defer sub.Close()

	src.emitProducts(
		productdom.Product{ID: "b", Title: "shoes"},
		productdom.Product{ID: "a", Title: "Bag"},
	)
	snap := receive(t, sub)
	require.Len(t, snap.Products, 2)
	assert.Equal(t, "Bag", snap.Products[0].Title)
	assert.True(t, snap.ProductsReady)
	assert.False(t, snap.Ready())

	now := time.Now()
	src.emitSales(
		saledom.Sale{ID: "Inv-1", Date: now.Add(-time.Hour)},
		saledom.Sale{ID: "Inv-2", Date: now},
	)
	snap = receive(t, sub)
	assert.True(t, snap.Ready())
	require.Len(t, snap.Sales, 2)
	assert.Equal(t, "Inv-2", snap.Sales[0].ID)
	// the products side is carried along unchanged
	assert.Len(t, snap.Products, 2)

	assert.Equal(t, snap.Seq, f.Current().Seq)
}

func TestFeed_SlowObserverKeepsLatestOnly(t *testing.T) {
	src := newScriptedSource()
	f := startFeed(t, src)
	sub := f.Subscribe()
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		ps := make([]productdom.Product, i)
		for j := range ps {
			ps[j] = productdom.Product{ID: string(rune('a' + j)), Title: string(rune('a' + j))}
		}
		src.emitProducts(ps...)
	}

	snap := receive(t, sub)
	assert.Len(t, snap.Products, 5)
	assert.Equal(t, uint64(5), snap.Seq)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected pending snapshot seq=%d", extra.Seq)
	default:
	}
}

func TestFeed_LateSubscriberGetsCurrent(t *testing.T) {
	src := newScriptedSource()
	f := startFeed(t, src)

	src.emitProducts(productdom.Product{ID: "a", Title: "Bag"})

	sub := f.Subscribe()
	defer sub.Close()
	snap := receive(t, sub)
	assert.Len(t, snap.Products, 1)
}

func TestFeed_CloseClosesSubscriptions(t *testing.T) {
	src := newScriptedSource()
	f := feed.New(src)
	require.NoError(t, f.Start(context.Background()))
	assert.ErrorIs(t, f.Start(context.Background()), feed.ErrAlreadyStarted)

	sub := f.Subscribe()
	other := f.Subscribe()
	other.Close()
	other.Close()
	assert.Equal(t, 1, f.Subscribers())

	f.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := f.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
	assert.ErrorIs(t, f.Start(context.Background()), feed.ErrClosed)
}
