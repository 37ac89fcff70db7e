package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freesia/internal/adapters/out/memory"
	"freesia/internal/application/usecase"
	common "freesia/internal/domain/common"
	invoicedom "freesia/internal/domain/invoice"
)

// contendedCounter always reports that the transaction lost its race.
type contendedCounter struct {
	attempts int
}

func (c *contendedCounter) RunCounterTx(ctx context.Context, maxAttempts int, fn func(ctx context.Context, tx invoicedom.CounterTx) error) error {
	c.attempts = maxAttempts
	return fmt.Errorf("%w: simulated", common.ErrContention)
}

func (c *contendedCounter) Peek(ctx context.Context) (invoicedom.Counter, bool, error) {
	return invoicedom.Counter{}, false, nil
}

func TestInvoiceSequencer_LazyInitAndIncrement(t *testing.T) {
	ctx := context.Background()
	seq := usecase.NewInvoiceSequencer(memory.New(), usecase.InvoiceConfig{})

	n, err := seq.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12320), n)

	for want := int64(12321); want <= 12323; want++ {
		got, err := seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, "Inv-12323", seq.FormatID(12323))

	n, err = seq.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12323), n)
}

func TestInvoiceSequencer_CustomConfig(t *testing.T) {
	seq := usecase.NewInvoiceSequencer(memory.New(), usecase.InvoiceConfig{Prefix: "POS-", InitialNumber: 100})

	got, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
	assert.Equal(t, "POS-101", seq.FormatID(got))
}

func TestInvoiceSequencer_ContentionIsTransientFailure(t *testing.T) {
	store := &contendedCounter{}
	seq := usecase.NewInvoiceSequencer(store, usecase.InvoiceConfig{MaxAttempts: 3})

	n, err := seq.Next(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, invoicedom.ErrTransientAllocationFailure))
	assert.True(t, errors.Is(err, common.ErrContention))
	assert.Equal(t, 3, store.attempts)
}

func TestInvoiceSequencer_ConcurrentNextUnique(t *testing.T) {
	ctx := context.Background()
	seq := usecase.NewInvoiceSequencer(memory.New(), usecase.InvoiceConfig{MaxAttempts: 1000})
	const n = 40

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := seq.Next(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[got], "duplicate %d", got)
			seen[got] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for v := int64(12321); v <= 12320+n; v++ {
		assert.True(t, seen[v], "missing %d", v)
	}
}

func TestInvoiceSequencer_InitializeIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := usecase.NewInvoiceSequencer(store, usecase.InvoiceConfig{})

	v, err := seq.InitializeIfAbsent(ctx, 12400)
	require.NoError(t, err)
	assert.Equal(t, int64(12400), v)

	// existing counter is never rewound or bumped
	v, err = seq.InitializeIfAbsent(ctx, 99999)
	require.NoError(t, err)
	assert.Equal(t, int64(12400), v)

	next, err := seq.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12401), next)
}

func TestCreateSale_AllocationFailureLeavesStock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := usecase.NewInvoiceSequencer(&contendedCounter{}, usecase.InvoiceConfig{})
	products := usecase.NewProductUsecase(store.Products(), store)
	sales := usecase.NewSaleUsecase(store.Sales(), store.Products(), store, seq)

	p, err := products.Create(ctx, productCreate("Dress", 3))
	require.NoError(t, err)

	_, err = sales.CreateSale(ctx, order(line(p.ID, 1)))
	assert.ErrorIs(t, err, invoicedom.ErrTransientAllocationFailure)

	after, err := products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quantity)

	list, err := sales.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
