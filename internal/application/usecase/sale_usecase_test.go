package usecase_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freesia/internal/adapters/out/memory"
	"freesia/internal/application/usecase"
	invoicedom "freesia/internal/domain/invoice"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

type fixture struct {
	store    *memory.Store
	products *usecase.ProductUsecase
	invoices *usecase.InvoiceSequencer
	sales    *usecase.SaleUsecase
}

func newFixture(t *testing.T, opts ...memory.Option) fixture {
	t.Helper()
	store := memory.New(opts...)
	invoices := usecase.NewInvoiceSequencer(store, usecase.InvoiceConfig{MaxAttempts: 1000})
	return fixture{
		store:    store,
		products: usecase.NewProductUsecase(store.Products(), store),
		invoices: invoices,
		sales:    usecase.NewSaleUsecase(store.Sales(), store.Products(), store, invoices),
	}
}

func (f fixture) addProduct(t *testing.T, title string, qty int, sell int64) productdom.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), productdom.CreateInput{
		Title:        title,
		Quantity:     qty,
		BuyPrice:     decimal.NewFromInt(sell / 2),
		ShippingCost: decimal.NewFromInt(5),
		SellPrice:    decimal.NewFromInt(sell),
	})
	require.NoError(t, err)
	return p
}

func (f fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func order(lines ...saledom.LineInput) usecase.CreateSaleInput {
	return usecase.CreateSaleInput{
		Customer: saledom.Customer{Name: "A", Phone: "01700000001", Address: "X"},
		Items:    lines,
	}
}

func line(productID string, qty int) saledom.LineInput {
	return saledom.LineInput{ProductID: productID, Quantity: qty}
}

func price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestCreateSale_SellsOutThenRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 5, 100)

	_, err := f.sales.CreateSale(ctx, order(line(p.ID, 5)))
	require.NoError(t, err)
	assert.Equal(t, 0, f.quantity(t, p.ID))

	_, err = f.sales.CreateSale(ctx, order(line(p.ID, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, saledom.ErrInsufficientStock)

	var se *saledom.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, p.ID, se.ProductID)
	assert.Equal(t, 1, se.Requested)
	assert.Equal(t, 0, se.Available)

	assert.Equal(t, 0, f.quantity(t, p.ID))
}

func TestCreateSale_ConcurrentOversubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithMaxAttempts(1000))
	p := f.addProduct(t, "Dress", 5, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sales.CreateSale(ctx, order(line(p.ID, 3)))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, saledom.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, f.quantity(t, p.ID))

	list, err := f.sales.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateSale_TotalAndInvoiceID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 10, 150)

	before, err := f.invoices.Peek(ctx)
	require.NoError(t, err)

	in := order(saledom.LineInput{ProductID: p.ID, Quantity: 2, UnitPrice: price(100)})
	in.Discount = decimal.NewFromInt(10)
	in.DeliveryCharge = decimal.NewFromInt(20)

	s, err := f.sales.CreateSale(ctx, in)
	require.NoError(t, err)

	assert.True(t, s.Total.Equal(decimal.NewFromInt(210)), "total=%s", s.Total)
	assert.Equal(t, invoicedom.FormatID("Inv-", before+1), s.ID)
	assert.Equal(t, "Inv-12321", s.ID)
	assert.True(t, s.TotalConsistent())

	require.Len(t, s.Items, 1)
	it := s.Items[0]
	assert.Equal(t, "Dress", it.Title)
	assert.True(t, it.UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, it.UnitCost.Equal(decimal.NewFromInt(80)), "unitCost=%s", it.UnitCost)
	assert.Equal(t, saledom.Customer{Name: "A", Phone: "01700000001", Address: "X"}, s.Customer)
	assert.Equal(t, 8, f.quantity(t, p.ID))

	stored, err := f.sales.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)
	assert.True(t, stored.Total.Equal(s.Total))
}

func TestCreateSale_DefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 10, 150)

	s, err := f.sales.CreateSale(ctx, order(
		line(p.ID, 1),
		saledom.LineInput{ProductID: p.ID, Quantity: 2, UnitPrice: price(120), Title: "Dress (gift wrap)"},
	))
	require.NoError(t, err)

	require.Len(t, s.Items, 2)
	assert.Equal(t, "Dress", s.Items[0].Title)
	assert.True(t, s.Items[0].UnitPrice.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "Dress (gift wrap)", s.Items[1].Title)
	assert.True(t, s.Total.Equal(decimal.NewFromInt(390)))

	// duplicate lines aggregate against stock
	assert.Equal(t, 7, f.quantity(t, p.ID))
}

func TestCreateSale_DuplicateLinesCheckedTogether(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 3, 100)

	_, err := f.sales.CreateSale(ctx, order(line(p.ID, 2), line(p.ID, 2)))
	var se *saledom.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4, se.Requested)
	assert.Equal(t, 3, se.Available)
	assert.Equal(t, 3, f.quantity(t, p.ID))
}

func TestCreateSale_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 3, 100)

	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		in   usecase.CreateSaleInput
		want error
	}{
		{"empty order", order(), saledom.ErrEmptyOrder},
		{"zero quantity", order(line(p.ID, 0)), saledom.ErrInvalidItem},
		{"no product id", order(line("  ", 1)), saledom.ErrInvalidItem},
		{"negative price", order(saledom.LineInput{ProductID: p.ID, Quantity: 1, UnitPrice: &negative}), saledom.ErrInvalidAmount},
		{"negative discount", func() usecase.CreateSaleInput {
			in := order(line(p.ID, 1))
			in.Discount = negative
			return in
		}(), saledom.ErrInvalidAmount},
		{"discount above order value", func() usecase.CreateSaleInput {
			in := order(line(p.ID, 1))
			in.Discount = decimal.NewFromInt(500)
			return in
		}(), saledom.ErrInvalidAmount},
		{"unknown product", order(line("nope", 1)), productdom.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sales.CreateSale(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// none of the rejected orders consumed an invoice number
	n, err := f.invoices.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, invoicedom.DefaultInitialNumber, n)
	assert.Equal(t, 3, f.quantity(t, p.ID))
}

func TestCreateSale_HugeQuantitiesCannotWrapStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 5, 100)

	tests := []struct {
		name string
		in   usecase.CreateSaleInput
	}{
		{"two max int lines", order(line(p.ID, math.MaxInt), line(p.ID, math.MaxInt))},
		{"one max int line", order(line(p.ID, math.MaxInt))},
		{"lines summing past the cap", order(line(p.ID, saledom.MaxLineQuantity), line(p.ID, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sales.CreateSale(ctx, tt.in)
			assert.ErrorIs(t, err, saledom.ErrInvalidItem)
		})
	}

	_, err := f.sales.CreateSale(ctx, order(line(p.ID, saledom.MaxLineQuantity)))
	assert.ErrorIs(t, err, saledom.ErrInsufficientStock)

	assert.Equal(t, 5, f.quantity(t, p.ID))
	list, err := f.sales.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	n, err := f.invoices.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, invoicedom.DefaultInitialNumber, n)
}

func TestCreateSale_RejectedProductNotSellable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 3, 100)

	_, err := f.products.SetStatus(ctx, p.ID, productdom.StatusRejected)
	require.NoError(t, err)

	_, err = f.sales.CreateSale(ctx, order(line(p.ID, 1)))
	assert.ErrorIs(t, err, saledom.ErrProductNotSellable)
	assert.Equal(t, 3, f.quantity(t, p.ID))
}

func TestDeleteSale_RoundTripRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "Dress", 5, 100)
	b := f.addProduct(t, "Bag", 4, 80)

	s, err := f.sales.CreateSale(ctx, order(line(a.ID, 2), line(b.ID, 1), line(a.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, 2, f.quantity(t, a.ID))
	assert.Equal(t, 3, f.quantity(t, b.ID))

	report, err := f.sales.DeleteSale(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, report.Partial())
	assert.Equal(t, map[string]int{a.ID: 3, b.ID: 1}, report.Restored)

	assert.Equal(t, 5, f.quantity(t, a.ID))
	assert.Equal(t, 4, f.quantity(t, b.ID))

	_, err = f.sales.GetByID(ctx, s.ID)
	assert.ErrorIs(t, err, saledom.ErrNotFound)
}

func TestDeleteSale_TwiceRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 5, 100)

	s, err := f.sales.CreateSale(ctx, order(line(p.ID, 2)))
	require.NoError(t, err)

	_, err = f.sales.DeleteSale(ctx, s.ID)
	require.NoError(t, err)
	_, err = f.sales.DeleteSale(ctx, s.ID)
	assert.ErrorIs(t, err, saledom.ErrNotFound)

	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestDeleteSale_ConcurrentDeletesRestoreOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithMaxAttempts(1000))
	p := f.addProduct(t, "Dress", 5, 100)

	s, err := f.sales.CreateSale(ctx, order(line(p.ID, 4)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sales.DeleteSale(ctx, s.ID)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, saledom.ErrNotFound)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestDeleteSale_ProductGoneIsPartialRestock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gone := f.addProduct(t, "Dress", 5, 100)
	kept := f.addProduct(t, "Bag", 5, 100)

	s, err := f.sales.CreateSale(ctx, order(line(gone.ID, 2), line(kept.ID, 1)))
	require.NoError(t, err)

	require.NoError(t, f.products.Delete(ctx, gone.ID))

	report, err := f.sales.DeleteSale(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, report.Partial())
	require.Len(t, report.Warnings, 1)
	w := report.Warnings[0]
	assert.Equal(t, s.ID, w.SaleID)
	assert.Equal(t, gone.ID, w.ProductID)
	assert.Equal(t, "Dress", w.Title)
	assert.Equal(t, 2, w.Quantity)
	assert.Equal(t, map[string]int{kept.ID: 1}, report.Restored)

	_, err = f.sales.GetByID(ctx, s.ID)
	assert.ErrorIs(t, err, saledom.ErrNotFound)
	assert.Equal(t, 5, f.quantity(t, kept.ID))
}

func TestDeleteSale_UnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.sales.DeleteSale(context.Background(), "Inv-1")
	assert.ErrorIs(t, err, saledom.ErrNotFound)
	_, err = f.sales.DeleteSale(context.Background(), "")
	assert.ErrorIs(t, err, saledom.ErrNotFound)
}

func TestCreateSale_ConcurrentCallsGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithMaxAttempts(1000))
	const n = 25

	products := make([]productdom.Product, 5)
	for i := range products {
		products[i] = f.addProduct(t, string(rune('A'+i)), 100, 10)
	}

	before, err := f.invoices.Peek(ctx)
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.sales.CreateSale(ctx, order(line(products[i%len(products)].ID, 1)))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids = append(ids, s.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, ids, n)
	nums := make([]int64, 0, n)
	seen := map[int64]bool{}
	for _, id := range ids {
		num, err := invoicedom.ParseID("Inv-", id)
		require.NoError(t, err)
		assert.False(t, seen[num], "duplicate %s", id)
		seen[num] = true
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	assert.Greater(t, nums[0], before)
	assert.LessOrEqual(t, nums[len(nums)-1], before+n)

	total := 0
	for _, p := range products {
		total += f.quantity(t, p.ID)
	}
	assert.Equal(t, 5*100-n, total)
}

func TestCreateSale_StockNeverNegativeUnderLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithMaxAttempts(1000))
	p := f.addProduct(t, "Dress", 10, 100)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.CreateSale(ctx, order(line(p.ID, 1)))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, saledom.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, f.quantity(t, p.ID))
}

func TestCreateSale_DateFromServiceClock(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 3, 100)

	before := time.Now().UTC().Add(-time.Second)
	s, err := f.sales.CreateSale(context.Background(), order(line(p.ID, 1)))
	require.NoError(t, err)
	assert.True(t, s.Date.After(before))
	assert.Equal(t, time.UTC, s.Date.Location())
}
