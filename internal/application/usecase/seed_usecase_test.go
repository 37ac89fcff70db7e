package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freesia/internal/adapters/out/memory"
	"freesia/internal/application/usecase"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

const seedYAML = `
products:
  - key: prod1
    title: Floral Dress
    quantity: 5
    buyPrice: "1200"
    shippingCost: "100"
    sellPrice: "2400"
    shipment: March
  - key: prod2
    title: Leather Bag
    quantity: 0
    buyPrice: "800"
    shippingCost: "50"
    sellPrice: "1500"
    status: rejected
sales:
  - id: Inv-12330
    customer: {name: Rina, phone: "01700000001", address: Dhaka}
    items:
      - product: prod1
        quantity: 2
    deliveryCharge: "60"
    daysAgo: 1
  - id: Inv-12329
    customer: {name: Mita}
    items:
      - product: prod2
        quantity: 1
        unitPrice: "1400"
        title: Bag (display)
    discount: "100"
    daysAgo: 3
`

func TestSeedUsecase_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := usecase.NewInvoiceSequencer(store, usecase.InvoiceConfig{})
	uc := usecase.NewSeedUsecase(store, store.Sales(), seq)

	data, err := usecase.ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	res, err := uc.Run(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Products)
	assert.Equal(t, 2, res.Sales)
	assert.Equal(t, int64(12330), res.Counter)

	p, err := store.Products().GetByID(ctx, "prod2")
	require.NoError(t, err)
	assert.Equal(t, productdom.StatusRejected, p.Status)

	// seeded sales are historical: stock is not moved
	p, err = store.Products().GetByID(ctx, "prod1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)

	s, err := store.Sales().GetByID(ctx, "Inv-12330")
	require.NoError(t, err)
	assert.Equal(t, "Rina", s.Customer.Name)
	assert.True(t, s.Total.Equal(dec("4860")), "total=%s", s.Total)
	assert.True(t, s.Items[0].UnitCost.Equal(dec("1300")))

	s, err = store.Sales().GetByID(ctx, "Inv-12329")
	require.NoError(t, err)
	assert.Equal(t, "Bag (display)", s.Items[0].Title)
	assert.True(t, s.Total.Equal(dec("1300")))

	next, err := seq.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12331), next)
}

func TestSeedUsecase_SkipsPopulatedCollections(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seq := usecase.NewInvoiceSequencer(store, usecase.InvoiceConfig{})
	uc := usecase.NewSeedUsecase(store, store.Sales(), seq)

	_, err := usecase.NewProductUsecase(store.Products(), store).Create(ctx, productCreate("Existing", 1))
	require.NoError(t, err)

	data, err := usecase.ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	res, err := uc.Run(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Products)
	assert.Equal(t, 2, res.Sales)

	list, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// a second run writes nothing
	res, err = uc.Run(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Products)
	assert.Equal(t, 0, res.Sales)
	assert.Equal(t, int64(12330), res.Counter)
}

func TestSeedUsecase_CounterFollowsExistingSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, "Dress", 5, 100)

	// a sale already in the store, with no counter document
	legacy, err := saledom.New("Inv-12321", saledom.Customer{Name: "Old"}, []saledom.Item{{
		ProductID: p.ID, Title: p.Title, Quantity: 1, UnitPrice: dec("100"), UnitCost: dec("55"),
	}}, dec("0"), dec("0"), time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.WriteSeed(ctx, nil, []saledom.Sale{legacy}))

	uc := usecase.NewSeedUsecase(f.store, f.store.Sales(), f.invoices)
	res, err := uc.Run(ctx, usecase.SeedData{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sales)
	assert.Equal(t, int64(12321), res.Counter)

	s, err := f.sales.CreateSale(ctx, order(line(p.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, "Inv-12322", s.ID)
}

func TestSeedUsecase_RejectsBadData(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	uc := usecase.NewSeedUsecase(store, store.Sales(), nil)

	tests := []struct {
		name string
		yaml string
	}{
		{"missing key", "products:\n  - title: x\n"},
		{"bad amount", "products:\n  - key: a\n    sellPrice: abc\n"},
		{"unknown product", "sales:\n  - id: Inv-1\n    items:\n      - product: nope\n        quantity: 1\n"},
		{"empty sale", "sales:\n  - id: Inv-1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := usecase.ParseSeed([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = uc.Run(ctx, data)
			assert.Error(t, err)
		})
	}

	has, err := store.HasProducts(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}
