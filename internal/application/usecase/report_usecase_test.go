package usecase_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freesia/internal/application/feed"
	"freesia/internal/application/usecase"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func reportSnapshot(t *testing.T, now time.Time) feed.Snapshot {
	t.Helper()

	products := []productdom.Product{
		{ID: "p1", Title: "Dress", Quantity: 4, BuyPrice: dec("100"), ShippingCost: dec("10"), SellPrice: dec("200"), Status: productdom.StatusActive, Shipment: "March"},
		{ID: "p2", Title: "Bag", Quantity: 2, BuyPrice: dec("50"), ShippingCost: dec("5"), SellPrice: dec("90"), Status: productdom.StatusActive, Shipment: "April"},
		{ID: "p3", Title: "Shoes", Quantity: 3, BuyPrice: dec("20"), ShippingCost: dec("0"), SellPrice: dec("40"), Status: productdom.StatusRejected, Shipment: "March"},
	}

	mk := func(id string, date time.Time, item saledom.Item, delivery string) saledom.Sale {
		s, err := saledom.New(id, saledom.Customer{Name: "C"}, []saledom.Item{item}, decimal.Zero, dec(delivery), date)
		require.NoError(t, err)
		return s
	}
	sales := []saledom.Sale{
		mk("Inv-3", now.Add(-time.Hour), saledom.Item{ProductID: "p1", Title: "Dress", Quantity: 1, UnitPrice: dec("200"), UnitCost: dec("110"), Shipment: "March"}, "60"),
		mk("Inv-2", now.AddDate(0, 0, -2), saledom.Item{ProductID: "p2", Title: "Bag", Quantity: 2, UnitPrice: dec("90"), UnitCost: dec("55"), Shipment: "April"}, "0"),
		mk("Inv-1", now.AddDate(0, 0, -40), saledom.Item{ProductID: "p1", Title: "Dress", Quantity: 1, UnitPrice: dec("180"), UnitCost: dec("110"), Shipment: "March"}, "0"),
	}
	return feed.Snapshot{Seq: 1, Products: products, Sales: sales, ProductsReady: true, SalesReady: true}
}

func TestReportUsecase_Summary(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	snap := reportSnapshot(t, now)
	uc := usecase.NewReportUsecase(time.UTC)

	t.Run("all time", func(t *testing.T) {
		got := uc.Summary(snap, usecase.ReportFilter{}, now)

		assert.Equal(t, 3, got.SalesCount)
		// revenue excludes delivery: 200 + 180 + 180
		assert.True(t, got.Revenue.Equal(dec("560")), "revenue=%s", got.Revenue)
		// profit: (200-110) + (180-110) + (180-110)
		assert.True(t, got.Profit.Equal(dec("230")), "profit=%s", got.Profit)
		assert.True(t, got.TodayRevenue.Equal(dec("200")), "today=%s", got.TodayRevenue)

		assert.Equal(t, 6, got.ActiveStock)
		assert.True(t, got.ActiveStockValue.Equal(dec("550")), "stock value=%s", got.ActiveStockValue)
		assert.True(t, got.RejectedStockValue.Equal(dec("60")))
		assert.Equal(t, []string{"April", "March"}, got.Shipments)
		require.Len(t, got.Daily, 3)
		assert.Equal(t, "2026-02-08", got.Daily[0].Date)
		assert.Equal(t, "2026-03-20", got.Daily[2].Date)
	})

	t.Run("last 7 days", func(t *testing.T) {
		got := uc.Summary(snap, usecase.ReportFilter{Range: usecase.LastDays(now, 7, time.UTC)}, now)
		assert.Equal(t, 2, got.SalesCount)
		assert.True(t, got.Revenue.Equal(dec("380")))
	})

	t.Run("shipment", func(t *testing.T) {
		got := uc.Summary(snap, usecase.ReportFilter{Shipment: "March"}, now)
		assert.Equal(t, 2, got.SalesCount)
		assert.Equal(t, 4, got.ActiveStock)
		assert.True(t, got.ActiveStockValue.Equal(dec("440")))
		// rejected stock ignores the filter
		assert.True(t, got.RejectedStockValue.Equal(dec("60")))
		assert.True(t, got.TodayRevenue.Equal(dec("200")))
	})

	t.Run("shipment without sales today", func(t *testing.T) {
		got := uc.Summary(snap, usecase.ReportFilter{Shipment: "April"}, now)
		assert.Equal(t, 1, got.SalesCount)
		assert.True(t, got.Revenue.Equal(dec("180")), "revenue=%s", got.Revenue)
		assert.True(t, got.TodayRevenue.IsZero(), "today=%s", got.TodayRevenue)
	})
}

func TestReportUsecase_EmptySnapshot(t *testing.T) {
	got := usecase.NewReportUsecase(nil).Summary(feed.Snapshot{}, usecase.ReportFilter{}, time.Now())
	assert.Zero(t, got.SalesCount)
	assert.True(t, got.Revenue.IsZero())
	assert.NotNil(t, got.Daily)
	assert.NotNil(t, got.Shipments)
}
