package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"freesia/internal/application/feed"
	common "freesia/internal/domain/common"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// ReportFilter narrows the sales side of a summary. Stock figures follow the
// shipment filter only.
type ReportFilter struct {
	Range    common.TimeRange
	Shipment string
}

type DailyRevenue struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// SalesSummary is the dashboard view of a snapshot.
type SalesSummary struct {
	SalesCount         int             `json:"salesCount"`
	Revenue            decimal.Decimal `json:"revenue"`
	Profit             decimal.Decimal `json:"profit"`
	TodayRevenue       decimal.Decimal `json:"todayRevenue"`
	ActiveStock        int             `json:"activeStock"`
	ActiveStockValue   decimal.Decimal `json:"activeStockValue"`
	RejectedStockValue decimal.Decimal `json:"rejectedStockValue"`
	Shipments          []string        `json:"shipments"`
	Daily              []DailyRevenue  `json:"daily"`
}

// ReportUsecase computes read-only figures; it never writes.
type ReportUsecase struct {
	loc *time.Location
}

// NewReportUsecase buckets days in loc (UTC when nil).
func NewReportUsecase(loc *time.Location) *ReportUsecase {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportUsecase{loc: loc}
}

func (u *ReportUsecase) Location() *time.Location { return u.loc }

func (u *ReportUsecase) Summary(snap feed.Snapshot, f ReportFilter, now time.Time) SalesSummary {
	shipment := strings.TrimSpace(f.Shipment)
	out := SalesSummary{
		Revenue:            decimal.Zero,
		Profit:             decimal.Zero,
		TodayRevenue:       decimal.Zero,
		ActiveStockValue:   decimal.Zero,
		RejectedStockValue: decimal.Zero,
		Shipments:          []string{},
		Daily:              []DailyRevenue{},
	}

	seenShipment := map[string]bool{}
	for _, p := range snap.Products {
		if p.Shipment != "" && !seenShipment[p.Shipment] {
			seenShipment[p.Shipment] = true
			out.Shipments = append(out.Shipments, p.Shipment)
		}
		switch p.Status {
		case productdom.StatusRejected:
			out.RejectedStockValue = out.RejectedStockValue.Add(p.StockValue())
		case productdom.StatusActive:
			if shipment != "" && p.Shipment != shipment {
				continue
			}
			out.ActiveStock += p.Quantity
			out.ActiveStockValue = out.ActiveStockValue.Add(p.StockValue())
		}
	}
	sort.Strings(out.Shipments)

	today := dayKey(now, u.loc)
	daily := map[string]decimal.Decimal{}

	for _, s := range snap.Sales {
		if shipment != "" && !hasShipment(s, shipment) {
			continue
		}

		// today's figure follows the shipment filter but not the date range
		revenue := s.Revenue()
		if dayKey(s.Date, u.loc) == today {
			out.TodayRevenue = out.TodayRevenue.Add(revenue)
		}

		if !f.Range.Contains(s.Date) {
			continue
		}

		out.SalesCount++
		out.Revenue = out.Revenue.Add(revenue)
		out.Profit = out.Profit.Add(revenue.Sub(s.CostOfGoods()))

		k := dayKey(s.Date, u.loc)
		daily[k] = daily[k].Add(revenue)
	}

	for k, v := range daily {
		out.Daily = append(out.Daily, DailyRevenue{Date: k, Total: v})
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out
}

func hasShipment(s saledom.Sale, shipment string) bool {
	for _, it := range s.Items {
		if it.Shipment == shipment {
			return true
		}
	}
	return false
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// LastDays returns [start of the day n-1 days before now, +inf) in loc.
func LastDays(now time.Time, n int, loc *time.Location) common.TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(n - 1))
	return common.TimeRange{From: &from}
}
