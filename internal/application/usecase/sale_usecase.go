package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// CreateSaleInput is an operator's order before an invoice number is bound.
type CreateSaleInput struct {
	Customer       saledom.Customer
	Items          []saledom.LineInput
	Discount       decimal.Decimal
	DeliveryCharge decimal.Decimal
}

// SaleUsecase coordinates a sale across the invoice sequencer and the
// product ledger: either the sale exists and stock is decremented, or neither.
type SaleUsecase struct {
	repo     saledom.RepositoryPort
	products productdom.RepositoryPort
	ledger   LedgerStore
	invoices *InvoiceSequencer
	now      func() time.Time
	tracer   trace.Tracer
}

func NewSaleUsecase(
	repo saledom.RepositoryPort,
	products productdom.RepositoryPort,
	ledger LedgerStore,
	invoices *InvoiceSequencer,
) *SaleUsecase {
	return &SaleUsecase{
		repo:     repo,
		products: products,
		ledger:   ledger,
		invoices: invoices,
		now:      time.Now,
		tracer:   otel.Tracer("freesia/usecase/sale"),
	}
}

// =======================
// Queries
// =======================

func (u *SaleUsecase) GetByID(ctx context.Context, id string) (saledom.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return saledom.Sale{}, saledom.ErrNotFound
	}
	return u.repo.GetByID(ctx, id)
}

func (u *SaleUsecase) List(ctx context.Context) ([]saledom.Sale, error) {
	return u.repo.List(ctx)
}

// =======================
// CreateSale
// =======================

// CreateSale validates the order, reserves an invoice number and commits the
// sale together with the stock decrements.
//
// A number is consumed only once validation and the advisory stock check
// pass. If the ledger transaction still fails afterwards the number is
// burned; the sequence tolerates gaps.
func (u *SaleUsecase) CreateSale(ctx context.Context, in CreateSaleInput) (saledom.Sale, error) {
	if u == nil || u.ledger == nil || u.invoices == nil {
		return saledom.Sale{}, errors.New("sale usecase is not wired")
	}

	ctx, span := u.tracer.Start(ctx, "sale.create")
	defer span.End()

	if err := saledom.ValidateLines(in.Items); err != nil {
		return saledom.Sale{}, err
	}
	if in.Discount.IsNegative() || in.DeliveryCharge.IsNegative() {
		return saledom.Sale{}, fmt.Errorf("%w: discount and delivery charge must not be negative", saledom.ErrInvalidAmount)
	}

	wanted := saledom.AggregateLines(in.Items)
	ids := saledom.SortedIDs(wanted)
	span.SetAttributes(attribute.Int("sale.lines", len(in.Items)), attribute.Int("sale.products", len(ids)))

	// Advisory check against the last committed state. The transaction below
	// repeats it authoritatively.
	if err := u.precheck(ctx, in, wanted, ids); err != nil {
		span.RecordError(err)
		return saledom.Sale{}, err
	}

	n, err := u.invoices.Next(ctx)
	if err != nil {
		span.RecordError(err)
		return saledom.Sale{}, err
	}
	id := u.invoices.FormatID(n)
	span.SetAttributes(attribute.String("sale.id", id))

	var committed saledom.Sale
	err = u.ledger.RunLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		committed = saledom.Sale{}

		current, err := tx.GetProducts(ids)
		if err != nil {
			return err
		}
		if err := checkAvailability(wanted, ids, current); err != nil {
			return err
		}

		now := u.now()
		s, err := buildSale(id, in, current, now)
		if err != nil {
			return err
		}
		if err := tx.CreateSale(s); err != nil {
			return err
		}
		for _, pid := range ids {
			next, err := current[pid].ApplyDelta(-wanted[pid])
			if err != nil {
				return err
			}
			if err := tx.SetQuantity(pid, next, now.UTC()); err != nil {
				return err
			}
		}
		committed = s
		return nil
	})
	if err != nil {
		span.RecordError(err)
		log.Printf("[sale_uc] create aborted id=%s (number burned) err=%v", id, err)
		return saledom.Sale{}, err
	}

	log.Printf("[sale_uc] created id=%s lines=%d total=%s", committed.ID, len(committed.Items), committed.Total.String())
	return committed, nil
}

func (u *SaleUsecase) precheck(
	ctx context.Context,
	in CreateSaleInput,
	wanted map[string]int,
	ids []string,
) error {
	if u.products == nil {
		return nil
	}
	current := make(map[string]productdom.Product, len(ids))
	for _, pid := range ids {
		p, err := u.products.GetByID(ctx, pid)
		if err != nil {
			if errors.Is(err, productdom.ErrNotFound) {
				continue
			}
			return err
		}
		current[pid] = p
	}
	if err := checkAvailability(wanted, ids, current); err != nil {
		return err
	}
	// Amount checks that depend on default prices (e.g. discount larger than
	// the order) are caught here too, before a number is consumed.
	_, err := buildSale("", in, current, u.now())
	return err
}

// checkAvailability verifies every requested product exists, is sellable
// and holds enough units for the aggregated request.
func checkAvailability(wanted map[string]int, ids []string, current map[string]productdom.Product) error {
	for _, pid := range ids {
		p, ok := current[pid]
		if !ok {
			return fmt.Errorf("%w: %s", productdom.ErrNotFound, pid)
		}
		if !p.Sellable() {
			return fmt.Errorf("%w: %q is %s", saledom.ErrProductNotSellable, p.Title, p.Status)
		}
		if wanted[pid] < 1 {
			return fmt.Errorf("%w: product %s quantity %d", saledom.ErrInvalidItem, pid, wanted[pid])
		}
		if wanted[pid] > p.Quantity {
			return &saledom.StockError{
				ProductID: pid,
				Title:     p.Title,
				Requested: wanted[pid],
				Available: p.Quantity,
			}
		}
	}
	return nil
}

// buildSale binds each line to its product and takes the snapshots.
func buildSale(id string, in CreateSaleInput, current map[string]productdom.Product, now time.Time) (saledom.Sale, error) {
	items := make([]saledom.Item, 0, len(in.Items))
	for _, l := range in.Items {
		pid := strings.TrimSpace(l.ProductID)
		p := current[pid]

		title := strings.TrimSpace(l.Title)
		if title == "" {
			title = p.Title
		}
		price := p.SellPrice
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}

		items = append(items, saledom.Item{
			ProductID: pid,
			Title:     title,
			Quantity:  l.Quantity,
			UnitPrice: price,
			UnitCost:  p.UnitCost(),
			Shipment:  p.Shipment,
		})
	}
	return saledom.New(id, in.Customer, items, in.Discount, in.DeliveryCharge, now)
}

// =======================
// DeleteSale
// =======================

// DeleteSale removes the sale and puts its units back in the same
// transaction. Products that no longer exist are skipped and reported as
// warnings; the deletion still commits.
func (u *SaleUsecase) DeleteSale(ctx context.Context, id string) (saledom.DeleteReport, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return saledom.DeleteReport{}, saledom.ErrNotFound
	}

	ctx, span := u.tracer.Start(ctx, "sale.delete", trace.WithAttributes(attribute.String("sale.id", id)))
	defer span.End()

	var report saledom.DeleteReport
	err := u.ledger.RunLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		report = saledom.DeleteReport{SaleID: id, Restored: map[string]int{}}

		s, err := tx.GetSale(id)
		if err != nil {
			return err
		}
		qty := s.QuantitiesByProduct()
		ids := saledom.SortedIDs(qty)

		current, err := tx.GetProducts(ids)
		if err != nil {
			return err
		}

		now := u.now().UTC()
		for _, pid := range ids {
			p, ok := current[pid]
			if !ok {
				report.Warnings = append(report.Warnings, saledom.PartialRestock{
					SaleID:    id,
					ProductID: pid,
					Title:     titleFor(s, pid),
					Quantity:  qty[pid],
				})
				continue
			}
			next, err := p.ApplyDelta(qty[pid])
			if err != nil {
				return err
			}
			if err := tx.SetQuantity(pid, next, now); err != nil {
				return err
			}
			report.Restored[pid] = qty[pid]
		}
		return tx.DeleteSale(id)
	})
	if err != nil {
		span.RecordError(err)
		return saledom.DeleteReport{}, err
	}

	for _, w := range report.Warnings {
		log.Printf("[sale_uc] partial restock: %s", w.String())
	}
	log.Printf("[sale_uc] deleted id=%s restored=%d warnings=%d", id, len(report.Restored), len(report.Warnings))
	return report, nil
}

func titleFor(s saledom.Sale, productID string) string {
	for _, it := range s.Items {
		if it.ProductID == productID {
			return it.Title
		}
	}
	return ""
}
