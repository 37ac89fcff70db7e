// internal/domain/sale/entity.go
package sale

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	productdom "freesia/internal/domain/product"
)

// ========================================
// Types
// ========================================

// Customer is copied onto the sale as a value; it is not a referenced entity.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Item is one invoice line. ProductID is a weak reference: Title, UnitPrice,
// UnitCost and Shipment are snapshots taken when the sale was committed so the
// invoice stays stable if the product later changes or disappears.
type Item struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Shipment  string          `json:"shipment,omitempty"`
}

// LineTotal is UnitPrice × Quantity.
func (it Item) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Sale is immutable once committed. The only transitions are create and delete.
type Sale struct {
	ID             string          `json:"id"`
	Customer       Customer        `json:"customer"`
	Items          []Item          `json:"items"`
	Discount       decimal.Decimal `json:"discount"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	Total          decimal.Decimal `json:"total"`
	Date           time.Time       `json:"date"`
}

// LineInput is an operator's requested line before it is bound to a product.
// A nil UnitPrice means "use the product's current sell price"; an empty Title
// means "use the product's title".
type LineInput struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
	Title     string
}

// MaxLineQuantity caps the units one product may carry on a single sale,
// per line and summed across duplicate lines.
const MaxLineQuantity = 1_000_000

// ========================================
// Errors
// ========================================

var (
	ErrNotFound           = errors.New("sale: not found")
	ErrConflict           = errors.New("sale: already exists")
	ErrEmptyOrder         = errors.New("sale: order has no items")
	ErrInvalidItem        = errors.New("sale: invalid item")
	ErrInvalidAmount      = errors.New("sale: invalid amount")
	ErrProductNotSellable = errors.New("sale: product is not sellable")

	// ErrInsufficientStock is shared with the product ledger so callers can
	// match either source with one errors.Is.
	ErrInsufficientStock = productdom.ErrInsufficientStock
)

// StockError names the product that could not cover a sale.
type StockError struct {
	ProductID string
	Title     string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	name := e.Title
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("sale: insufficient stock for %q (requested %d, available %d)", name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PartialRestock is a non-fatal warning raised while deleting a sale whose
// product no longer exists, so its units could not be put back.
type PartialRestock struct {
	SaleID    string `json:"saleId"`
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
}

func (w PartialRestock) String() string {
	return fmt.Sprintf("sale %s: could not restock %d × %q, product %s no longer exists",
		w.SaleID, w.Quantity, w.Title, w.ProductID)
}

// DeleteReport describes what a committed sale deletion did to stock.
type DeleteReport struct {
	SaleID   string           `json:"saleId"`
	Restored map[string]int   `json:"restored"`
	Warnings []PartialRestock `json:"warnings,omitempty"`
}

// Partial reports whether some stock could not be restored.
func (r DeleteReport) Partial() bool { return len(r.Warnings) > 0 }

// ========================================
// Constructors
// ========================================

// New validates the lines and amounts and computes the total.
func New(
	id string,
	customer Customer,
	items []Item,
	discount, deliveryCharge decimal.Decimal,
	date time.Time,
) (Sale, error) {
	if len(items) == 0 {
		return Sale{}, ErrEmptyOrder
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 || it.Quantity > MaxLineQuantity {
			return Sale{}, fmt.Errorf("%w: line %d", ErrInvalidItem, i+1)
		}
		if it.UnitPrice.IsNegative() || it.UnitCost.IsNegative() {
			return Sale{}, fmt.Errorf("%w: line %d unit price", ErrInvalidAmount, i+1)
		}
	}
	if discount.IsNegative() || deliveryCharge.IsNegative() {
		return Sale{}, fmt.Errorf("%w: discount and delivery charge must not be negative", ErrInvalidAmount)
	}

	total := ComputeTotal(items, discount, deliveryCharge)
	if total.IsNegative() {
		return Sale{}, fmt.Errorf("%w: discount exceeds order value", ErrInvalidAmount)
	}

	if date.IsZero() {
		date = time.Now()
	}

	cp := make([]Item, len(items))
	for i, it := range items {
		it.ProductID = strings.TrimSpace(it.ProductID)
		it.Title = strings.TrimSpace(it.Title)
		cp[i] = it
	}

	return Sale{
		ID: strings.TrimSpace(id),
		Customer: Customer{
			Name:    strings.TrimSpace(customer.Name),
			Phone:   strings.TrimSpace(customer.Phone),
			Address: strings.TrimSpace(customer.Address),
		},
		Items:          cp,
		Discount:       discount,
		DeliveryCharge: deliveryCharge,
		Total:          total,
		Date:           date.UTC(),
	}, nil
}

// ========================================
// Behavior
// ========================================

// Subtotal is Σ UnitPrice × Quantity.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// ComputeTotal is Subtotal − discount + deliveryCharge.
func ComputeTotal(items []Item, discount, deliveryCharge decimal.Decimal) decimal.Decimal {
	return Subtotal(items).Sub(discount).Add(deliveryCharge)
}

// TotalConsistent re-checks the creation-time total invariant.
func (s Sale) TotalConsistent() bool {
	return s.Total.Equal(ComputeTotal(s.Items, s.Discount, s.DeliveryCharge))
}

// Revenue is what the goods brought in, excluding the delivery charge.
func (s Sale) Revenue() decimal.Decimal {
	return s.Total.Sub(s.DeliveryCharge)
}

// CostOfGoods is Σ UnitCost × Quantity from the snapshots.
func (s Sale) CostOfGoods() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range s.Items {
		sum = sum.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// QuantitiesByProduct sums item quantities per referenced product.
func (s Sale) QuantitiesByProduct() map[string]int {
	out := make(map[string]int, len(s.Items))
	for _, it := range s.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

// ValidateLines checks an order request before anything is read or written.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrEmptyOrder
	}
	perProduct := make(map[string]int, len(lines))
	for i, l := range lines {
		pid := strings.TrimSpace(l.ProductID)
		if pid == "" {
			return fmt.Errorf("%w: line %d has no product", ErrInvalidItem, i+1)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be at least 1", ErrInvalidItem, i+1)
		}
		if l.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: line %d quantity exceeds %d", ErrInvalidItem, i+1, MaxLineQuantity)
		}
		// both terms are within the cap, so the sum cannot overflow
		perProduct[pid] += l.Quantity
		if perProduct[pid] > MaxLineQuantity {
			return fmt.Errorf("%w: product %s quantity exceeds %d", ErrInvalidItem, pid, MaxLineQuantity)
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit price", ErrInvalidAmount, i+1)
		}
	}
	return nil
}

// AggregateLines sums requested quantities per product.
func AggregateLines(lines []LineInput) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[strings.TrimSpace(l.ProductID)] += l.Quantity
	}
	return out
}

// SortedIDs returns the keys of a quantity map in a stable order.
func SortedIDs(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SortByDateDesc orders sales newest first, breaking ties by id descending.
func SortByDateDesc(sales []Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if sales[i].Date.Equal(sales[j].Date) {
			return sales[i].ID > sales[j].ID
		}
		return sales[i].Date.After(sales[j].Date)
	})
}
