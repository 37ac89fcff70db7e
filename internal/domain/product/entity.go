// internal/domain/product/entity.go
package product

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ===============================
// Types
// ===============================

// Status は販売可能プールに含まれるかどうかを表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusRejected
}

// Product is a sellable stock pool. Quantity is only ever moved by the
// ledger operations; it never goes below zero at a committed state.
type Product struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Quantity     int             `json:"quantity"`
	BuyPrice     decimal.Decimal `json:"buyPrice"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	SellPrice    decimal.Decimal `json:"sellPrice"`
	Status       Status          `json:"status"`
	Shipment     string          `json:"shipment,omitempty"`
	Description  string          `json:"description,omitempty"`
	Image        string          `json:"image,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnitCost is what one unit cost to bring into stock.
func (p Product) UnitCost() decimal.Decimal {
	return p.BuyPrice.Add(p.ShippingCost)
}

// StockValue is the landed cost of everything currently on hand.
func (p Product) StockValue() decimal.Decimal {
	return p.UnitCost().Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Sellable reports whether new sales may draw from this product.
func (p Product) Sellable() bool {
	return p.Status == StatusActive
}

// CreateInput は新規登録時の入力です。ID と Status は Ledger 側で決めます。
type CreateInput struct {
	Title        string
	Quantity     int
	BuyPrice     decimal.Decimal
	ShippingCost decimal.Decimal
	SellPrice    decimal.Decimal
	Shipment     string
	Description  string
	Image        string
}

// Patch は部分更新用。nil のフィールドは変更しません。
type Patch struct {
	Title        *string
	Quantity     *int
	BuyPrice     *decimal.Decimal
	ShippingCost *decimal.Decimal
	SellPrice    *decimal.Decimal
	Status       *Status
	Shipment     *string
	Description  *string
	Image        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Quantity == nil && p.BuyPrice == nil &&
		p.ShippingCost == nil && p.SellPrice == nil && p.Status == nil &&
		p.Shipment == nil && p.Description == nil && p.Image == nil
}

// ===============================
// Errors
// ===============================

var (
	ErrNotFound          = errors.New("product: not found")
	ErrConflict          = errors.New("product: already exists")
	ErrInvalidID         = errors.New("product: invalid id")
	ErrInvalidStatus     = errors.New("product: invalid status")
	ErrInvalidQuantity   = errors.New("product: invalid quantity")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// ===============================
// Constructors / behavior
// ===============================

// New builds an active product from the create input.
// Non-negative numerics are the caller's responsibility.
func New(id string, in CreateInput, now time.Time) Product {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Product{
		ID:           strings.TrimSpace(id),
		Title:        strings.TrimSpace(in.Title),
		Quantity:     in.Quantity,
		BuyPrice:     in.BuyPrice,
		ShippingCost: in.ShippingCost,
		SellPrice:    in.SellPrice,
		Status:       StatusActive,
		Shipment:     strings.TrimSpace(in.Shipment),
		Description:  strings.TrimSpace(in.Description),
		Image:        strings.TrimSpace(in.Image),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// Apply merges the patch into p (last writer wins on every field).
func (p *Product) Apply(patch Patch, now time.Time) error {
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return ErrInvalidStatus
	}

	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.BuyPrice != nil {
		p.BuyPrice = *patch.BuyPrice
	}
	if patch.ShippingCost != nil {
		p.ShippingCost = *patch.ShippingCost
	}
	if patch.SellPrice != nil {
		p.SellPrice = *patch.SellPrice
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Shipment != nil {
		p.Shipment = strings.TrimSpace(*patch.Shipment)
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Image != nil {
		p.Image = strings.TrimSpace(*patch.Image)
	}
	if !now.IsZero() {
		p.UpdatedAt = now.UTC()
	}
	return nil
}

// ApplyDelta returns the quantity after moving delta units, refusing to go
// below zero.
func (p Product) ApplyDelta(delta int) (int, error) {
	next := p.Quantity + delta
	if next < 0 {
		return p.Quantity, ErrInsufficientStock
	}
	return next, nil
}

// SortByTitle orders products by title, case-insensitively, then by id.
func SortByTitle(ps []Product) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := strings.ToLower(ps[i].Title), strings.ToLower(ps[j].Title)
		if a == b {
			return ps[i].ID < ps[j].ID
		}
		return a < b
	})
}
