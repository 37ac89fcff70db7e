// internal/application/usecase/ledger_port.go
package usecase

import (
	"context"
	"time"

	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// LedgerTx is the view of the store inside one atomic unit.
//
// Every read must happen before the first write (Firestore rule). The body
// passed to RunLedgerTx may be executed several times, so it must not leak
// state between attempts.
type LedgerTx interface {
	// GetProducts returns the products that exist; absent ids are simply
	// missing from the map.
	GetProducts(ids []string) (map[string]productdom.Product, error)

	// GetSale returns saledom.ErrNotFound when the sale does not exist.
	GetSale(id string) (saledom.Sale, error)

	CreateSale(s saledom.Sale) error
	DeleteSale(id string) error
	SetQuantity(productID string, quantity int, at time.Time) error
}

// LedgerStore commits a LedgerTx body all-or-nothing. Conflicts with
// concurrent writers re-run the body; when the store gives up it returns an
// error wrapping common.ErrContention.
type LedgerStore interface {
	RunLedgerTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// SeedWriter is used once at bootstrap, outside the hot path.
type SeedWriter interface {
	HasProducts(ctx context.Context) (bool, error)
	HasSales(ctx context.Context) (bool, error)

	// WriteSeed stores products and sales in one atomic batch.
	WriteSeed(ctx context.Context, products []productdom.Product, sales []saledom.Sale) error
}
