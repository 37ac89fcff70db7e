package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"freesia/internal/application/usecase"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// maxBatchWrites is Firestore's per-commit write limit.
const maxBatchWrites = 500

// SeedRepositoryFS writes starter data with a single WriteBatch.
type SeedRepositoryFS struct {
	Client *firestore.Client
}

func NewSeedRepositoryFS(client *firestore.Client) *SeedRepositoryFS {
	return &SeedRepositoryFS{Client: client}
}

var _ usecase.SeedWriter = (*SeedRepositoryFS)(nil)

func (r *SeedRepositoryFS) HasProducts(ctx context.Context) (bool, error) {
	return r.hasAny(ctx, productsCollection)
}

func (r *SeedRepositoryFS) HasSales(ctx context.Context) (bool, error) {
	return r.hasAny(ctx, salesCollection)
}

func (r *SeedRepositoryFS) hasAny(ctx context.Context, col string) (bool, error) {
	if r.Client == nil {
		return false, errors.New("firestore client is nil")
	}
	it := r.Client.Collection(col).Limit(1).Documents(ctx)
	defer it.Stop()

	_, err := it.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WriteSeed commits every document in one batch, so a failed seed leaves
// nothing behind.
func (r *SeedRepositoryFS) WriteSeed(ctx context.Context, products []productdom.Product, sales []saledom.Sale) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	if n := len(products) + len(sales); n > maxBatchWrites {
		return fmt.Errorf("seed has %d documents; one batch holds at most %d", n, maxBatchWrites)
	}

	batch := r.Client.Batch()
	for _, p := range products {
		if p.ID == "" {
			return productdom.ErrInvalidID
		}
		batch.Set(r.Client.Collection(productsCollection).Doc(p.ID), productToDoc(p))
	}
	for _, s := range sales {
		if s.ID == "" {
			return errors.New("seed sale without id")
		}
		batch.Set(r.Client.Collection(salesCollection).Doc(s.ID), saleToDoc(s))
	}

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed batch: %w", err)
	}
	return nil
}
