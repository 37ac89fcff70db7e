package memory

import (
	"context"
	"fmt"
	"strings"

	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// ============================================================
// Products
// ============================================================

// ProductRepository is the keyed CRUD view of the products collection.
type ProductRepository struct {
	s *Store
}

func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

var _ productdom.RepositoryPort = (*ProductRepository)(nil)

func (r *ProductRepository) GetByID(ctx context.Context, id string) (productdom.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.products[strings.TrimSpace(id)]
	if !ok {
		return productdom.Product{}, productdom.ErrNotFound
	}
	return rec.p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]productdom.Product, error) {
	return r.s.snapshotProducts(), nil
}

func (r *ProductRepository) Create(ctx context.Context, p productdom.Product) (productdom.Product, error) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = newID()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.products[p.ID]; exists {
		return productdom.Product{}, fmt.Errorf("%w: %s", productdom.ErrConflict, p.ID)
	}
	r.s.clock++
	r.s.products[p.ID] = productRecord{p: p, ver: r.s.clock}
	r.s.notifyLocked(map[collection]bool{colProducts: true})
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, id string, patch productdom.Patch) (productdom.Product, error) {
	id = strings.TrimSpace(id)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.products[id]
	if !ok {
		return productdom.Product{}, productdom.ErrNotFound
	}
	if err := rec.p.Apply(patch, r.s.now()); err != nil {
		return productdom.Product{}, err
	}
	r.s.clock++
	rec.ver = r.s.clock
	r.s.products[id] = rec
	r.s.notifyLocked(map[collection]bool{colProducts: true})
	return rec.p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return productdom.ErrNotFound
	}
	delete(r.s.products, id)
	r.s.clock++
	r.s.notifyLocked(map[collection]bool{colProducts: true})
	return nil
}

// ============================================================
// Sales
// ============================================================

// SaleRepository is the read view of the sales collection. Writes go through
// RunLedgerTx.
type SaleRepository struct {
	s *Store
}

func (s *Store) Sales() *SaleRepository { return &SaleRepository{s: s} }

var _ saledom.RepositoryPort = (*SaleRepository)(nil)

func (r *SaleRepository) GetByID(ctx context.Context, id string) (saledom.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.sales[strings.TrimSpace(id)]
	if !ok {
		return saledom.Sale{}, saledom.ErrNotFound
	}
	return cloneSale(rec.s), nil
}

func (r *SaleRepository) List(ctx context.Context) ([]saledom.Sale, error) {
	return r.s.snapshotSales(), nil
}
