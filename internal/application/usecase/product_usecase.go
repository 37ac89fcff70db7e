package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	productdom "freesia/internal/domain/product"
)

// ProductImageStore keeps product image binaries and returns a public URL.
type ProductImageStore interface {
	Upload(ctx context.Context, productID, fileName, contentType string, body io.Reader) (string, error)
}

// ErrImageStoreNotConfigured is returned by AttachImage when no bucket is wired.
var ErrImageStoreNotConfigured = errors.New("product: image store not configured")

// ProductUsecase is the product ledger: it owns product records and is the
// only component that changes them.
type ProductUsecase struct {
	repo   productdom.RepositoryPort
	ledger LedgerStore
	images ProductImageStore
	now    func() time.Time
}

func NewProductUsecase(repo productdom.RepositoryPort, ledger LedgerStore) *ProductUsecase {
	return &ProductUsecase{
		repo:   repo,
		ledger: ledger,
		now:    time.Now,
	}
}

// WithImageStore enables AttachImage.
func (u *ProductUsecase) WithImageStore(s ProductImageStore) *ProductUsecase {
	u.images = s
	return u
}

// =======================
// Queries
// =======================

func (u *ProductUsecase) GetByID(ctx context.Context, id string) (productdom.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.Product{}, productdom.ErrNotFound
	}
	return u.repo.GetByID(ctx, id)
}

func (u *ProductUsecase) List(ctx context.Context) ([]productdom.Product, error) {
	return u.repo.List(ctx)
}

// =======================
// Commands
// =======================

// Create assigns an id and status=active. Numeric ranges are validated by the
// caller.
func (u *ProductUsecase) Create(ctx context.Context, in productdom.CreateInput) (productdom.Product, error) {
	p := productdom.New("", in, u.now())
	created, err := u.repo.Create(ctx, p)
	if err != nil {
		return productdom.Product{}, err
	}
	log.Printf("[product_uc] created id=%s title=%q qty=%d", created.ID, created.Title, created.Quantity)
	return created, nil
}

func (u *ProductUsecase) Update(ctx context.Context, id string, patch productdom.Patch) (productdom.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.Product{}, productdom.ErrNotFound
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return productdom.Product{}, productdom.ErrInvalidQuantity
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return productdom.Product{}, productdom.ErrInvalidStatus
	}
	if patch.IsEmpty() {
		return u.repo.GetByID(ctx, id)
	}
	return u.repo.Update(ctx, id, patch)
}

// SetStatus moves a product in or out of the sellable pool without deleting it.
func (u *ProductUsecase) SetStatus(ctx context.Context, id string, status productdom.Status) (productdom.Product, error) {
	if !status.IsValid() {
		return productdom.Product{}, productdom.ErrInvalidStatus
	}
	p, err := u.Update(ctx, id, productdom.Patch{Status: &status})
	if err != nil {
		return productdom.Product{}, err
	}
	log.Printf("[product_uc] status id=%s status=%s", p.ID, p.Status)
	return p, nil
}

// Delete hard-deletes the product. Sales referencing it keep their snapshots.
func (u *ProductUsecase) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.ErrNotFound
	}
	if err := u.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("[product_uc] deleted id=%s", id)
	return nil
}

// AdjustQuantity moves stock by delta inside the ledger transaction.
// The result may not go below zero.
func (u *ProductUsecase) AdjustQuantity(ctx context.Context, id string, delta int) (productdom.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.Product{}, productdom.ErrNotFound
	}

	var out productdom.Product
	err := u.ledger.RunLedgerTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		got, err := tx.GetProducts([]string{id})
		if err != nil {
			return err
		}
		p, ok := got[id]
		if !ok {
			return fmt.Errorf("%w: %s", productdom.ErrNotFound, id)
		}
		next, err := p.ApplyDelta(delta)
		if err != nil {
			return fmt.Errorf("%w: %q has %d, cannot move %d", err, p.Title, p.Quantity, delta)
		}
		now := u.now().UTC()
		if err := tx.SetQuantity(id, next, now); err != nil {
			return err
		}
		p.Quantity = next
		p.UpdatedAt = now
		out = p
		return nil
	})
	if err != nil {
		return productdom.Product{}, err
	}
	return out, nil
}

// AttachImage uploads an image and records its URL on the product.
func (u *ProductUsecase) AttachImage(
	ctx context.Context,
	id, fileName, contentType string,
	body io.Reader,
) (productdom.Product, error) {
	if u.images == nil {
		return productdom.Product{}, ErrImageStoreNotConfigured
	}
	if _, err := u.GetByID(ctx, id); err != nil {
		return productdom.Product{}, err
	}

	url, err := u.images.Upload(ctx, strings.TrimSpace(id), fileName, contentType, body)
	if err != nil {
		return productdom.Product{}, fmt.Errorf("upload image: %w", err)
	}
	return u.Update(ctx, id, productdom.Patch{Image: &url})
}
