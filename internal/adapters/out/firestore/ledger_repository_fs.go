// internal/adapters/out/firestore/ledger_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"freesia/internal/application/usecase"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// LedgerRepositoryFS runs sale create/delete and stock adjustments inside one
// Firestore transaction. Firestore re-runs the body on contention; all reads
// happen before writes, as the transaction requires.
type LedgerRepositoryFS struct {
	Client      *firestore.Client
	MaxAttempts int
}

func NewLedgerRepositoryFS(client *firestore.Client, maxAttempts int) *LedgerRepositoryFS {
	return &LedgerRepositoryFS{Client: client, MaxAttempts: maxAttempts}
}

var _ usecase.LedgerStore = (*LedgerRepositoryFS)(nil)

func (r *LedgerRepositoryFS) RunLedgerTx(ctx context.Context, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}

	var opts []firestore.TransactionOption
	if r.MaxAttempts > 0 {
		opts = append(opts, firestore.MaxAttempts(r.MaxAttempts))
	}

	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &ledgerTxFS{client: r.Client, tx: tx})
	}, opts...)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%w: %v", saledom.ErrConflict, err)
	}
	return mapTxErr(err)
}

type ledgerTxFS struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *ledgerTxFS) products() *firestore.CollectionRef {
	return t.client.Collection(productsCollection)
}

func (t *ledgerTxFS) sales() *firestore.CollectionRef {
	return t.client.Collection(salesCollection)
}

func (t *ledgerTxFS) GetProducts(ids []string) (map[string]productdom.Product, error) {
	out := make(map[string]productdom.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, t.products().Doc(id))
	}

	snaps, err := t.tx.GetAll(refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		p, err := docToProduct(snap)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

func (t *ledgerTxFS) GetSale(id string) (saledom.Sale, error) {
	snap, err := t.tx.Get(t.sales().Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return saledom.Sale{}, saledom.ErrNotFound
		}
		return saledom.Sale{}, err
	}
	return docToSale(snap)
}

func (t *ledgerTxFS) CreateSale(s saledom.Sale) error {
	return t.tx.Create(t.sales().Doc(s.ID), saleToDoc(s))
}

func (t *ledgerTxFS) DeleteSale(id string) error {
	return t.tx.Delete(t.sales().Doc(id))
}

func (t *ledgerTxFS) SetQuantity(productID string, quantity int, at time.Time) error {
	return t.tx.Update(t.products().Doc(productID), []firestore.Update{
		{Path: "quantity", Value: int64(quantity)},
		{Path: "updatedAt", Value: at.UTC()},
	})
}
