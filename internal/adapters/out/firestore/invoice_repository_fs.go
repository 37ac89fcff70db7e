// internal/adapters/out/firestore/invoice_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	invdom "freesia/internal/domain/invoice"
)

const (
	countersCollection = "counters"
	invoiceCounterDoc  = "invoice"
)

// InvoiceCounterRepositoryFS stores the invoice counter at counters/invoice.
type InvoiceCounterRepositoryFS struct {
	Client *firestore.Client
}

func NewInvoiceCounterRepositoryFS(client *firestore.Client) *InvoiceCounterRepositoryFS {
	return &InvoiceCounterRepositoryFS{Client: client}
}

// Compile-time check: ensure InvoiceCounterRepositoryFS satisfies invdom.CounterStore.
var _ invdom.CounterStore = (*InvoiceCounterRepositoryFS)(nil)

func (r *InvoiceCounterRepositoryFS) doc() *firestore.DocumentRef {
	return r.Client.Collection(countersCollection).Doc(invoiceCounterDoc)
}

// RunCounterTx runs fn in a Firestore transaction limited to maxAttempts.
func (r *InvoiceCounterRepositoryFS) RunCounterTx(
	ctx context.Context,
	maxAttempts int,
	fn func(ctx context.Context, tx invdom.CounterTx) error,
) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}

	var opts []firestore.TransactionOption
	if maxAttempts > 0 {
		opts = append(opts, firestore.MaxAttempts(maxAttempts))
	}

	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &counterTxFS{ref: r.doc(), tx: tx})
	}, opts...)
	return mapTxErr(err)
}

// Peek reads the counter outside any transaction.
func (r *InvoiceCounterRepositoryFS) Peek(ctx context.Context) (invdom.Counter, bool, error) {
	if r.Client == nil {
		return invdom.Counter{}, false, errors.New("firestore client is nil")
	}
	snap, err := r.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return invdom.Counter{}, false, nil
		}
		return invdom.Counter{}, false, err
	}
	c, err := docToCounter(snap)
	if err != nil {
		return invdom.Counter{}, false, err
	}
	return c, true, nil
}

type counterTxFS struct {
	ref *firestore.DocumentRef
	tx  *firestore.Transaction
}

func (t *counterTxFS) Get() (invdom.Counter, bool, error) {
	snap, err := t.tx.Get(t.ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return invdom.Counter{}, false, nil
		}
		return invdom.Counter{}, false, err
	}
	c, err := docToCounter(snap)
	if err != nil {
		return invdom.Counter{}, false, err
	}
	return c, true, nil
}

func (t *counterTxFS) Set(c invdom.Counter) error {
	if c.Current < 0 {
		return invdom.ErrInvalidCounter
	}
	return t.tx.Set(t.ref, map[string]any{
		"current":   c.Current,
		"updatedAt": time.Now().UTC(),
	})
}

func docToCounter(snap *firestore.DocumentSnapshot) (invdom.Counter, error) {
	data := snap.Data()
	switch v := data["current"].(type) {
	case int64:
		return invdom.Counter{Current: v}, nil
	case float64:
		// written by the web client as a JS number
		return invdom.Counter{Current: int64(v)}, nil
	default:
		return invdom.Counter{}, fmt.Errorf("%w: %v", invdom.ErrInvalidCounter, data["current"])
	}
}
