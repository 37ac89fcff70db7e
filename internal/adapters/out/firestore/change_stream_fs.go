package firestore

import (
	"context"
	"errors"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"freesia/internal/application/feed"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// ChangeStreamFS listens to the products and sales collections with
// Firestore snapshot listeners and hands every full result set to the feed.
type ChangeStreamFS struct {
	Client *firestore.Client
}

func NewChangeStreamFS(client *firestore.Client) *ChangeStreamFS {
	return &ChangeStreamFS{Client: client}
}

var _ feed.Source = (*ChangeStreamFS)(nil)

func (r *ChangeStreamFS) WatchProducts(ctx context.Context, fn func([]productdom.Product)) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	q := r.Client.Collection(productsCollection).OrderBy("title", firestore.Asc)
	return watchQuery(ctx, q, func(docs []*firestore.DocumentSnapshot) {
		out := make([]productdom.Product, 0, len(docs))
		for _, d := range docs {
			p, err := docToProduct(d)
			if err != nil {
				log.Printf("[feed] skip product doc=%s err=%v", d.Ref.ID, err)
				continue
			}
			out = append(out, p)
		}
		fn(out)
	})
}

func (r *ChangeStreamFS) WatchSales(ctx context.Context, fn func([]saledom.Sale)) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	q := r.Client.Collection(salesCollection).OrderBy("date", firestore.Desc)
	return watchQuery(ctx, q, func(docs []*firestore.DocumentSnapshot) {
		out := make([]saledom.Sale, 0, len(docs))
		for _, d := range docs {
			s, err := docToSale(d)
			if err != nil {
				log.Printf("[feed] skip sale doc=%s err=%v", d.Ref.ID, err)
				continue
			}
			out = append(out, s)
		}
		fn(out)
	})
}

// watchQuery blocks until ctx is cancelled (nil) or the listener fails.
func watchQuery(ctx context.Context, q firestore.Query, fn func([]*firestore.DocumentSnapshot)) error {
	it := q.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return err
		}
		fn(docs)
	}
}
