// internal/adapters/out/firestore/sale_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	saledom "freesia/internal/domain/sale"
)

const salesCollection = "sales"

// SaleRepositoryFS reads sales. Sales are only written inside the ledger
// transaction (LedgerRepositoryFS).
type SaleRepositoryFS struct {
	Client *firestore.Client
}

func NewSaleRepositoryFS(client *firestore.Client) *SaleRepositoryFS {
	return &SaleRepositoryFS{Client: client}
}

var _ saledom.RepositoryPort = (*SaleRepositoryFS)(nil)

func (r *SaleRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(salesCollection)
}

func (r *SaleRepositoryFS) GetByID(ctx context.Context, id string) (saledom.Sale, error) {
	if r.Client == nil {
		return saledom.Sale{}, errors.New("firestore client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return saledom.Sale{}, saledom.ErrNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return saledom.Sale{}, saledom.ErrNotFound
		}
		return saledom.Sale{}, err
	}
	return docToSale(snap)
}

// List returns every sale, newest first.
func (r *SaleRepositoryFS) List(ctx context.Context) ([]saledom.Sale, error) {
	if r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}

	it := r.col().OrderBy("date", firestore.Desc).Documents(ctx)
	defer it.Stop()

	out := []saledom.Sale{}
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		s, err := docToSale(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	saledom.SortByDateDesc(out)
	return out, nil
}

// ============================================================
// Mapping
// ============================================================

func saleToDoc(s saledom.Sale) map[string]any {
	items := make([]map[string]any, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, map[string]any{
			"productId": it.ProductID,
			"title":     it.Title,
			"quantity":  int64(it.Quantity),
			"unitPrice": decimalToDoc(it.UnitPrice),
			"unitCost":  decimalToDoc(it.UnitCost),
			"shipment":  it.Shipment,
		})
	}
	return map[string]any{
		"id": s.ID,
		"customer": map[string]any{
			"name":    s.Customer.Name,
			"phone":   s.Customer.Phone,
			"address": s.Customer.Address,
		},
		"items":          items,
		"discount":       decimalToDoc(s.Discount),
		"deliveryCharge": decimalToDoc(s.DeliveryCharge),
		"total":          decimalToDoc(s.Total),
		"date":           s.Date.UTC(),
	}
}

func docToSale(doc *firestore.DocumentSnapshot) (saledom.Sale, error) {
	data := doc.Data()
	if data == nil {
		return saledom.Sale{}, fmt.Errorf("empty sale document: %s", doc.Ref.ID)
	}

	s := saledom.Sale{ID: doc.Ref.ID}

	if c, ok := data["customer"].(map[string]any); ok {
		s.Customer = saledom.Customer{
			Name:    asString(c["name"]),
			Phone:   asString(c["phone"]),
			Address: asString(c["address"]),
		}
	}

	if raw, ok := data["items"].([]any); ok {
		for i, x := range raw {
			m, ok := x.(map[string]any)
			if !ok {
				continue
			}
			it := saledom.Item{
				ProductID: asString(m["productId"]),
				Title:     asString(m["title"]),
				Quantity:  asInt(m["quantity"]),
				Shipment:  asString(m["shipment"]),
			}
			var err error
			if it.UnitPrice, err = asDecimal(m["unitPrice"]); err != nil {
				return saledom.Sale{}, fmt.Errorf("sale %s item %d unitPrice: %w", doc.Ref.ID, i, err)
			}
			if it.UnitCost, err = asDecimal(m["unitCost"]); err != nil {
				return saledom.Sale{}, fmt.Errorf("sale %s item %d unitCost: %w", doc.Ref.ID, i, err)
			}
			s.Items = append(s.Items, it)
		}
	}

	var err error
	if s.Discount, err = asDecimal(data["discount"]); err != nil {
		return saledom.Sale{}, fmt.Errorf("sale %s discount: %w", doc.Ref.ID, err)
	}
	if s.DeliveryCharge, err = asDecimal(data["deliveryCharge"]); err != nil {
		return saledom.Sale{}, fmt.Errorf("sale %s deliveryCharge: %w", doc.Ref.ID, err)
	}
	if s.Total, err = asDecimal(data["total"]); err != nil {
		return saledom.Sale{}, fmt.Errorf("sale %s total: %w", doc.Ref.ID, err)
	}
	if t, ok := asTime(data["date"]); ok {
		s.Date = t
	}
	return s, nil
}
