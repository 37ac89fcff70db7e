// internal/adapters/out/firestore/product_repository_fs.go
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

	productdom "freesia/internal/domain/product"
)

const productsCollection = "products"

// ProductRepositoryFS is a Firestore-based implementation of the product repository.
type ProductRepositoryFS struct {
	Client *firestore.Client
}

func NewProductRepositoryFS(client *firestore.Client) *ProductRepositoryFS {
	return &ProductRepositoryFS{Client: client}
}

var _ productdom.RepositoryPort = (*ProductRepositoryFS)(nil)

func (r *ProductRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(productsCollection)
}

// GetByID returns a single Product by ID
func (r *ProductRepositoryFS) GetByID(ctx context.Context, id string) (productdom.Product, error) {
	if r.Client == nil {
		return productdom.Product{}, errors.New("firestore client is nil")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.Product{}, productdom.ErrNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return productdom.Product{}, productdom.ErrNotFound
		}
		return productdom.Product{}, err
	}
	return docToProduct(snap)
}

// List returns every product ordered by title.
func (r *ProductRepositoryFS) List(ctx context.Context) ([]productdom.Product, error) {
	if r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}

	it := r.col().OrderBy("title", firestore.Asc).Documents(ctx)
	defer it.Stop()

	items := []productdom.Product{}
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := docToProduct(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	productdom.SortByTitle(items)
	return items, nil
}

// Create inserts a new product (Firestore auto-ID allowed)
func (r *ProductRepositoryFS) Create(ctx context.Context, v productdom.Product) (productdom.Product, error) {
	if r.Client == nil {
		return productdom.Product{}, errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(v.ID)
	var docRef *firestore.DocumentRef
	if id == "" {
		docRef = r.col().NewDoc()
	} else {
		docRef = r.col().Doc(id)
	}
	v.ID = docRef.ID

	if _, err := docRef.Create(ctx, productToDoc(v)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return productdom.Product{}, fmt.Errorf("%w: %s", productdom.ErrConflict, v.ID)
		}
		return productdom.Product{}, err
	}
	return v, nil
}

// Update writes only the fields set in the patch. Quantity edits here are
// plain overwrites; stock movements use the ledger transaction instead.
func (r *ProductRepositoryFS) Update(ctx context.Context, id string, patch productdom.Patch) (productdom.Product, error) {
	if r.Client == nil {
		return productdom.Product{}, errors.New("firestore client is nil")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.Product{}, productdom.ErrNotFound
	}

	ups := patchToUpdates(patch)
	if len(ups) == 0 {
		return r.GetByID(ctx, id)
	}
	ups = append(ups, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	docRef := r.col().Doc(id)
	if _, err := docRef.Update(ctx, ups); err != nil {
		if status.Code(err) == codes.NotFound {
			return productdom.Product{}, productdom.ErrNotFound
		}
		return productdom.Product{}, err
	}

	snap, err := docRef.Get(ctx)
	if err != nil {
		return productdom.Product{}, err
	}
	return docToProduct(snap)
}

// Delete removes the product. Missing documents report ErrNotFound.
func (r *ProductRepositoryFS) Delete(ctx context.Context, id string) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return productdom.ErrNotFound
	}

	_, err := r.col().Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return productdom.ErrNotFound
		}
		return err
	}
	return nil
}

// ============================================================
// Mapping
// ============================================================

func productToDoc(v productdom.Product) map[string]any {
	m := map[string]any{
		"id":           v.ID,
		"title":        strings.TrimSpace(v.Title),
		"quantity":     int64(v.Quantity),
		"buyPrice":     decimalToDoc(v.BuyPrice),
		"shippingCost": decimalToDoc(v.ShippingCost),
		"sellPrice":    decimalToDoc(v.SellPrice),
		"status":       string(v.Status),
		"shipment":     v.Shipment,
		"description":  v.Description,
		"image":        v.Image,
		"createdAt":    v.CreatedAt.UTC(),
		"updatedAt":    v.UpdatedAt.UTC(),
	}
	return m
}

func patchToUpdates(p productdom.Patch) []firestore.Update {
	var ups []firestore.Update
	if p.Title != nil {
		ups = append(ups, firestore.Update{Path: "title", Value: strings.TrimSpace(*p.Title)})
	}
	if p.Quantity != nil {
		ups = append(ups, firestore.Update{Path: "quantity", Value: int64(*p.Quantity)})
	}
	if p.BuyPrice != nil {
		ups = append(ups, firestore.Update{Path: "buyPrice", Value: decimalToDoc(*p.BuyPrice)})
	}
	if p.ShippingCost != nil {
		ups = append(ups, firestore.Update{Path: "shippingCost", Value: decimalToDoc(*p.ShippingCost)})
	}
	if p.SellPrice != nil {
		ups = append(ups, firestore.Update{Path: "sellPrice", Value: decimalToDoc(*p.SellPrice)})
	}
	if p.Status != nil {
		ups = append(ups, firestore.Update{Path: "status", Value: string(*p.Status)})
	}
	if p.Shipment != nil {
		ups = append(ups, firestore.Update{Path: "shipment", Value: strings.TrimSpace(*p.Shipment)})
	}
	if p.Description != nil {
		ups = append(ups, firestore.Update{Path: "description", Value: strings.TrimSpace(*p.Description)})
	}
	if p.Image != nil {
		ups = append(ups, firestore.Update{Path: "image", Value: strings.TrimSpace(*p.Image)})
	}
	return ups
}

func docToProduct(doc *firestore.DocumentSnapshot) (productdom.Product, error) {
	data := doc.Data()
	if data == nil {
		return productdom.Product{}, fmt.Errorf("empty product document: %s", doc.Ref.ID)
	}

	p := productdom.Product{
		ID:          doc.Ref.ID,
		Title:       asString(data["title"]),
		Quantity:    asInt(data["quantity"]),
		Status:      productdom.Status(asString(data["status"])),
		Shipment:    asString(data["shipment"]),
		Description: asString(data["description"]),
		Image:       asString(data["image"]),
	}
	if p.Status == "" {
		p.Status = productdom.StatusActive
	}

	var err error
	if p.BuyPrice, err = asDecimal(data["buyPrice"]); err != nil {
		return productdom.Product{}, fmt.Errorf("product %s buyPrice: %w", doc.Ref.ID, err)
	}
	if p.ShippingCost, err = asDecimal(data["shippingCost"]); err != nil {
		return productdom.Product{}, fmt.Errorf("product %s shippingCost: %w", doc.Ref.ID, err)
	}
	if p.SellPrice, err = asDecimal(data["sellPrice"]); err != nil {
		return productdom.Product{}, fmt.Errorf("product %s sellPrice: %w", doc.Ref.ID, err)
	}

	if t, ok := asTime(data["createdAt"]); ok {
		p.CreatedAt = t
	}
	if t, ok := asTime(data["updatedAt"]); ok {
		p.UpdatedAt = t
	}
	return p, nil
}
