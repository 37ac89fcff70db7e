package product

import "context"

// ------------------------------------------------------
// Repository Port for Product (products コレクション)
// ------------------------------------------------------
//
// Hexagonal Architecture における「出力ポート」。
// Firestore などの具体実装は adapters/out 側で実装します。
// 在庫数の増減はここではなく、台帳トランザクション (usecase.LedgerStore) 経由で行います。
type RepositoryPort interface {
	// GetByID returns ErrNotFound when the document is absent.
	GetByID(ctx context.Context, id string) (Product, error)

	// List returns every product ordered by title.
	List(ctx context.Context) ([]Product, error)

	// Create stores p. An empty p.ID is assigned by the store.
	Create(ctx context.Context, p Product) (Product, error)

	// Update merges patch into the stored product; ErrNotFound when absent.
	Update(ctx context.Context, id string, patch Patch) (Product, error)

	// Delete hard-deletes the product; ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}
