package sale

import "context"

// RepositoryPort is the read side of the sales collection. Sales are only
// written through the ledger transaction (usecase.LedgerStore) so that the
// stock movement and the sale record always commit together.
type RepositoryPort interface {
	GetByID(ctx context.Context, id string) (Sale, error)

	// List returns every sale, newest first.
	List(ctx context.Context) ([]Sale, error)
}
