package invoice

import "context"

// CounterTx is what the counter transaction body may do. Reads happen
// before writes; the body may run more than once.
type CounterTx interface {
	// Get returns the stored counter, or ok=false when none exists yet.
	Get() (c Counter, ok bool, err error)
	Set(c Counter) error
}

// CounterStore runs read-increment-write bodies atomically. A body that
// observed a value another writer has since changed is re-run from the
// start; after maxAttempts conflicting runs the store gives up with
// common.ErrContention.
type CounterStore interface {
	RunCounterTx(ctx context.Context, maxAttempts int, fn func(ctx context.Context, tx CounterTx) error) error

	// Peek reads the counter outside any transaction.
	Peek(ctx context.Context) (c Counter, ok bool, err error)
}
