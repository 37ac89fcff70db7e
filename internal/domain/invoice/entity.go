// internal/domain/invoice/entity.go
package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPrefix is prepended to every sequence number to form a sale id.
	DefaultPrefix = "Inv-"

	// DefaultInitialNumber seeds a counter that does not exist yet; the first
	// issued number is DefaultInitialNumber+1.
	DefaultInitialNumber int64 = 12320

	// DefaultMaxAttempts bounds the optimistic retries of one allocation.
	DefaultMaxAttempts = 5
)

var (
	// ErrTransientAllocationFailure means the counter transaction kept
	// conflicting until its retry budget ran out. No number was issued; the
	// caller may retry the whole operation.
	ErrTransientAllocationFailure = errors.New("invoice: transient allocation failure")

	ErrInvalidCounter = errors.New("invoice: invalid counter value")
)

// Counter is the singleton record behind the sequencer.
type Counter struct {
	Current int64
}

// Next returns the counter advanced by one.
func (c Counter) Next() Counter {
	return Counter{Current: c.Current + 1}
}

// FormatID builds a sale id from a prefix and a sequence number.
func FormatID(prefix string, n int64) string {
	return prefix + strconv.FormatInt(n, 10)
}

// ParseID extracts the sequence number from an id built by FormatID.
func ParseID(prefix, id string) (int64, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("invoice: id %q does not start with %q", id, prefix)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, prefix), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invoice: id %q has no sequence number", id)
	}
	return n, nil
}
