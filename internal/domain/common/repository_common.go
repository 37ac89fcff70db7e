// internal/domain/common/repository_common.go
package common

import (
	"errors"
	"time"
)

// ErrContention is returned by a store when an optimistic transaction kept
// conflicting with concurrent writers until its attempt budget ran out.
// Nothing from the failed transaction has been applied.
var ErrContention = errors.New("store: transaction contention")

// TimeRange は期間フィルタのための共通構造体
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside [From, To).
// A nil bound is open.
func (r TimeRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}
