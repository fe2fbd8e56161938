package lifecycle

import (
	"fmt"

	"github.com/ticketd-io/ticketd/internal/store"
)

// Allocator derives the next user-facing ticket number for a scope.
//
// The number is display-only: count-then-insert is not atomic, so two
// concurrent creations in the same scope may observe the same count and
// show the same number. That collision is cosmetic; record correctness
// rests solely on the store's channel uniqueness.
type Allocator struct {
	store store.Store
}

// NewAllocator creates an allocator backed by the given store.
func NewAllocator(st store.Store) *Allocator {
	return &Allocator{store: st}
}

// NextNumber returns countByScope + 1. Numbers are monotonically
// non-decreasing per scope for the lifetime of the process.
func (a *Allocator) NextNumber(scopeID string) (int, error) {
	n, err := a.store.CountByScope(scopeID)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: next number: %w", err)
	}
	return n + 1, nil
}
