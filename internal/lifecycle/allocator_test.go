package lifecycle

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ticketd-io/ticketd/internal/store"
)

func newTestAllocator(t *testing.T) (*Allocator, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.DB().Close() })
	return NewAllocator(st), st
}

func TestNextNumber_SequentialPerScope(t *testing.T) {
	a, st := newTestAllocator(t)

	for want := 1; want <= 3; want++ {
		n, err := a.NextNumber("S1")
		if err != nil {
			t.Fatalf("next number: %v", err)
		}
		if n != want {
			t.Errorf("expected %d, got %d", want, n)
		}
		st.Insert("S1", fmt.Sprintf("chan-%d", want), "alice")
	}
}

func TestNextNumber_ScopesAreIndependent(t *testing.T) {
	a, st := newTestAllocator(t)

	st.Insert("S1", "chan-1", "alice")
	st.Insert("S1", "chan-2", "bob")

	n, _ := a.NextNumber("S2")
	if n != 1 {
		t.Errorf("expected scope S2 to start at 1, got %d", n)
	}
}

// Scenario: two creations race and both observe the same count. The
// collided display number is accepted; both inserts succeed because the
// channel refs differ.
func TestNextNumber_AcceptedCollision(t *testing.T) {
	a, st := newTestAllocator(t)
	st.Insert("S1", "chan-1", "alice")

	n1, _ := a.NextNumber("S1")
	n2, _ := a.NextNumber("S1")
	if n1 != 2 || n2 != 2 {
		t.Fatalf("expected both observers to compute 2, got %d and %d", n1, n2)
	}

	if _, err := st.Insert("S1", "ticket-2-alice", "alice"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := st.Insert("S1", "ticket-2-bob", "bob"); err != nil {
		t.Fatalf("second insert must succeed, channel refs differ: %v", err)
	}
}
