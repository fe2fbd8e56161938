package store

import (
	"errors"
	"time"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

var (
	// ErrDuplicateChannel is returned when an insert targets a channel
	// that already backs a ticket.
	ErrDuplicateChannel = errors.New("store: channel already has a ticket")
	// ErrNotFound is returned when no ticket row exists for a channel.
	ErrNotFound = errors.New("store: ticket not found")
)

// Store is the persistence contract for tickets and pending channel
// deletions. Every write is durable when the call returns.
type Store interface {
	// Insert creates an open ticket row. Fails with ErrDuplicateChannel
	// if channelRef already has a row.
	Insert(scopeID, channelRef, ownerRef string) (*protocol.Ticket, error)
	// FindByChannel returns the ticket backed by channelRef, or ErrNotFound.
	FindByChannel(channelRef string) (*protocol.Ticket, error)
	// CountByScope returns the number of tickets ever created in a scope.
	CountByScope(scopeID string) (int, error)
	// MarkClosed flips a ticket to closed. ErrNotFound if no row exists;
	// a no-op (no error) if the ticket is already closed.
	MarkClosed(channelRef string) error
	// List returns tickets matching the filter, newest first.
	List(filter Filter) ([]*protocol.Ticket, error)

	// AddPendingDeletion records a scheduled channel teardown.
	AddPendingDeletion(d protocol.PendingDeletion) error
	// DuePendingDeletions returns tasks whose due time is at or before now.
	DuePendingDeletions(now time.Time) ([]protocol.PendingDeletion, error)
	// RemovePendingDeletion deletes a task by ID. Removing a missing
	// task is not an error, so sweeps and cancels can race safely.
	RemovePendingDeletion(id string) error
}

// Filter constrains ticket list queries.
type Filter struct {
	Status  *protocol.TicketStatus
	ScopeID string
	Limit   int // 0 = no limit
}
