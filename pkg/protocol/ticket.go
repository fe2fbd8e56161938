package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket is the durable record behind a support-ticket channel.
// ChannelRef is unique across all tickets: one channel serves at most
// one ticket. The user-facing ticket number is derived per scope and
// never stored.
type Ticket struct {
	ID         int64        `json:"id"`
	ScopeID    string       `json:"scope_id"`
	ChannelRef string       `json:"channel_ref"`
	OwnerRef   string       `json:"owner_ref"`
	Status     TicketStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ClosedAt   *time.Time   `json:"closed_at,omitempty"`
}

// PendingDeletion is a scheduled channel teardown. Rows are durable so
// deletions scheduled before a restart are not lost, and cancellable by ID.
type PendingDeletion struct {
	ID         string    `json:"id"`
	ChannelRef string    `json:"channel_ref"`
	Reason     string    `json:"reason"`
	DueAt      time.Time `json:"due_at"`
}

// CloseResult reports the outcome of a closure workflow. Warnings carry
// the best-effort steps that failed; the status flip itself succeeded.
type CloseResult struct {
	ChannelRef     string   `json:"channel_ref"`
	DeletionTaskID string   `json:"deletion_task_id"`
	Warnings       []string `json:"warnings,omitempty"`
}
