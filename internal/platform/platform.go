package platform

import (
	"context"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// Platform is the interface to the external chat platform backing ticket
// channels. Every call crosses the network; all side effects are
// best-effort from the caller's point of view and are never read back to
// validate store invariants.
type Platform interface {
	// Name returns the platform type (e.g., "slack").
	Name() string
	// Start begins listening for inbound events. Blocks until context is
	// cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the platform connection.
	Stop() error

	// CreateChannel creates an isolated channel with the given access
	// overlay. container is the platform's grouping construct for ticket
	// channels; implementations may ignore it if the platform has none.
	CreateChannel(ctx context.Context, name string, overlay AccessOverlay, container string) (string, error)
	// SendMessage posts text into a channel.
	SendMessage(ctx context.Context, channelRef, text string) error
	// SendFile uploads a named text file into a channel with a comment.
	SendFile(ctx context.Context, channelRef, filename, content, comment string) error
	// History returns one page of the channel's messages, oldest-first,
	// plus the cursor for the next page ("" = no more pages).
	History(ctx context.Context, channelRef, cursor string) (HistoryPage, error)
	// SetTopic updates the channel's descriptive metadata.
	SetTopic(ctx context.Context, channelRef, topic string) error
	// DeleteChannel removes the channel from the platform.
	DeleteChannel(ctx context.Context, channelRef, reason string) error

	// GrantAccess adds a user to a channel's access overlay.
	GrantAccess(ctx context.Context, channelRef, userRef string) error
	// RevokeAccess removes a user from a channel's access overlay.
	RevokeAccess(ctx context.Context, channelRef, userRef string) error

	// ResolveUser looks up a user handle by reference.
	ResolveUser(ctx context.Context, userRef string) (User, error)
	// ResolveRole looks up a role handle by reference.
	ResolveRole(ctx context.Context, roleRef string) (Role, error)
	// SendDirect delivers a direct message to a user, optionally with a
	// file attachment.
	SendDirect(ctx context.Context, userRef, text string, attachment *Attachment) error

	// Mention renders a user reference as the platform's mention syntax.
	Mention(userRef string) string
}

// AccessOverlay is the per-channel permission map applied at creation:
// listed users and roles get read/write, everyone else is denied read.
type AccessOverlay struct {
	AllowUsers   []string
	AllowRoles   []string
	DenyEveryone bool
}

// HistoryPage is one page of channel history.
type HistoryPage struct {
	Lines      []protocol.TranscriptLine
	NextCursor string
}

// User is a resolved platform user.
type User struct {
	ID          string
	DisplayName string
}

// Role is a resolved platform role or user group.
type Role struct {
	ID   string
	Name string
}

// Attachment is an in-memory text file for outbound delivery.
type Attachment struct {
	Name    string
	Content string
}

// Event is an inbound message from the platform, fed to the command
// dispatcher.
type Event struct {
	ChannelRef string
	SenderID   string
	SenderName string
	Text       string
}

// EventHandler processes inbound platform events.
type EventHandler func(ctx context.Context, ev Event) error
