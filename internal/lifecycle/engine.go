// Package lifecycle orchestrates ticket creation and closure state
// transitions against the store and the chat platform.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ticketd-io/ticketd/internal/notify"
	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/reaper"
	"github.com/ticketd-io/ticketd/internal/store"
	"github.com/ticketd-io/ticketd/internal/transcript"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// ErrNotATicket is returned when an operation targets a channel with no
// ticket record.
var ErrNotATicket = errors.New("lifecycle: channel is not a ticket")

// maxChannelName is the platform-imposed channel name length ceiling.
const maxChannelName = 90

// DefaultGraceDelay is how long a closed channel stays readable before
// deletion, so participants can read the closure notice.
const DefaultGraceDelay = 10 * time.Second

// Config holds the identities and knobs the engine needs. Constructed
// once at startup and never mutated.
type Config struct {
	// ServiceUserID is the bot's own platform identity, granted access
	// to every ticket channel.
	ServiceUserID string
	// SupportRole optionally grants a staff role access to new channels.
	SupportRole string
	// Container is the platform grouping construct for ticket channels;
	// its absence is tolerated.
	Container string
	// GraceDelay overrides DefaultGraceDelay when positive.
	GraceDelay time.Duration
}

// Engine is the ticket lifecycle manager.
type Engine struct {
	cfg      Config
	store    store.Store
	platform platform.Platform
	alloc    *Allocator
	art      *transcript.Assembler
	fanout   *notify.Fanout
	reaper   *reaper.Reaper
	logger   *slog.Logger
}

// New creates an engine. fanout and rp handle the best-effort closure
// deliveries and the deferred channel deletion respectively.
func New(cfg Config, st store.Store, pf platform.Platform, art *transcript.Assembler, fanout *notify.Fanout, rp *reaper.Reaper, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	return &Engine{
		cfg:      cfg,
		store:    st,
		platform: pf,
		alloc:    NewAllocator(st),
		art:      art,
		fanout:   fanout,
		reaper:   rp,
		logger:   logger,
	}
}

// FindByChannel returns the ticket backing a channel, or ErrNotATicket.
// Used to gate commands to ticket channels.
func (e *Engine) FindByChannel(channelRef string) (*protocol.Ticket, error) {
	t, err := e.store.FindByChannel(channelRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotATicket
	}
	if err != nil {
		return nil, fmt.Errorf("lifecycle: find by channel: %w", err)
	}
	return t, nil
}

// CreateTicket opens a ticket for the requester: allocates a display
// number, creates the backing channel with its access overlay, inserts
// the durable record, and announces the ticket. Returns the channel
// reference for the caller's acknowledgment.
//
// A platform failure before the insert aborts with no store mutation.
// If the insert itself fails the channel is left orphaned on the
// platform and the error says so; cleanup is an administrative action.
func (e *Engine) CreateTicket(ctx context.Context, scopeID string, requester platform.User) (string, error) {
	number, err := e.alloc.NextNumber(scopeID)
	if err != nil {
		return "", err
	}
	name := channelName(number, requester.DisplayName)

	overlay := platform.AccessOverlay{
		DenyEveryone: true,
		AllowUsers:   []string{requester.ID, e.cfg.ServiceUserID},
	}
	if e.cfg.SupportRole != "" {
		overlay.AllowRoles = []string{e.cfg.SupportRole}
	}

	channelRef, err := e.platform.CreateChannel(ctx, name, overlay, e.cfg.Container)
	if err != nil {
		return "", fmt.Errorf("lifecycle: create channel: %w", err)
	}

	if _, err := e.store.Insert(scopeID, channelRef, requester.ID); err != nil {
		// The channel exists but the record does not. Report the orphan
		// rather than deleting it automatically.
		e.logger.Error("ticket insert failed, channel orphaned",
			"scope", scopeID, "channel", channelRef, "error", err)
		return "", fmt.Errorf("lifecycle: record ticket (channel %s left on platform): %w", channelRef, err)
	}

	announcement := fmt.Sprintf("%s, a staff member will be with you shortly.\nUse `!close` to close this ticket.",
		e.platform.Mention(requester.ID))
	if err := e.platform.SendMessage(ctx, channelRef, announcement); err != nil {
		// The record is durable; a lost announcement is a warning only.
		e.logger.Warn("announcement failed", "channel", channelRef, "error", err)
	}

	e.logger.Info("ticket created",
		"scope", scopeID, "channel", channelRef, "owner", requester.ID, "number", number)
	return channelRef, nil
}

// channelName derives the ticket channel name: composed from the display
// number and requester name, lower-cased, spaces hyphenated, truncated
// to the platform ceiling.
func channelName(number int, requesterName string) string {
	name := fmt.Sprintf("ticket-%d-%s", number, requesterName)
	name = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	if runes := []rune(name); len(runes) > maxChannelName {
		name = string(runes[:maxChannelName])
	}
	return name
}
