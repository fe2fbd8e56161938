// Package command maps inbound chat messages to ticket operations. The
// dispatch table is static: every command name, including the
// not-yet-implemented moderation set, is bound at construction.
// Authorization is the platform's concern; handlers only see the
// caller's identity and a reply path.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ticketd-io/ticketd/internal/lifecycle"
	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/transcript"
)

// Prefix marks a message as a command.
const Prefix = "!"

// Request is a parsed command invocation.
type Request struct {
	ChannelRef string
	Actor      platform.User
	Args       []string
	// Reply posts text back into the invoking channel.
	Reply func(text string)
}

// Handler executes one command.
type Handler func(ctx context.Context, req Request) error

// Dispatcher routes inbound platform events to handlers.
type Dispatcher struct {
	engine   *lifecycle.Engine
	platform platform.Platform
	scopeID  string
	table    map[string]Handler
	logger   *slog.Logger
}

// New builds a dispatcher with its full command table.
func New(engine *lifecycle.Engine, pf platform.Platform, scopeID string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		engine:   engine,
		platform: pf,
		scopeID:  scopeID,
		logger:   logger,
	}

	d.table = map[string]Handler{
		"open":       d.handleOpen,
		"close":      d.handleClose,
		"claim":      d.handleClaim,
		"add":        d.handleAdd,
		"remove":     d.handleRemove,
		"transcript": d.handleTranscript,
		"help":       d.handleHelp,
	}
	// One shared handler serves every moderation stub.
	for _, name := range moderationStubs {
		d.table[name] = notImplemented(name)
	}
	return d
}

// Commands returns the registered command names (for help and tests).
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.table))
	for name := range d.table {
		names = append(names, name)
	}
	return names
}

// HandleEvent parses a platform event and dispatches it. Non-command
// messages and unknown commands are ignored.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev platform.Event) error {
	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, Prefix) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(text, Prefix))
	if len(fields) == 0 {
		return nil
	}

	handler, ok := d.table[strings.ToLower(fields[0])]
	if !ok {
		return nil
	}

	req := Request{
		ChannelRef: ev.ChannelRef,
		Actor:      platform.User{ID: ev.SenderID, DisplayName: ev.SenderName},
		Args:       fields[1:],
		Reply: func(text string) {
			if err := d.platform.SendMessage(ctx, ev.ChannelRef, text); err != nil {
				d.logger.Warn("reply failed", "channel", ev.ChannelRef, "error", err)
			}
		},
	}
	return handler(ctx, req)
}

func (d *Dispatcher) handleOpen(ctx context.Context, req Request) error {
	channelRef, err := d.engine.CreateTicket(ctx, d.scopeID, req.Actor)
	if err != nil {
		req.Reply(fmt.Sprintf("Failed to create ticket: %v", err))
		return err
	}
	req.Reply(fmt.Sprintf("Ticket created: %s", channelRef))
	return nil
}

func (d *Dispatcher) handleClose(ctx context.Context, req Request) error {
	reason := strings.Join(req.Args, " ")
	if reason == "" {
		reason = "Closed by staff"
	}

	result, err := d.engine.CloseTicket(ctx, req.ChannelRef, reason, req.Actor.ID, req.Reply)
	if errors.Is(err, lifecycle.ErrNotATicket) {
		req.Reply("This channel is not a ticket.")
		return nil
	}
	if err != nil {
		req.Reply(fmt.Sprintf("Failed to close ticket: %v", err))
		return err
	}

	for _, w := range result.Warnings {
		req.Reply("Warning: " + w)
	}
	req.Reply("Ticket closed. Channel will be deleted shortly.")
	return nil
}

func (d *Dispatcher) handleClaim(ctx context.Context, req Request) error {
	if _, err := d.engine.FindByChannel(req.ChannelRef); err != nil {
		req.Reply("This channel is not a ticket.")
		return nil
	}
	req.Reply(fmt.Sprintf("%s claimed this ticket.", d.platform.Mention(req.Actor.ID)))
	return nil
}

func (d *Dispatcher) handleAdd(ctx context.Context, req Request) error {
	if _, err := d.engine.FindByChannel(req.ChannelRef); err != nil {
		req.Reply("This channel is not a ticket.")
		return nil
	}
	if len(req.Args) != 1 {
		req.Reply("Usage: !add <user>")
		return nil
	}

	userRef := req.Args[0]
	if err := d.platform.GrantAccess(ctx, req.ChannelRef, userRef); err != nil {
		req.Reply(fmt.Sprintf("Failed to add %s: %v", userRef, err))
		return err
	}
	req.Reply(fmt.Sprintf("%s was added to the ticket.", d.platform.Mention(userRef)))
	return nil
}

func (d *Dispatcher) handleRemove(ctx context.Context, req Request) error {
	if _, err := d.engine.FindByChannel(req.ChannelRef); err != nil {
		req.Reply("This channel is not a ticket.")
		return nil
	}
	if len(req.Args) != 1 {
		req.Reply("Usage: !remove <user>")
		return nil
	}

	userRef := req.Args[0]
	if err := d.platform.RevokeAccess(ctx, req.ChannelRef, userRef); err != nil {
		req.Reply(fmt.Sprintf("Failed to remove %s: %v", userRef, err))
		return err
	}
	req.Reply(fmt.Sprintf("%s was removed from the ticket.", d.platform.Mention(userRef)))
	return nil
}

func (d *Dispatcher) handleTranscript(ctx context.Context, req Request) error {
	req.Reply("Creating transcript...")
	body, _, err := d.engine.AssembleTranscript(ctx, req.ChannelRef)
	if errors.Is(err, lifecycle.ErrNotATicket) {
		req.Reply("This channel is not a ticket.")
		return nil
	}
	if err != nil {
		req.Reply(fmt.Sprintf("Failed to create transcript: %v", err))
		return err
	}

	name := transcript.ArtifactName(req.ChannelRef)
	if err := d.platform.SendFile(ctx, req.ChannelRef, name, body, ""); err != nil {
		req.Reply(fmt.Sprintf("Failed to upload transcript: %v", err))
		return err
	}
	return nil
}

func (d *Dispatcher) handleHelp(_ context.Context, req Request) error {
	req.Reply(strings.Join([]string{
		"Ticket commands:",
		"!open — open a new support ticket",
		"!close [reason] — close this ticket",
		"!claim — claim this ticket",
		"!add <user> / !remove <user> — manage ticket access",
		"!transcript — export this ticket's history",
	}, "\n"))
	return nil
}

// notImplemented returns the shared stub handler bound to a name.
func notImplemented(name string) Handler {
	return func(_ context.Context, req Request) error {
		req.Reply(fmt.Sprintf("Moderator command `%s` is not implemented yet.", name))
		return nil
	}
}
