package command

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ticketd-io/ticketd/internal/lifecycle"
	"github.com/ticketd-io/ticketd/internal/notify"
	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/platform/platformtest"
	"github.com/ticketd-io/ticketd/internal/reaper"
	"github.com/ticketd-io/ticketd/internal/store"
	"github.com/ticketd-io/ticketd/internal/transcript"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *store.SQLiteStore, *platformtest.Fake) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.DB().Close() })

	pf := platformtest.New()
	fanout := notify.NewFanout(nil)
	fanout.Register(&notify.OwnerDM{Platform: pf})
	engine := lifecycle.New(
		lifecycle.Config{ServiceUserID: "bot"},
		st, pf, transcript.New(t.TempDir()), fanout, reaper.New(st, pf, nil), nil,
	)
	return New(engine, pf, "S1", nil), st, pf
}

func event(channel, sender, text string) platform.Event {
	return platform.Event{ChannelRef: channel, SenderID: sender, SenderName: sender, Text: text}
}

// repliesTo returns the texts the dispatcher posted into a channel.
func repliesTo(pf *platformtest.Fake, channel string) []string {
	var out []string
	for _, m := range pf.Messages {
		if m.ChannelRef == channel {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestHandleEvent_IgnoresNonCommands(t *testing.T) {
	d, _, pf := newTestDispatcher(t)

	if err := d.HandleEvent(context.Background(), event("chan-1", "alice", "hello there")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := d.HandleEvent(context.Background(), event("chan-1", "alice", "!nosuchcommand")); err != nil {
		t.Fatalf("handle unknown: %v", err)
	}
	if len(pf.Messages) != 0 {
		t.Errorf("plain chatter must not trigger replies: %+v", pf.Messages)
	}
}

func TestOpenAndClose_EndToEnd(t *testing.T) {
	d, st, pf := newTestDispatcher(t)
	ctx := context.Background()

	if err := d.HandleEvent(ctx, event("lobby", "U-alice", "!open")); err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(pf.Created) != 1 {
		t.Fatalf("expected one channel, got %v", pf.Created)
	}
	ticketChan := pf.Created[0]

	if err := d.HandleEvent(ctx, event(ticketChan, "U-staff", "!close all resolved")); err != nil {
		t.Fatalf("close: %v", err)
	}

	tk, err := st.FindByChannel(ticketChan)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tk.Status != protocol.TicketClosed {
		t.Errorf("expected closed, got %q", tk.Status)
	}

	replies := repliesTo(pf, ticketChan)
	last := replies[len(replies)-1]
	if !strings.Contains(last, "Ticket closed") {
		t.Errorf("expected closing confirmation, got %q", last)
	}
}

func TestClose_NotATicketChannel(t *testing.T) {
	d, _, pf := newTestDispatcher(t)

	if err := d.HandleEvent(context.Background(), event("random", "U-staff", "!close")); err != nil {
		t.Fatalf("close: %v", err)
	}
	replies := repliesTo(pf, "random")
	if len(replies) != 1 || replies[0] != "This channel is not a ticket." {
		t.Errorf("expected gating reply, got %v", replies)
	}
}

func TestAddRemove_GatedAndApplied(t *testing.T) {
	d, _, pf := newTestDispatcher(t)
	ctx := context.Background()

	d.HandleEvent(ctx, event("lobby", "U-alice", "!open"))
	ticketChan := pf.Created[0]

	d.HandleEvent(ctx, event(ticketChan, "U-staff", "!add U-bob"))
	if len(pf.Granted) != 1 || pf.Granted[0] != ticketChan+":U-bob" {
		t.Errorf("expected grant for U-bob, got %v", pf.Granted)
	}

	d.HandleEvent(ctx, event(ticketChan, "U-staff", "!remove U-bob"))
	if len(pf.Revoked) != 1 || pf.Revoked[0] != ticketChan+":U-bob" {
		t.Errorf("expected revoke for U-bob, got %v", pf.Revoked)
	}

	// Outside a ticket channel both commands are gated.
	d.HandleEvent(ctx, event("random", "U-staff", "!add U-bob"))
	if len(pf.Granted) != 1 {
		t.Errorf("gating failed, grants: %v", pf.Granted)
	}
}

func TestTranscript_AdHocUpload(t *testing.T) {
	d, _, pf := newTestDispatcher(t)
	ctx := context.Background()

	d.HandleEvent(ctx, event("lobby", "U-alice", "!open"))
	ticketChan := pf.Created[0]

	if err := d.HandleEvent(ctx, event(ticketChan, "U-staff", "!transcript")); err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(pf.Files) != 1 || pf.Files[0].ChannelRef != ticketChan {
		t.Fatalf("expected upload into the ticket channel, got %+v", pf.Files)
	}
	if pf.Files[0].Content != transcript.EmptySentinel {
		t.Errorf("expected sentinel for empty history, got %q", pf.Files[0].Content)
	}
}

func TestModerationStubs_SharedHandler(t *testing.T) {
	d, _, pf := newTestDispatcher(t)

	if err := d.HandleEvent(context.Background(), event("chan-1", "U-staff", "!lockdown")); err != nil {
		t.Fatalf("stub: %v", err)
	}
	replies := repliesTo(pf, "chan-1")
	if len(replies) != 1 || !strings.Contains(replies[0], "`lockdown` is not implemented") {
		t.Errorf("expected stub reply, got %v", replies)
	}
}

func TestTable_CoversAllStubNames(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	have := make(map[string]bool)
	for _, name := range d.Commands() {
		have[name] = true
	}
	for _, name := range moderationStubs {
		if !have[name] {
			t.Errorf("stub %q missing from dispatch table", name)
		}
	}
}
