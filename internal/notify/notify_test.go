package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

type fakeTarget struct {
	name  string
	err   error
	calls int
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Deliver(context.Context, Closure) error {
	f.calls++
	return f.err
}

func testClosure() Closure {
	return Closure{
		Ticket:       &protocol.Ticket{ChannelRef: "C1", OwnerRef: "alice", ScopeID: "g1"},
		Reason:       "resolved",
		Actor:        "staff1",
		ArtifactName: "transcript-C1.txt",
		Transcript:   "No messages",
	}
}

func TestDeliver_AllTargetsAttempted(t *testing.T) {
	broken := &fakeTarget{name: "broken", err: errors.New("unavailable")}
	working := &fakeTarget{name: "working"}

	f := NewFanout(nil)
	f.Register(broken)
	f.Register(working)

	results := f.Deliver(context.Background(), testClosure())
	if len(results) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(results))
	}
	if broken.calls != 1 || working.calls != 1 {
		t.Error("every target must be attempted regardless of earlier failures")
	}
	if results[0].Err == nil {
		t.Error("expected broken target's error to be recorded")
	}
	if results[1].Err != nil {
		t.Errorf("working target should succeed, got %v", results[1].Err)
	}
}

func TestWarnings(t *testing.T) {
	deliveries := []Delivery{
		{Target: "log-channel", Err: errors.New("upload rejected")},
		{Target: "owner-dm"},
	}
	warnings := Warnings(deliveries)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0] != "log-channel delivery failed: upload rejected" {
		t.Errorf("unexpected warning %q", warnings[0])
	}
}

func TestWarnings_AllOK(t *testing.T) {
	if w := Warnings([]Delivery{{Target: "owner-dm"}}); w != nil {
		t.Errorf("expected no warnings, got %v", w)
	}
}
