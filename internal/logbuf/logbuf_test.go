package logbuf

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestBuffer_EvictsOldest(t *testing.T) {
	b := New(3)
	for i := range 5 {
		b.Write(Entry{Message: string(rune('a' + i)), Level: "INFO", Time: time.Now()})
	}
	if b.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", b.Len())
	}
	got := b.Query(time.Time{}, slog.LevelDebug, 0)
	if got[0].Message != "c" || got[2].Message != "e" {
		t.Errorf("expected oldest-first c..e, got %+v", got)
	}
}

func TestQuery_LevelAndLimit(t *testing.T) {
	b := New(10)
	b.Write(Entry{Message: "dbg", Level: "DEBUG", Time: time.Now()})
	b.Write(Entry{Message: "warn1", Level: "WARN", Time: time.Now()})
	b.Write(Entry{Message: "warn2", Level: "WARN", Time: time.Now()})

	got := b.Query(time.Time{}, slog.LevelWarn, 1)
	if len(got) != 1 || got[0].Message != "warn2" {
		t.Errorf("expected newest warn only, got %+v", got)
	}
}

func TestHandler_CapturesAttrs(t *testing.T) {
	buf := New(10)
	logger := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), buf))

	logger.With("component", "store").Warn("insert failed", "channel", "C1")

	got := buf.Query(time.Time{}, slog.LevelWarn, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Attrs["component"] != "store" || got[0].Attrs["channel"] != "C1" {
		t.Errorf("attrs not captured: %+v", got[0].Attrs)
	}
}
