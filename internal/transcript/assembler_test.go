package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

func line(i int) protocol.TranscriptLine {
	return protocol.TranscriptLine{
		Timestamp:     time.Date(2026, 1, 2, 3, 4, i, 0, time.UTC),
		AuthorDisplay: "alice",
		AuthorID:      "U1",
		Body:          fmt.Sprintf("message %d", i),
	}
}

func TestAssemble_Empty(t *testing.T) {
	if got := Assemble(nil); got != EmptySentinel {
		t.Errorf("expected sentinel, got %q", got)
	}
}

func TestAssemble_OrderAndFormat(t *testing.T) {
	lines := []protocol.TranscriptLine{line(0), line(1), line(2)}
	body := Assemble(lines)

	rows := strings.Split(body, "\n")
	if len(rows) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(rows))
	}
	for i, row := range rows {
		want := fmt.Sprintf("[2026-01-02T03:04:%02dZ] alice (U1): message %d", i, i)
		if row != want {
			t.Errorf("line %d: expected %q, got %q", i, want, row)
		}
	}
}

func TestFormatLine_Attachments(t *testing.T) {
	l := line(0)
	l.AttachmentURLs = []string{"https://files/a.png", "https://files/b.png"}
	got := FormatLine(l)
	want := "[2026-01-02T03:04:00Z] alice (U1): message 0 https://files/a.png https://files/b.png"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAssembleFrom_Pages(t *testing.T) {
	pages := map[string]platform.HistoryPage{
		"":   {Lines: []protocol.TranscriptLine{line(0), line(1)}, NextCursor: "p2"},
		"p2": {Lines: []protocol.TranscriptLine{line(2)}},
	}
	pager := func(_ context.Context, cursor string) (platform.HistoryPage, error) {
		return pages[cursor], nil
	}

	body, err := AssembleFrom(context.Background(), pager)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if body != Assemble([]protocol.TranscriptLine{line(0), line(1), line(2)}) {
		t.Errorf("paged assembly diverged from flat assembly:\n%s", body)
	}
}

func TestAssembleFrom_EmptyHistory(t *testing.T) {
	pager := func(context.Context, string) (platform.HistoryPage, error) {
		return platform.HistoryPage{}, nil
	}
	body, err := AssembleFrom(context.Background(), pager)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if body != EmptySentinel {
		t.Errorf("expected sentinel, got %q", body)
	}
}

func TestAssembleFrom_FetchError(t *testing.T) {
	boom := errors.New("platform down")
	pager := func(context.Context, string) (platform.HistoryPage, error) {
		return platform.HistoryPage{}, boom
	}
	_, err := AssembleFrom(context.Background(), pager)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestWrite_DeterministicOverwrite(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	p1, err := a.Write("C123", "first")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	p2, err := a.Write("C123", "second")
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if p1 != p2 {
		t.Errorf("expected deterministic path, got %q then %q", p1, p2)
	}
	if filepath.Base(p1) != "transcript-C123.txt" {
		t.Errorf("unexpected artifact name %q", filepath.Base(p1))
	}

	data, err := os.ReadFile(p2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %q", data)
	}
}
