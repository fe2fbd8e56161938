// Package transcript flattens a channel's message history into a
// durable text artifact.
package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// EmptySentinel is the artifact body for a channel with no messages.
// Downstream consumers (log upload, DM delivery) always get non-empty
// content.
const EmptySentinel = "No messages"

// Pager yields one page of channel history per call. An empty next
// cursor ends the sequence.
type Pager func(ctx context.Context, cursor string) (platform.HistoryPage, error)

// Assembler serializes transcript lines and writes artifacts into dir.
type Assembler struct {
	dir string
}

// New creates an assembler writing artifacts under dir.
func New(dir string) *Assembler {
	return &Assembler{dir: dir}
}

// Assemble concatenates lines, oldest-first as given, into the artifact
// body. The caller guarantees ordering; lines are never re-sorted.
func Assemble(lines []protocol.TranscriptLine) string {
	if len(lines) == 0 {
		return EmptySentinel
	}
	formatted := make([]string, len(lines))
	for i, l := range lines {
		formatted[i] = FormatLine(l)
	}
	return strings.Join(formatted, "\n")
}

// AssembleFrom folds history pages into a complete artifact body. The
// full sequence is consumed before returning; memory is bounded per
// page, not per channel.
func AssembleFrom(ctx context.Context, pager Pager) (string, error) {
	var b strings.Builder
	n := 0
	cursor := ""
	for {
		page, err := pager(ctx, cursor)
		if err != nil {
			return "", fmt.Errorf("transcript: fetch history: %w", err)
		}
		for _, l := range page.Lines {
			if n > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(FormatLine(l))
			n++
		}
		cursor = page.NextCursor
		if cursor == "" {
			break
		}
	}
	if n == 0 {
		return EmptySentinel, nil
	}
	return b.String(), nil
}

// FormatLine renders one message as
// "[timestamp] author (authorId): body attachmentURLs".
func FormatLine(l protocol.TranscriptLine) string {
	line := fmt.Sprintf("[%s] %s (%s): %s",
		l.Timestamp.UTC().Format(time.RFC3339), l.AuthorDisplay, l.AuthorID, l.Body)
	if len(l.AttachmentURLs) > 0 {
		line += " " + strings.Join(l.AttachmentURLs, " ")
	}
	return line
}

// ArtifactName derives the deterministic artifact file name for a
// channel, so repeated assembly overwrites rather than accumulates.
func ArtifactName(channelRef string) string {
	return fmt.Sprintf("transcript-%s.txt", channelRef)
}

// Write stores the artifact body for a channel and returns the file
// path. An existing artifact for the same channel is overwritten.
func (a *Assembler) Write(channelRef, body string) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("transcript: mkdir: %w", err)
	}
	path := filepath.Join(a.dir, ArtifactName(channelRef))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("transcript: write artifact: %w", err)
	}
	return path, nil
}
