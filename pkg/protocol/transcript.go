package protocol

import "time"

// TranscriptLine is one message of a channel's history, ordered
// oldest-first by the producer. Lines exist only in memory; they are
// serialized into a flat text artifact, never persisted as rows.
type TranscriptLine struct {
	Timestamp      time.Time
	AuthorDisplay  string
	AuthorID       string
	Body           string
	AttachmentURLs []string
}
