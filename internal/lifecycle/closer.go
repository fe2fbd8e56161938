package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ticketd-io/ticketd/internal/notify"
	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/store"
	"github.com/ticketd-io/ticketd/internal/transcript"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// Ack lets the closure workflow acknowledge the request before the
// long-running steps complete. May be nil.
type Ack func(text string)

// CloseTicket runs the closure workflow for a channel:
//
//  1. look up the ticket (ErrNotATicket stops everything),
//  2. acknowledge the request,
//  3. assemble the transcript from the full channel history,
//  4. durably flip the record to closed,
//  5. best-effort transcript deliveries (log channel, owner DM, alerts),
//  6. best-effort topic update with the reason,
//  7. schedule the deferred channel deletion.
//
// The status flip is durable before the deletion is scheduled, and
// never happens if history retrieval fails. Everything after the flip
// is downgraded to warnings in the result.
func (e *Engine) CloseTicket(ctx context.Context, channelRef, reason, actor string, ack Ack) (*protocol.CloseResult, error) {
	t, err := e.store.FindByChannel(channelRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotATicket
	}
	if err != nil {
		return nil, fmt.Errorf("lifecycle: close lookup: %w", err)
	}

	if ack != nil {
		ack("Closing ticket — creating transcript...")
	}

	body, err := transcript.AssembleFrom(ctx, e.historyPager(channelRef))
	if err != nil {
		// Nothing durable has happened yet; abort verbatim.
		return nil, err
	}

	artifactName := transcript.ArtifactName(channelRef)
	if _, err := e.art.Write(channelRef, body); err != nil {
		return nil, err
	}

	if err := e.store.MarkClosed(channelRef); err != nil {
		return nil, fmt.Errorf("lifecycle: mark closed: %w", err)
	}

	result := &protocol.CloseResult{ChannelRef: channelRef}

	deliveries := e.fanout.Deliver(ctx, notify.Closure{
		Ticket:       t,
		Reason:       reason,
		Actor:        actor,
		ArtifactName: artifactName,
		Transcript:   body,
	})
	result.Warnings = append(result.Warnings, notify.Warnings(deliveries)...)

	if err := e.platform.SetTopic(ctx, channelRef, "Closed: "+reason); err != nil {
		e.logger.Warn("topic update failed", "channel", channelRef, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("topic update failed: %v", err))
	}

	taskID, err := e.reaper.Schedule(channelRef, "Ticket closed: "+reason, e.cfg.GraceDelay)
	if err != nil {
		e.logger.Error("deletion scheduling failed", "channel", channelRef, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("deletion scheduling failed: %v", err))
	}
	result.DeletionTaskID = taskID

	e.logger.Info("ticket closed",
		"channel", channelRef, "actor", actor, "reason", reason, "warnings", len(result.Warnings))
	return result, nil
}

// AssembleTranscript produces and stores the transcript artifact for a
// ticket channel outside the closure workflow. Returns the artifact
// body and its file path.
func (e *Engine) AssembleTranscript(ctx context.Context, channelRef string) (string, string, error) {
	if _, err := e.FindByChannel(channelRef); err != nil {
		return "", "", err
	}
	body, err := transcript.AssembleFrom(ctx, e.historyPager(channelRef))
	if err != nil {
		return "", "", err
	}
	path, err := e.art.Write(channelRef, body)
	if err != nil {
		return "", "", err
	}
	return body, path, nil
}

// historyPager binds a channel to the platform's paginated history.
func (e *Engine) historyPager(channelRef string) transcript.Pager {
	return func(ctx context.Context, cursor string) (platform.HistoryPage, error) {
		return e.platform.History(ctx, channelRef, cursor)
	}
}
