// Package reaper executes deferred channel deletions. Tasks are durable
// store rows, so deletions scheduled before a restart still fire, and a
// task can be cancelled by ID until the sweep picks it up.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/internal/store"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

const sweepInterval = "@every 1s"

// Reaper sweeps due pending deletions and tears down their channels.
type Reaper struct {
	store    store.Store
	platform platform.Platform
	cron     *cron.Cron
	logger   *slog.Logger
}

// New creates a reaper.
func New(st store.Store, pf platform.Platform, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    st,
		platform: pf,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start begins the sweep loop. Blocks until context is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(sweepInterval, func() { r.Sweep(ctx) }); err != nil {
		return fmt.Errorf("reaper: register sweep: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reaper started")

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("reaper stopped")
	return ctx.Err()
}

// Schedule records a deletion task due after delay and returns its ID.
func (r *Reaper) Schedule(channelRef, reason string, delay time.Duration) (string, error) {
	task := protocol.PendingDeletion{
		ID:         uuid.NewString(),
		ChannelRef: channelRef,
		Reason:     reason,
		DueAt:      time.Now().UTC().Add(delay),
	}
	if err := r.store.AddPendingDeletion(task); err != nil {
		return "", fmt.Errorf("reaper: schedule: %w", err)
	}
	r.logger.Info("deletion scheduled", "task", task.ID, "channel", channelRef, "due_at", task.DueAt)
	return task.ID, nil
}

// Cancel revokes a scheduled deletion. Cancelling a task that already
// fired (or never existed) is not an error.
func (r *Reaper) Cancel(taskID string) error {
	if err := r.store.RemovePendingDeletion(taskID); err != nil {
		return fmt.Errorf("reaper: cancel: %w", err)
	}
	r.logger.Info("deletion cancelled", "task", taskID)
	return nil
}

// Sweep deletes every channel whose task is due. A platform failure is
// reported but not retried; the task is consumed either way.
func (r *Reaper) Sweep(ctx context.Context) {
	due, err := r.store.DuePendingDeletions(time.Now().UTC())
	if err != nil {
		r.logger.Error("failed to load due deletions", "error", err)
		return
	}

	for _, task := range due {
		if err := r.platform.DeleteChannel(ctx, task.ChannelRef, task.Reason); err != nil {
			r.logger.Error("channel deletion failed",
				"task", task.ID,
				"channel", task.ChannelRef,
				"error", err,
			)
		} else {
			r.logger.Info("channel deleted", "task", task.ID, "channel", task.ChannelRef)
		}
		if err := r.store.RemovePendingDeletion(task.ID); err != nil {
			r.logger.Error("failed to remove deletion task", "task", task.ID, "error", err)
		}
	}
}
