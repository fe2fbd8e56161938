// Package notify fans out closure notifications to independent targets.
// Every delivery is best-effort: a failed target is reported as a
// warning and never affects the other targets or the closure workflow.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ticketd-io/ticketd/pkg/protocol"
)

// Closure carries everything a target needs to announce a closed ticket.
type Closure struct {
	Ticket       *protocol.Ticket
	Reason       string
	Actor        string
	ArtifactName string
	Transcript   string
}

// Target delivers a closure notification over one channel.
type Target interface {
	Name() string
	Deliver(ctx context.Context, c Closure) error
}

// Delivery is the per-target outcome of a fan-out.
type Delivery struct {
	Target string
	Err    error
}

// Fanout delivers closures to all registered targets.
type Fanout struct {
	targets []Target
	logger  *slog.Logger
}

// NewFanout creates an empty fan-out.
func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{logger: logger}
}

// Register adds a target.
func (f *Fanout) Register(t Target) {
	f.targets = append(f.targets, t)
}

// Deliver sends the closure to every target and returns one Delivery
// per target. Failures are logged and collected, never propagated.
func (f *Fanout) Deliver(ctx context.Context, c Closure) []Delivery {
	results := make([]Delivery, 0, len(f.targets))
	for _, t := range f.targets {
		err := t.Deliver(ctx, c)
		if err != nil {
			f.logger.Warn("closure delivery failed",
				"target", t.Name(),
				"channel", c.Ticket.ChannelRef,
				"error", err,
			)
		}
		results = append(results, Delivery{Target: t.Name(), Err: err})
	}
	return results
}

// Warnings converts failed deliveries into user-facing warning strings.
func Warnings(deliveries []Delivery) []string {
	var warnings []string
	for _, d := range deliveries {
		if d.Err != nil {
			warnings = append(warnings, fmt.Sprintf("%s delivery failed: %v", d.Target, d.Err))
		}
	}
	return warnings
}
