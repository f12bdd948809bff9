// Package events announces pipeline outcomes.
package events

import (
	"context"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/pkg/logger"
	"github.com/punchflow/punchflow/pkg/messaging"
)

// Publisher is satisfied by messaging.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// NopPublisher drops every event. Used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Notifier turns run results into events.
type Notifier struct {
	pub    Publisher
	logger *logger.Logger
}

// NewNotifier creates a notifier. A nil publisher disables publishing.
func NewNotifier(pub Publisher, log *logger.Logger) *Notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Notifier{pub: pub, logger: log.WithComponent("events")}
}

// RunFinished publishes the completed or failed event for a run. Publishing
// problems are logged and never fail the run.
func (n *Notifier) RunFinished(ctx context.Context, res *domain.RunResult) {
	if res.Succeeded() {
		n.publish(ctx, res.RunID, messaging.EventETLCompleted, Completed(res))
		return
	}
	failed := messaging.ETLFailedEvent{ETLCompletedEvent: Completed(res)}
	for _, f := range res.Failures {
		failed.Errors = append(failed.Errors, f.Error())
	}
	n.publish(ctx, res.RunID, messaging.EventETLFailed, failed)
}

// RunAborted publishes the failed event for a run that stopped before any
// entity was loaded.
func (n *Notifier) RunAborted(ctx context.Context, res *domain.RunResult, cause error) {
	failed := messaging.ETLFailedEvent{ETLCompletedEvent: Completed(res), Errors: []string{cause.Error()}}
	n.publish(ctx, res.RunID, messaging.EventETLFailed, failed)
}

func (n *Notifier) publish(ctx context.Context, runID, eventType string, payload interface{}) {
	ctx = messaging.WithCorrelationID(ctx, runID)
	if err := n.pub.Publish(ctx, eventType, payload); err != nil {
		n.logger.Warn().Err(err).Str("event_type", eventType).Str("run_id", runID).Msg("failed to publish run event")
	}
}

// Completed builds the event payload for a run.
func Completed(res *domain.RunResult) messaging.ETLCompletedEvent {
	evt := messaging.ETLCompletedEvent{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt,
		DurationMS:  res.Duration.Milliseconds(),
		Mode:        res.Mode,
		Entities:    make(map[string]messaging.EntityOutcome, len(res.Entities)),
		Integrated:  res.Integrated,
		PunchSlots:  res.PunchSlots,
		Diagnostics: len(res.Diagnostics),
	}
	for e, s := range res.Entities {
		evt.Entities[string(e)] = messaging.EntityOutcome{
			Read:       s.Read,
			Invalid:    s.Invalid,
			Filtered:   s.Filtered,
			Duplicates: s.Duplicates,
			Loaded:     s.Loaded,
			Skipped:    s.Skipped,
		}
	}
	for _, f := range res.Failures {
		o := evt.Entities[string(f.Entity)]
		o.Error = f.Err.Error()
		evt.Entities[string(f.Entity)] = o
	}
	return evt
}
