package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/dripflow/pkg/eventbus"
	"github.com/dukex/dripflow/pkg/events"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/queue"
)

// Processor runs dispatched queue items: one pass per item, a deferred item when the pass
// asks to be retried and a lead.pass.finished event afterwards.
type Processor struct {
	runner    *Runner
	queue     *queue.Queue
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewProcessor creates a processor. publisher may be nil.
func NewProcessor(runner *Runner, q *queue.Queue, publisher eventbus.EventPublisher, logger *slog.Logger) *Processor {
	return &Processor{
		runner:    runner,
		queue:     q,
		publisher: publisher,
		logger:    logger.With("component", "workflow_processor"),
	}
}

// Process runs one pass for item. Pass failures are already recorded on the lead and are not
// returned; only a failure to re-queue a deferred lead is.
func (p *Processor) Process(ctx context.Context, item *models.QueueItem) (PassResult, error) {
	result, err := p.runner.Run(ctx, item.ExecutionID, item.LeadID, item.Settings)
	if err != nil {
		p.logger.Warn("Pass finished with error", "queue_item_id", item.ID, "lead_id", item.LeadID, "error", err)
	}

	if result.Deferred() {
		deferred, err := p.queue.Defer(ctx, item, result.RetryAfter)
		if err != nil {
			return result, fmt.Errorf("failed to defer lead %s: %w", item.LeadID, err)
		}

		p.logger.Info("Lead deferred",
			"lead_id", item.LeadID,
			"queue_item_id", deferred.ID,
			"run_after", deferred.RunAfter,
			"reason", result.Reason)
	}

	p.publish(ctx, result)

	return result, nil
}

// Dispatch runs the item inline, for deployments without a separate worker.
func (p *Processor) Dispatch(ctx context.Context, item *models.QueueItem) error {
	_, err := p.Process(ctx, item)

	return err
}

// HandleRunRequested is the eventbus handler for lead.run.requested.
func (p *Processor) HandleRunRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.LeadRunRequested)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_, err := p.Process(ctx, request.QueueItem())

	return err
}

func (p *Processor) publish(ctx context.Context, result PassResult) {
	if p.publisher == nil {
		return
	}

	err := p.publisher.Publish(ctx, result.LeadID, events.LeadPassFinished{
		BaseEvent:   events.NewBaseEvent(events.LeadPassFinishedEvent, ""),
		LeadID:      result.LeadID,
		ExecutionID: result.ExecutionID,
		Status:      result.Status,
		RetryAfter:  result.RetryAfter,
		Halted:      result.Halted,
		Reason:      result.Reason,
	})
	if err != nil {
		p.logger.Error("Failed to publish pass result", "lead_id", result.LeadID, "error", err)
	}
}
