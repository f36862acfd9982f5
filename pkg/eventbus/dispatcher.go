package eventbus

import (
	"context"

	"github.com/dukex/dripflow/pkg/events"
	"github.com/dukex/dripflow/pkg/models"
)

// Dispatcher hands claimed queue items to workers as lead.run.requested events keyed by lead,
// so one lead's passes stay on one partition.
type Dispatcher struct {
	publisher EventPublisher
}

func NewDispatcher(publisher EventPublisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

func (d *Dispatcher) Dispatch(ctx context.Context, item *models.QueueItem) error {
	return d.publisher.Publish(ctx, item.LeadID, events.LeadRunRequested{
		BaseEvent:   events.NewBaseEvent(events.LeadRunRequestedEvent, ""),
		QueueItemID: item.ID,
		LeadID:      item.LeadID,
		ExecutionID: item.ExecutionID,
		Settings:    item.Settings,
	})
}
