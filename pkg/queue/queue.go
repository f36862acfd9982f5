// Package queue feeds leads into workflow passes: the intake queue, deferral of passes that
// must run later, and the scheduler that claims due items in batches.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

type Queue struct {
	repo  persistence.QueueRepository
	clock clockwork.Clock
}

func NewQueue(repo persistence.QueueRepository, clock clockwork.Clock) *Queue {
	return &Queue{repo: repo, clock: clock}
}

// Enqueue requests a pass for the lead as soon as possible. settings is copied so later
// edits of the workflow do not reach the queued run.
func (q *Queue) Enqueue(ctx context.Context, leadID, executionID string, settings models.WorkflowSettings) (*models.QueueItem, error) {
	return q.enqueueAt(ctx, leadID, executionID, settings, q.clock.Now().UTC())
}

// Defer queues another pass for the item's lead once delay has elapsed.
func (q *Queue) Defer(ctx context.Context, item *models.QueueItem, delay time.Duration) (*models.QueueItem, error) {
	return q.enqueueAt(ctx, item.LeadID, item.ExecutionID, item.Settings, q.clock.Now().UTC().Add(delay))
}

func (q *Queue) enqueueAt(
	ctx context.Context,
	leadID, executionID string,
	settings models.WorkflowSettings,
	runAfter time.Time,
) (*models.QueueItem, error) {
	item := &models.QueueItem{
		LeadID:      leadID,
		ExecutionID: executionID,
		Settings:    settings.Snapshot(),
		RunAfter:    runAfter,
		CreatedAt:   q.clock.Now().UTC(),
	}

	err := q.repo.Enqueue(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue lead %s: %w", leadID, err)
	}

	return item, nil
}
