package protocol

import (
	"context"

	"github.com/dukex/dripflow/pkg/models"
)

// Tracker answers read-only questions about engagement with sent emails.
type Tracker interface {
	WasLinkClicked(ctx context.Context, leadID, emailID, url string) (bool, error)
	HasReplied(ctx context.Context, leadID string) (bool, error)
}

// Dispatcher hands a claimed queue item to a worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, item *models.QueueItem) error
}
