package tracking

import (
	"context"

	"github.com/dukex/dripflow/pkg/persistence"
)

// Tracker answers engagement questions from the recorded clicks and replies.
type Tracker struct {
	repo persistence.TrackingRepository
}

func NewTracker(repo persistence.TrackingRepository) *Tracker {
	return &Tracker{repo: repo}
}

func (t *Tracker) WasLinkClicked(ctx context.Context, leadID, emailID, url string) (bool, error) {
	return t.repo.HasClicked(ctx, leadID, emailID, url)
}

func (t *Tracker) HasReplied(ctx context.Context, leadID string) (bool, error) {
	return t.repo.HasReplied(ctx, leadID)
}
