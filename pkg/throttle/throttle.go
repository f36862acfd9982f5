// Package throttle pauses sending accounts after repeated send failures.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultThreshold = 3
	DefaultPause     = 10 * time.Minute
)

// Breaker is a per-account consecutive-failure circuit breaker. Once Threshold failures
// accumulate the account is paused for Pause; every further failure re-opens it from now.
// It becomes half-open when the pause elapses and closes on the next success.
type Breaker struct {
	Threshold int
	Pause     time.Duration

	repo  persistence.ThrottleRepository
	clock clockwork.Clock
}

func NewBreaker(repo persistence.ThrottleRepository, clock clockwork.Clock) *Breaker {
	return &Breaker{
		Threshold: DefaultThreshold,
		Pause:     DefaultPause,
		repo:      repo,
		clock:     clock,
	}
}

func (b *Breaker) IsThrottled(ctx context.Context, account string) (bool, error) {
	status, err := b.repo.Get(ctx, account)
	if err != nil {
		return false, fmt.Errorf("failed to load throttle status: %w", err)
	}

	return status.IsThrottled(b.clock.Now()), nil
}

// RecordFailure counts a failed send and returns the updated status. The increment happens
// in the repository so concurrent failures on one account are all counted.
func (b *Breaker) RecordFailure(ctx context.Context, account string) (*models.ThrottleStatus, error) {
	status, err := b.repo.RecordFailure(ctx, account, b.clock.Now().UTC(), b.Threshold, b.Pause)
	if err != nil {
		return nil, fmt.Errorf("failed to record throttle failure: %w", err)
	}

	return status, nil
}

func (b *Breaker) RecordSuccess(ctx context.Context, account string) error {
	status, err := b.repo.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to load throttle status: %w", err)
	}

	if status.ConsecutiveFailures == 0 && status.PausedUntil == nil {
		return nil
	}

	status.RecordSuccess()

	err = b.repo.Save(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to save throttle status: %w", err)
	}

	return nil
}
