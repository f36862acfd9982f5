package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize     = 200
	DefaultInterval      = time.Minute
	DefaultStuckTimeout  = 10 * time.Minute
	DefaultStuckInterval = 5 * time.Minute
)

type Config struct {
	BatchSize     int
	Interval      time.Duration
	StuckTimeout  time.Duration
	StuckInterval time.Duration
	// DispatchRate caps dispatches per second; zero means unlimited.
	DispatchRate float64
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     DefaultBatchSize,
		Interval:      DefaultInterval,
		StuckTimeout:  DefaultStuckTimeout,
		StuckInterval: DefaultStuckInterval,
	}
}

// Scheduler claims due queue items and hands them to a Dispatcher. Claims are the only
// coordination between scheduler instances.
type Scheduler struct {
	config     Config
	repo       persistence.QueueRepository
	dispatcher protocol.Dispatcher
	limiter    *rate.Limiter
	clock      clockwork.Clock
	logger     *slog.Logger
	cron       *cron.Cron
}

func NewScheduler(
	repo persistence.QueueRepository,
	dispatcher protocol.Dispatcher,
	clock clockwork.Clock,
	config Config,
	logger *slog.Logger,
) *Scheduler {
	limit := rate.Inf
	if config.DispatchRate > 0 {
		limit = rate.Limit(config.DispatchRate)
	}

	return &Scheduler{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(limit, max(1, int(config.DispatchRate))),
		clock:      clock,
		logger:     logger.With("component", "scheduler"),
	}
}

// ScheduleBatch claims up to size due items, dispatches them outside the claim and marks
// them processed. Items whose dispatch fails are released for a later tick.
func (s *Scheduler) ScheduleBatch(ctx context.Context, size int) (int, error) {
	items, err := s.repo.ClaimBatch(ctx, s.clock.Now().UTC(), size)
	if err != nil {
		return 0, fmt.Errorf("failed to claim queue items: %w", err)
	}

	if len(items) == 0 {
		s.logger.Debug("No queue items to dispatch")

		return 0, nil
	}

	dispatched := 0

	for i, item := range items {
		err = s.limiter.Wait(ctx)
		if err != nil {
			s.release(ctx, items[i:])

			return dispatched, err
		}

		err = s.dispatcher.Dispatch(ctx, item)
		if err != nil {
			s.logger.Error("Failed to dispatch queue item", "queue_item_id", item.ID, "lead_id", item.LeadID, "error", err)
			s.release(ctx, items[i:i+1])

			continue
		}

		err = s.repo.MarkProcessed(ctx, item.ID, s.clock.Now().UTC())
		if err != nil {
			s.logger.Error("Failed to mark queue item processed", "queue_item_id", item.ID, "lead_id", item.LeadID, "error", err)

			continue
		}

		dispatched++
	}

	s.logger.Info("Dispatched queue batch", "claimed", len(items), "dispatched", dispatched)

	return dispatched, nil
}

// ResetStuck releases claims older than timeout, left behind by crashed schedulers.
func (s *Scheduler) ResetStuck(ctx context.Context, timeout time.Duration) (int, error) {
	count, err := s.repo.ResetStuck(ctx, s.clock.Now().UTC().Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck queue items: %w", err)
	}

	if count > 0 {
		s.logger.Warn("Released stuck queue items", "count", count, "timeout", timeout)
	}

	return count, nil
}

// Start runs ScheduleBatch and ResetStuck periodically and blocks until ctx is done. It
// returns once running jobs have finished.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(every(s.config.Interval), func() {
		_, err := s.ScheduleBatch(ctx, s.config.BatchSize)
		if err != nil {
			s.logger.Error("Batch scheduling failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add batch job: %w", err)
	}

	_, err = s.cron.AddFunc(every(s.config.StuckInterval), func() {
		_, err := s.ResetStuck(ctx, s.config.StuckTimeout)
		if err != nil {
			s.logger.Error("Stuck item sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add stuck sweep job: %w", err)
	}

	s.logger.Info("Starting scheduler",
		"interval", s.config.Interval,
		"batch_size", s.config.BatchSize,
		"stuck_timeout", s.config.StuckTimeout)

	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()

	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) release(ctx context.Context, items []*models.QueueItem) {
	for _, item := range items {
		err := s.repo.Release(context.WithoutCancel(ctx), item.ID)
		if err != nil {
			s.logger.Error("Failed to release queue item", "queue_item_id", item.ID, "error", err)
		}
	}
}

func every(interval time.Duration) string {
	return "@every " + interval.String()
}
