package queue_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukex/dripflow/pkg/mocks"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/persistence/file"
	"github.com/dukex/dripflow/pkg/queue"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	items []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, item *models.QueueItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.items = append(d.items, item.ID)

	return nil
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.items...)
}

func setup(t *testing.T) (persistence.QueueRepository, *queue.Queue, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	repo := file.NewPersistence(t.TempDir()).QueueRepository()

	return repo, queue.NewQueue(repo, clock), clock
}

func TestQueue_EnqueueSnapshotsSettings(t *testing.T) {
	repo, q, clock := setup(t)

	settings := models.DefaultWorkflowSettings()
	settings.MaxEmailsPerDay = 10

	item, err := q.Enqueue(t.Context(), "lead-1", "exec-1", settings)
	require.NoError(t, err)

	settings.MaxEmailsPerDay = 99

	stored, err := repo.GetByID(t.Context(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "lead-1", stored.LeadID)
	assert.Equal(t, "exec-1", stored.ExecutionID)
	assert.Equal(t, 10, stored.Settings.MaxEmailsPerDay)
	assert.True(t, stored.RunAfter.Equal(clock.Now()))
	assert.False(t, stored.Processed)
}

func TestQueue_DeferRunsLater(t *testing.T) {
	repo, q, clock := setup(t)

	item, err := q.Enqueue(t.Context(), "lead-1", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	deferred, err := q.Defer(t.Context(), item, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, item.ID, deferred.ID)
	assert.True(t, deferred.RunAfter.Equal(clock.Now().Add(time.Hour)))

	claimed, err := repo.ClaimBatch(t.Context(), clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, item.ID, claimed[0].ID)

	clock.Advance(time.Hour)

	claimed, err = repo.ClaimBatch(t.Context(), clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, deferred.ID, claimed[0].ID)
}

func TestScheduler_ScheduleBatchDispatchesDueItems(t *testing.T) {
	repo, q, clock := setup(t)

	due, err := q.Enqueue(t.Context(), "lead-1", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	later, err := q.Defer(t.Context(), due, time.Hour)
	require.NoError(t, err)

	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(item *models.QueueItem) bool {
		return item.ID == due.ID
	})).Return(nil).Once()

	scheduler := queue.NewScheduler(repo, dispatcher, clock, queue.DefaultConfig(), slog.Default())

	count, err := scheduler.ScheduleBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	dispatcher.AssertExpectations(t)

	stored, err := repo.GetByID(t.Context(), due.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.False(t, stored.Processing)
	require.NotNil(t, stored.ProcessedAt)

	pending, err := repo.GetByID(t.Context(), later.ID)
	require.NoError(t, err)
	assert.False(t, pending.Processed)
	assert.False(t, pending.Processing)

	count, err = scheduler.ScheduleBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScheduler_DispatchFailureReleasesItem(t *testing.T) {
	repo, q, clock := setup(t)

	item, err := q.Enqueue(t.Context(), "lead-1", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	scheduler := queue.NewScheduler(repo, dispatcher, clock, queue.DefaultConfig(), slog.Default())

	count, err := scheduler.ScheduleBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, count)

	stored, err := repo.GetByID(t.Context(), item.ID)
	require.NoError(t, err)
	assert.False(t, stored.Processed)
	assert.False(t, stored.Processing)

	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil).Once()

	count, err = scheduler.ScheduleBatch(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	dispatcher.AssertExpectations(t)
}

func TestScheduler_ResetStuckReleasesOldClaims(t *testing.T) {
	repo, q, clock := setup(t)

	item, err := q.Enqueue(t.Context(), "lead-1", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	claimed, err := repo.ClaimBatch(t.Context(), clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	scheduler := queue.NewScheduler(repo, &recordingDispatcher{}, clock, queue.DefaultConfig(), slog.Default())

	count, err := scheduler.ResetStuck(t.Context(), queue.DefaultStuckTimeout)
	require.NoError(t, err)
	assert.Zero(t, count)

	clock.Advance(queue.DefaultStuckTimeout + time.Minute)

	count, err = scheduler.ResetStuck(t.Context(), queue.DefaultStuckTimeout)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := repo.GetByID(t.Context(), item.ID)
	require.NoError(t, err)
	assert.False(t, stored.Processing)
}

func TestScheduler_ConcurrentBatchesNeverDoubleDispatch(t *testing.T) {
	repo, q, clock := setup(t)

	const total = 20

	for range total {
		_, err := q.Enqueue(t.Context(), "lead", "exec-1", models.DefaultWorkflowSettings())
		require.NoError(t, err)
	}

	dispatcher := &recordingDispatcher{}

	var wg sync.WaitGroup

	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			scheduler := queue.NewScheduler(repo, dispatcher, clock, queue.DefaultConfig(), slog.Default())
			for range 3 {
				_, err := scheduler.ScheduleBatch(context.Background(), 3)
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	dispatched := dispatcher.dispatched()
	assert.Len(t, dispatched, total)

	seen := map[string]bool{}
	for _, id := range dispatched {
		assert.False(t, seen[id], "item %s dispatched twice", id)
		seen[id] = true
	}
}

func TestScheduler_StartDispatchesPeriodically(t *testing.T) {
	repo, q, clock := setup(t)

	_, err := q.Enqueue(t.Context(), "lead-1", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	config := queue.DefaultConfig()
	config.Interval = time.Second
	config.StuckInterval = time.Second

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	scheduler := queue.NewScheduler(repo, dispatcher, clock, config, slog.Default())

	stopped := make(chan error, 1)

	go func() {
		stopped <- scheduler.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	_, err = q.Enqueue(t.Context(), "lead-2", "exec-1", models.DefaultWorkflowSettings())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) == 2
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case err := <-stopped:
		t.Fatalf("scheduler returned before its context was cancelled: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

type failingMarkRepository struct {
	persistence.QueueRepository

	failID string
}

func (r *failingMarkRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	if id == r.failID {
		return errors.New("connection reset")
	}

	return r.QueueRepository.MarkProcessed(ctx, id, now)
}

func TestScheduler_MarkProcessedFailureDoesNotStrandBatch(t *testing.T) {
	repo, q, clock := setup(t)
	ctx := t.Context()

	var ids []string

	for _, lead := range []string{"lead-1", "lead-2", "lead-3"} {
		item, err := q.Enqueue(ctx, lead, "exec-1", models.DefaultWorkflowSettings())
		require.NoError(t, err)

		ids = append(ids, item.ID)

		clock.Advance(time.Second)
	}

	failing := &failingMarkRepository{QueueRepository: repo, failID: ids[0]}
	dispatcher := &recordingDispatcher{}
	scheduler := queue.NewScheduler(failing, dispatcher, clock, queue.DefaultConfig(), slog.Default())

	dispatched, err := scheduler.ScheduleBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, dispatched)
	assert.ElementsMatch(t, ids, dispatcher.dispatched())

	for _, id := range ids[1:] {
		item, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, item.Processed, "item %s should be processed", id)
	}
}

func TestScheduler_LogsComponentUnderBinaryModule(t *testing.T) {
	repo, _, clock := setup(t)

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("module", "dripflow-scheduler")

	scheduler := queue.NewScheduler(repo, &recordingDispatcher{}, clock, queue.DefaultConfig(), logger)

	_, err := scheduler.ScheduleBatch(t.Context(), 10)
	require.NoError(t, err)

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "module="))
	assert.Contains(t, line, "component=scheduler")
}
