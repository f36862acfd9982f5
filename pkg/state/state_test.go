package state_test

import (
	"testing"
	"time"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence/file"
	"github.com/dukex/dripflow/pkg/state"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*state.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	p := file.NewPersistence(t.TempDir())

	return state.NewStore(p.LeadStateRepository(), clock), clock
}

func chain(t *testing.T) *graph.Graph {
	t.Helper()

	p1, p2, p3 := "send", "wait", "check"
	g, err := graph.Build([]*models.StepNode{
		{ID: "send", Number: 1, Config: models.SendEmailConfig{Subject: "s", Body: "b", EmailAccount: "a@example.com"}},
		{ID: "wait", Number: 2, ParentID: &p1, Config: models.WaitConfig{Delay: 1, Unit: models.WaitUnitDays}},
		{ID: "check", Number: 3, ParentID: &p2, Config: models.CheckLinkClickedConfig{LinkURL: "https://example.com"}},
		{ID: "follow", Number: 4, ParentID: &p3, BranchCondition: ptr(models.BranchNo), Config: models.SendEmailConfig{Subject: "s", Body: "b", EmailAccount: "a@example.com"}},
	})
	require.NoError(t, err)

	return g
}

func ptr[T any](v T) *T {
	return &v
}

func TestStore_GetOrCreateIsIdempotent(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	first, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCreated, first.Status)

	require.NoError(t, store.Complete(ctx, first, nil, "email-1"))

	second, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StepStatusCompleted, second.Status)
	assert.Equal(t, "email-1", second.ProducedEmailRef)
}

func TestStore_IsComplete(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	complete, err := store.IsComplete(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.False(t, complete)

	s, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, s))

	complete, err = store.IsComplete(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.False(t, complete)

	require.NoError(t, store.Complete(ctx, s, nil, ""))

	complete, err = store.IsComplete(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestStore_MarkRunningStampsStartOnce(t *testing.T) {
	store, clock := newStore(t)
	ctx := t.Context()

	s, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "wait")
	require.NoError(t, err)

	require.NoError(t, store.MarkRunning(ctx, s))
	started := *s.StartedAt

	clock.Advance(time.Hour)

	reloaded, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "wait")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, reloaded))

	assert.Equal(t, models.StepStatusRunning, reloaded.Status)
	assert.True(t, started.Equal(*reloaded.StartedAt))
}

func TestStore_MarkRunningRejectsCompleted(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	s, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, s, nil, ""))

	err = store.MarkRunning(ctx, s)
	assert.ErrorIs(t, err, state.ErrInvalidTransition)
}

func TestStore_FindNearestAncestorEmail(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()
	g := chain(t)

	ref, err := store.FindNearestAncestorEmail(ctx, g, "check", "lead-1", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, ref)

	send, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, send, nil, "email-1"))

	wait, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "wait")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, wait, nil, ""))

	ref, err = store.FindNearestAncestorEmail(ctx, g, "check", "lead-1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "email-1", ref)

	ref, err = store.FindNearestAncestorEmail(ctx, g, "send", "lead-1", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, ref, "a step is not its own ancestor")

	ref, err = store.FindNearestAncestorEmail(ctx, g, "check", "lead-2", "wf-1")
	require.NoError(t, err)
	assert.Empty(t, ref)

	_, err = store.FindNearestAncestorEmail(ctx, g, "ghost", "lead-1", "wf-1")
	assert.ErrorIs(t, err, graph.ErrStepNotFound)
}

func TestStore_AllCompleteFor(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	done, err := store.AllCompleteFor(ctx, "lead-1", "wf-1")
	require.NoError(t, err)
	assert.True(t, done)

	send, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, send, nil, "email-1"))

	wait, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "wait")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, wait))

	done, err = store.AllCompleteFor(ctx, "lead-1", "wf-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.Skip(ctx, wait))

	done, err = store.AllCompleteFor(ctx, "lead-1", "wf-1")
	require.NoError(t, err)
	assert.True(t, done)

	check, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "check")
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, check))

	done, err = store.AllCompleteFor(ctx, "lead-1", "wf-1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStore_RecordRetryRestartsCountOnNewKind(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	s, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, s))

	for range 3 {
		require.NoError(t, store.RecordRetry(ctx, s, models.RetryWindow))
	}

	require.NoError(t, store.RecordRetry(ctx, s, models.RetryQuota))

	loaded, err := store.Get(ctx, "lead-1", "wf-1", "send")
	require.NoError(t, err)
	assert.Equal(t, models.RetryQuota, loaded.RetryKind)
	assert.Equal(t, 1, loaded.RetriesOf(models.RetryQuota))
	assert.Equal(t, 0, loaded.RetriesOf(models.RetryWindow))
}

func TestStore_RecordRetryAndBranch(t *testing.T) {
	store, _ := newStore(t)
	ctx := t.Context()

	s, err := store.GetOrCreate(ctx, "lead-1", "wf-1", "check")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, s))
	require.NoError(t, store.RecordRetry(ctx, s, models.RetryWindow))
	require.NoError(t, store.RecordRetry(ctx, s, models.RetryWindow))

	yes := models.BranchYes
	require.NoError(t, store.Complete(ctx, s, &yes, ""))

	loaded, err := store.Get(ctx, "lead-1", "wf-1", "check")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Attempts)
	assert.Equal(t, models.BranchYes, *loaded.BranchResult)
	assert.NotNil(t, loaded.CompletedAt)

	missing, err := store.Get(ctx, "lead-1", "wf-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
