package file

import (
	"sync"
	"testing"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	fp := p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	p = NewPersistence("file:///tmp/test")
	fp = p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.Error(t, NewPersistence("/definitely/not/here").HealthCheck(t.Context()))
	assert.NoError(t, NewPersistence(t.TempDir()).Close(t.Context()))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, validateID("lead-1"))
	assert.NoError(t, validateID("sales@example.com"))
	assert.Error(t, validateID(""))
	assert.Error(t, validateID("../etc"))
	assert.Error(t, validateID("a/b"))
	assert.Error(t, validateID(`a\b`))
}

func TestExecutionRepository_RoundTripsTypedSteps(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	repo := p.ExecutionRepository()

	parent := "s1"
	yes := models.BranchYes
	execution := &models.WorkflowExecution{
		WorkflowID: "wf-1",
		CampaignID: "camp-1",
		Settings:   models.DefaultWorkflowSettings(),
		Steps: []*models.StepNode{
			{ID: "s1", Number: 1, Config: models.CheckLinkClickedConfig{LinkURL: "https://example.com"}},
			{ID: "s2", Number: 2, ParentID: &parent, BranchCondition: &yes, Config: models.SendEmailConfig{Subject: "s", Body: "b", EmailAccount: "a@example.com"}},
		},
	}
	require.NoError(t, repo.Save(ctx, execution))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, models.CheckLinkClickedConfig{LinkURL: "https://example.com"}, loaded.Steps[0].Config)
	assert.Equal(t, models.BranchYes, *loaded.Steps[1].BranchCondition)

	newer := &models.WorkflowExecution{WorkflowID: "wf-1", CampaignID: "camp-1", CreatedAt: execution.CreatedAt.Add(time.Minute)}
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.MarkObsolete(ctx, "wf-1", newer.ID))

	active, err := repo.ActiveByCampaign(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, newer.ID, active[0].ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestLeadRepository_Mutations(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	repo := p.LeadRepository()

	lead := &models.Lead{ID: "lead-1", CampaignID: "camp-1", Email: "ada@example.com"}
	require.NoError(t, repo.Save(ctx, lead))
	assert.Equal(t, models.LeadStatusNew, lead.Status)

	require.NoError(t, repo.UpdateWorkflowStatus(ctx, "lead-1", models.LeadWorkflowCompleted))
	require.NoError(t, repo.UpdateStatus(ctx, "lead-1", models.LeadStatusContacted))
	require.NoError(t, repo.MarkUnsubscribed(ctx, "lead-1"))

	loaded, err := repo.GetByID(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadWorkflowCompleted, loaded.WorkflowStatus)
	assert.Equal(t, models.LeadStatusContacted, loaded.Status)
	assert.True(t, loaded.Unsubscribed)

	err = repo.MarkUnsubscribed(ctx, "ghost")
	assert.True(t, persistence.IsLeadNotFound(err))

	leads, err := repo.ListByCampaign(ctx, "camp-1")
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestLeadStateRepository_GetOrCreateIsAtomic(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	repo := p.LeadStateRepository()
	key := models.LeadStepKey{LeadID: "lead-1", WorkflowID: "wf-1", StepID: "s1"}
	now := time.Now().UTC()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			state, err := repo.GetOrCreate(ctx, key, now)
			if assert.NoError(t, err) {
				mu.Lock()
				ids[state.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Len(t, ids, 1)

	states, err := repo.ListByLeadWorkflow(ctx, "lead-1", "wf-1")
	require.NoError(t, err)
	require.Len(t, states, 1)

	states[0].Status = models.StepStatusCompleted
	states[0].ProducedEmailRef = "email-1"
	require.NoError(t, repo.Update(ctx, states[0]))

	state, err := repo.GetOrCreate(ctx, key, now)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, state.Status)
	assert.Equal(t, "email-1", state.ProducedEmailRef)

	err = repo.Update(ctx, &models.LeadStepState{LeadID: "lead-2", WorkflowID: "wf-1", StepID: "s1"})
	assert.ErrorIs(t, err, persistence.ErrLeadStepStateNotFound)
}

func TestThrottleRepository_UnknownAccountIsOpen(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	status, err := p.ThrottleRepository().Get(ctx, "sales@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sales@example.com", status.Account)
	assert.Equal(t, 0, status.ConsecutiveFailures)

	status.ConsecutiveFailures = 2
	require.NoError(t, p.ThrottleRepository().Save(ctx, status))

	status, err = p.ThrottleRepository().Get(ctx, "sales@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, status.ConsecutiveFailures)
}

func TestQueueRepository_Claims(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	repo := p.QueueRepository()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, runAfter := range []time.Time{now, now.Add(-time.Minute), now.Add(time.Hour)} {
		require.NoError(t, repo.Enqueue(ctx, &models.QueueItem{
			LeadID:      "lead",
			ExecutionID: "exec",
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
			RunAfter:    runAfter,
		}))
	}

	claimed, err := repo.ClaimBatch(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	first := claimed[0]
	assert.True(t, first.CreatedAt.Equal(now))

	claimed, err = repo.ClaimBatch(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.NotEqual(t, first.ID, claimed[0].ID)

	claimed, err = repo.ClaimBatch(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	reset, err := repo.ResetStuck(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	require.NoError(t, repo.MarkProcessed(ctx, first.ID, now))

	item, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, item.Processed)
	assert.ErrorIs(t, repo.Release(ctx, first.ID), persistence.ErrQueueItemNotFound)
}

func TestQueueRepository_ConcurrentClaimsNeverOverlap(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	repo := p.QueueRepository()
	now := time.Now().UTC()

	for range 25 {
		require.NoError(t, repo.Enqueue(ctx, &models.QueueItem{LeadID: "lead", ExecutionID: "exec", CreatedAt: now, RunAfter: now}))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[string]int{}
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				items, err := repo.ClaimBatch(ctx, now, 2)
				if !assert.NoError(t, err) || len(items) == 0 {
					return
				}

				mu.Lock()
				for _, item := range items {
					claimed[item.ID]++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Len(t, claimed, 25)

	for _, count := range claimed {
		assert.Equal(t, 1, count)
	}
}

func TestEmailAndTracking(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sentAt := since.Add(time.Hour)
	before := since.Add(-time.Hour)

	emails := p.EmailRepository()
	require.NoError(t, emails.Create(ctx, &models.Email{Sender: "a@example.com", Status: models.EmailStatusSent, SentAt: &sentAt}))
	require.NoError(t, emails.Create(ctx, &models.Email{Sender: "a@example.com", Status: models.EmailStatusSent, SentAt: &before}))
	require.NoError(t, emails.Create(ctx, &models.Email{Sender: "a@example.com", Status: models.EmailStatusPending}))

	count, err := emails.CountSentSince(ctx, "a@example.com", since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = emails.Update(ctx, &models.Email{ID: "ghost"})
	assert.ErrorIs(t, err, persistence.ErrEmailNotFound)

	tracking := p.TrackingRepository()
	require.NoError(t, tracking.RecordClick(ctx, &models.Click{LeadID: "l1", EmailID: "e1", URL: "https://example.com"}))

	clicked, err := tracking.HasClicked(ctx, "l1", "e1", "https://example.com")
	require.NoError(t, err)
	assert.True(t, clicked)

	clicked, err = tracking.HasClicked(ctx, "l1", "e2", "https://example.com")
	require.NoError(t, err)
	assert.False(t, clicked)

	replied, err := tracking.HasReplied(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, replied)

	require.NoError(t, tracking.RecordReply(ctx, &models.Reply{LeadID: "l1"}))

	replied, err = tracking.HasReplied(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, replied)

	accounts := p.AccountRepository()
	require.NoError(t, accounts.Save(ctx, &models.ConnectedAccount{EmailAddress: "a@example.com", Provider: models.ProviderGmail, Active: true}))

	account, err := accounts.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGmail, account.Provider)
}
