// Package persistence defines the storage contracts of the sequence engine.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/dripflow/pkg/models"
)

// Persistence groups every repository behind one backend.
type Persistence interface {
	ExecutionRepository() ExecutionRepository
	LeadRepository() LeadRepository
	LeadStateRepository() LeadStateRepository
	ThrottleRepository() ThrottleRepository
	QueueRepository() QueueRepository
	EmailRepository() EmailRepository
	AccountRepository() AccountRepository
	TrackingRepository() TrackingRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutionRepository stores published workflow executions.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	// ActiveByCampaign returns the non-obsolete executions of a campaign, newest first.
	ActiveByCampaign(ctx context.Context, campaignID string) ([]*models.WorkflowExecution, error)
	// MarkObsolete flags every execution of workflowID except keepID as obsolete.
	MarkObsolete(ctx context.Context, workflowID, keepID string) error
}

type LeadRepository interface {
	Save(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]*models.Lead, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status models.LeadWorkflowStatus) error
	UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error
	MarkUnsubscribed(ctx context.Context, id string) error
}

// LeadStateRepository stores one LeadStepState per (lead, workflow, step).
type LeadStateRepository interface {
	// GetOrCreate atomically returns the existing state for key or inserts a CREATED one.
	GetOrCreate(ctx context.Context, key models.LeadStepKey, now time.Time) (*models.LeadStepState, error)
	Get(ctx context.Context, key models.LeadStepKey) (*models.LeadStepState, error)
	Update(ctx context.Context, state *models.LeadStepState) error
	ListByLeadWorkflow(ctx context.Context, leadID, workflowID string) ([]*models.LeadStepState, error)
}

type ThrottleRepository interface {
	// Get returns the stored status, or a zero status for an account never seen before.
	Get(ctx context.Context, account string) (*models.ThrottleStatus, error)
	Save(ctx context.Context, status *models.ThrottleStatus) error
	// RecordFailure atomically counts one failed send at at and pauses the account until
	// at+pause once the count reaches threshold. It returns the stored status.
	RecordFailure(ctx context.Context, account string, at time.Time, threshold int, pause time.Duration) (*models.ThrottleStatus, error)
}

// QueueRepository stores intake queue items. ClaimBatch is the only mutual-exclusion point
// between schedulers.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *models.QueueItem) error
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
	// ClaimBatch marks up to size claimable items as processing and returns them, oldest first.
	ClaimBatch(ctx context.Context, now time.Time, size int) ([]*models.QueueItem, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	// Release returns a claimed item to the claimable pool.
	Release(ctx context.Context, id string) error
	// ResetStuck releases claims taken before claimedBefore and reports how many it released.
	ResetStuck(ctx context.Context, claimedBefore time.Time) (int, error)
}

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) error
	Update(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	// ListByLead returns the lead's emails, oldest first.
	ListByLead(ctx context.Context, leadID string) ([]*models.Email, error)
	// CountSentSince counts SENT emails from sender with sent_at at or after since.
	CountSentSince(ctx context.Context, sender string, since time.Time) (int, error)
}

type AccountRepository interface {
	Save(ctx context.Context, account *models.ConnectedAccount) error
	GetByEmail(ctx context.Context, address string) (*models.ConnectedAccount, error)
}

// TrackingRepository is the read model of clicks and replies.
type TrackingRepository interface {
	RecordClick(ctx context.Context, click *models.Click) error
	HasClicked(ctx context.Context, leadID, emailID, url string) (bool, error)
	RecordReply(ctx context.Context, reply *models.Reply) error
	HasReplied(ctx context.Context, leadID string) (bool, error)
}
