package file

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
)

// ExecutionRepository handles workflow execution file operations.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	execution.ID = newID(execution.ID)

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	return r.store.write(executionsDir, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var execution models.WorkflowExecution

	found, err := r.store.read(executionsDir, id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ActiveByCampaign(_ context.Context, campaignID string) ([]*models.WorkflowExecution, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.WorkflowExecution](r.store, executionsDir)
	if err != nil {
		return nil, err
	}

	var active []*models.WorkflowExecution

	for _, execution := range all {
		if execution.CampaignID == campaignID && !execution.Obsolete {
			active = append(active, execution)
		}
	}

	slices.SortFunc(active, func(a, b *models.WorkflowExecution) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return active, nil
}

func (r *ExecutionRepository) MarkObsolete(_ context.Context, workflowID, keepID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.WorkflowExecution](r.store, executionsDir)
	if err != nil {
		return err
	}

	for _, execution := range all {
		if execution.WorkflowID != workflowID || execution.ID == keepID || execution.Obsolete {
			continue
		}

		execution.Obsolete = true

		err := r.store.write(executionsDir, execution.ID, execution)
		if err != nil {
			return err
		}
	}

	return nil
}

// LeadRepository handles lead file operations.
type LeadRepository struct {
	store *store
}

func (r *LeadRepository) Save(_ context.Context, lead *models.Lead) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lead.ID = newID(lead.ID)

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	lead.UpdatedAt = now

	return r.store.write(leadsDir, lead.ID, lead)
}

func (r *LeadRepository) GetByID(_ context.Context, id string) (*models.Lead, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *LeadRepository) get(op, id string) (*models.Lead, error) {
	var lead models.Lead

	found, err := r.store.read(leadsDir, id, &lead)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError(op, "lead", id, persistence.ErrLeadNotFound)
	}

	return &lead, nil
}

func (r *LeadRepository) ListByCampaign(_ context.Context, campaignID string) ([]*models.Lead, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.Lead](r.store, leadsDir)
	if err != nil {
		return nil, err
	}

	var leads []*models.Lead

	for _, lead := range all {
		if lead.CampaignID == campaignID {
			leads = append(leads, lead)
		}
	}

	slices.SortFunc(leads, func(a, b *models.Lead) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return leads, nil
}

func (r *LeadRepository) UpdateWorkflowStatus(_ context.Context, id string, status models.LeadWorkflowStatus) error {
	return r.mutate("UpdateWorkflowStatus", id, func(lead *models.Lead) { lead.WorkflowStatus = status })
}

func (r *LeadRepository) UpdateStatus(_ context.Context, id string, status models.LeadStatus) error {
	return r.mutate("UpdateStatus", id, func(lead *models.Lead) { lead.Status = status })
}

func (r *LeadRepository) MarkUnsubscribed(_ context.Context, id string) error {
	return r.mutate("MarkUnsubscribed", id, func(lead *models.Lead) { lead.Unsubscribed = true })
}

func (r *LeadRepository) mutate(op, id string, apply func(*models.Lead)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lead, err := r.get(op, id)
	if err != nil {
		return err
	}

	apply(lead)
	lead.UpdatedAt = time.Now().UTC()

	return r.store.write(leadsDir, lead.ID, lead)
}

// LeadStateRepository handles lead step state file operations.
type LeadStateRepository struct {
	store *store
}

func stateFileID(key models.LeadStepKey) (string, error) {
	for _, part := range []string{key.LeadID, key.WorkflowID, key.StepID} {
		err := validateID(part)
		if err != nil {
			return "", err
		}
	}

	return key.LeadID + "__" + key.WorkflowID + "__" + key.StepID, nil
}

func (r *LeadStateRepository) GetOrCreate(_ context.Context, key models.LeadStepKey, now time.Time) (*models.LeadStepState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	state, err := r.get(key)
	if err == nil {
		return state, nil
	}

	if !persistence.IsNotFound(err) {
		return nil, err
	}

	state = &models.LeadStepState{
		ID:         newID(""),
		LeadID:     key.LeadID,
		WorkflowID: key.WorkflowID,
		StepID:     key.StepID,
		Status:     models.StepStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	fileID, err := stateFileID(key)
	if err != nil {
		return nil, persistence.NewStateError("GetOrCreate", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	err = r.store.write(leadStatesDir, fileID, state)
	if err != nil {
		return nil, persistence.NewStateError("GetOrCreate", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	return state, nil
}

func (r *LeadStateRepository) Get(_ context.Context, key models.LeadStepKey) (*models.LeadStepState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.get(key)
}

func (r *LeadStateRepository) get(key models.LeadStepKey) (*models.LeadStepState, error) {
	fileID, err := stateFileID(key)
	if err != nil {
		return nil, persistence.NewStateError("Get", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	var state models.LeadStepState

	found, err := r.store.read(leadStatesDir, fileID, &state)
	if err != nil {
		return nil, persistence.NewStateError("Get", key.LeadID, key.WorkflowID, key.StepID, err)
	}

	if !found {
		return nil, persistence.NewStateError("Get", key.LeadID, key.WorkflowID, key.StepID,
			persistence.ErrLeadStepStateNotFound)
	}

	return &state, nil
}

func (r *LeadStateRepository) Update(_ context.Context, state *models.LeadStepState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.get(state.Key())
	if err != nil {
		return err
	}

	state.UpdatedAt = time.Now().UTC()

	fileID, err := stateFileID(state.Key())
	if err != nil {
		return err
	}

	return r.store.write(leadStatesDir, fileID, state)
}

func (r *LeadStateRepository) ListByLeadWorkflow(_ context.Context, leadID, workflowID string) ([]*models.LeadStepState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.LeadStepState](r.store, leadStatesDir)
	if err != nil {
		return nil, err
	}

	var states []*models.LeadStepState

	for _, state := range all {
		if state.LeadID == leadID && state.WorkflowID == workflowID {
			states = append(states, state)
		}
	}

	slices.SortFunc(states, func(a, b *models.LeadStepState) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.StepID, b.StepID))
	})

	return states, nil
}

// ThrottleRepository handles throttle status file operations.
type ThrottleRepository struct {
	store *store
}

func (r *ThrottleRepository) Get(_ context.Context, account string) (*models.ThrottleStatus, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	status := models.ThrottleStatus{Account: account}

	_, err := r.store.read(throttlesDir, account, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

func (r *ThrottleRepository) Save(_ context.Context, status *models.ThrottleStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(throttlesDir, status.Account, status)
}

func (r *ThrottleRepository) RecordFailure(
	_ context.Context,
	account string,
	at time.Time,
	threshold int,
	pause time.Duration,
) (*models.ThrottleStatus, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	status := models.ThrottleStatus{Account: account}

	_, err := r.store.read(throttlesDir, account, &status)
	if err != nil {
		return nil, err
	}

	status.RecordFailure(at, threshold, pause)

	err = r.store.write(throttlesDir, account, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// QueueRepository handles intake queue file operations. The shared store mutex makes
// ClaimBatch exclusive within one process.
type QueueRepository struct {
	store *store
}

func (r *QueueRepository) Enqueue(_ context.Context, item *models.QueueItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item.ID = newID(item.ID)

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if item.RunAfter.IsZero() {
		item.RunAfter = item.CreatedAt
	}

	return r.store.write(queueDir, item.ID, item)
}

func (r *QueueRepository) GetByID(_ context.Context, id string) (*models.QueueItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *QueueRepository) get(op, id string) (*models.QueueItem, error) {
	var item models.QueueItem

	found, err := r.store.read(queueDir, id, &item)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError(op, "queue item", id, persistence.ErrQueueItemNotFound)
	}

	return &item, nil
}

func (r *QueueRepository) ClaimBatch(_ context.Context, now time.Time, size int) ([]*models.QueueItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.QueueItem](r.store, queueDir)
	if err != nil {
		return nil, err
	}

	var claimable []*models.QueueItem

	for _, item := range all {
		if item.Claimable(now) {
			claimable = append(claimable, item)
		}
	}

	slices.SortFunc(claimable, func(a, b *models.QueueItem) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	if len(claimable) > size {
		claimable = claimable[:size]
	}

	for _, item := range claimable {
		item.Processing = true
		item.ClaimedAt = &now

		err := r.store.write(queueDir, item.ID, item)
		if err != nil {
			return nil, err
		}
	}

	return claimable, nil
}

func (r *QueueRepository) MarkProcessed(_ context.Context, id string, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, err := r.get("MarkProcessed", id)
	if err != nil {
		return err
	}

	item.Processed = true
	item.Processing = false
	item.ProcessedAt = &now

	return r.store.write(queueDir, item.ID, item)
}

func (r *QueueRepository) Release(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, err := r.get("Release", id)
	if err != nil {
		return err
	}

	if item.Processed {
		return persistence.NewEntityError("Release", "queue item", id, persistence.ErrQueueItemNotFound)
	}

	item.Processing = false
	item.ClaimedAt = nil

	return r.store.write(queueDir, item.ID, item)
}

func (r *QueueRepository) ResetStuck(_ context.Context, claimedBefore time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.QueueItem](r.store, queueDir)
	if err != nil {
		return 0, err
	}

	reset := 0

	for _, item := range all {
		if !item.Processing || item.Processed || item.ClaimedAt == nil || !item.ClaimedAt.Before(claimedBefore) {
			continue
		}

		item.Processing = false
		item.ClaimedAt = nil

		err := r.store.write(queueDir, item.ID, item)
		if err != nil {
			return reset, err
		}

		reset++
	}

	return reset, nil
}

// EmailRepository handles email record file operations.
type EmailRepository struct {
	store *store
}

func (r *EmailRepository) Create(_ context.Context, email *models.Email) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	email.ID = newID(email.ID)

	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}

	return r.store.write(emailsDir, email.ID, email)
}

func (r *EmailRepository) Update(_ context.Context, email *models.Email) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var existing models.Email

	found, err := r.store.read(emailsDir, email.ID, &existing)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewEntityError("Update", "email", email.ID, persistence.ErrEmailNotFound)
	}

	return r.store.write(emailsDir, email.ID, email)
}

func (r *EmailRepository) GetByID(_ context.Context, id string) (*models.Email, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var email models.Email

	found, err := r.store.read(emailsDir, id, &email)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("GetByID", "email", id, persistence.ErrEmailNotFound)
	}

	return &email, nil
}

func (r *EmailRepository) ListByLead(_ context.Context, leadID string) ([]*models.Email, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.Email](r.store, emailsDir)
	if err != nil {
		return nil, err
	}

	emails := make([]*models.Email, 0, len(all))

	for _, email := range all {
		if email.LeadID == leadID {
			emails = append(emails, email)
		}
	}

	slices.SortFunc(emails, func(a, b *models.Email) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return emails, nil
}

func (r *EmailRepository) CountSentSince(_ context.Context, sender string, since time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all, err := readAll[models.Email](r.store, emailsDir)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, email := range all {
		if email.Sender == sender && email.Status == models.EmailStatusSent &&
			email.SentAt != nil && !email.SentAt.Before(since) {
			count++
		}
	}

	return count, nil
}

// AccountRepository handles connected account file operations, keyed by address.
type AccountRepository struct {
	store *store
}

func (r *AccountRepository) Save(_ context.Context, account *models.ConnectedAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account.ID = newID(account.ID)

	return r.store.write(accountsDir, account.EmailAddress, account)
}

func (r *AccountRepository) GetByEmail(_ context.Context, address string) (*models.ConnectedAccount, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var account models.ConnectedAccount

	found, err := r.store.read(accountsDir, address, &account)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("GetByEmail", "account", address, persistence.ErrAccountNotFound)
	}

	return &account, nil
}

// TrackingRepository handles click and reply file operations.
type TrackingRepository struct {
	store *store
}

func (r *TrackingRepository) RecordClick(_ context.Context, click *models.Click) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	click.ID = newID(click.ID)

	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now().UTC()
	}

	return r.store.write(clicksDir, click.ID, click)
}

func (r *TrackingRepository) HasClicked(_ context.Context, leadID, emailID, url string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clicks, err := readAll[models.Click](r.store, clicksDir)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(clicks, func(c *models.Click) bool {
		return c.LeadID == leadID && c.EmailID == emailID && c.URL == url
	}), nil
}

func (r *TrackingRepository) RecordReply(_ context.Context, reply *models.Reply) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	reply.ID = newID(reply.ID)

	if reply.ReceivedAt.IsZero() {
		reply.ReceivedAt = time.Now().UTC()
	}

	return r.store.write(repliesDir, reply.ID, reply)
}

func (r *TrackingRepository) HasReplied(_ context.Context, leadID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	replies, err := readAll[models.Reply](r.store, repliesDir)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(replies, func(reply *models.Reply) bool {
		return reply.LeadID == leadID
	}), nil
}
