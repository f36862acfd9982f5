// Package state tracks each lead's progress through the steps of a workflow.
package state

import (
	"context"
	"errors"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

var ErrInvalidTransition = errors.New("invalid step state transition")

// Store is the per-lead state service used by the runner and the evaluators.
type Store struct {
	repo  persistence.LeadStateRepository
	clock clockwork.Clock
}

func NewStore(repo persistence.LeadStateRepository, clock clockwork.Clock) *Store {
	return &Store{repo: repo, clock: clock}
}

// GetOrCreate returns the state for (lead, workflow, step), creating it in CREATED on first use.
func (s *Store) GetOrCreate(ctx context.Context, leadID, workflowID, stepID string) (*models.LeadStepState, error) {
	key := models.LeadStepKey{LeadID: leadID, WorkflowID: workflowID, StepID: stepID}

	return s.repo.GetOrCreate(ctx, key, s.clock.Now().UTC())
}

// Get returns the state, or nil when the step has never been evaluated for the lead.
func (s *Store) Get(ctx context.Context, leadID, workflowID, stepID string) (*models.LeadStepState, error) {
	state, err := s.repo.Get(ctx, models.LeadStepKey{LeadID: leadID, WorkflowID: workflowID, StepID: stepID})
	if err != nil {
		if errors.Is(err, persistence.ErrLeadStepStateNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return state, nil
}

func (s *Store) IsComplete(ctx context.Context, leadID, workflowID, stepID string) (bool, error) {
	state, err := s.Get(ctx, leadID, workflowID, stepID)
	if err != nil {
		return false, err
	}

	return state != nil && state.Status == models.StepStatusCompleted, nil
}

// FindNearestAncestorEmail walks up from the parent of stepID and returns the first
// produced email reference, or "" when no ancestor sent an email.
func (s *Store) FindNearestAncestorEmail(ctx context.Context, g *graph.Graph, stepID, leadID, workflowID string) (string, error) {
	_, err := g.Resolve(stepID)
	if err != nil {
		return "", err
	}

	for ancestor := g.Parent(stepID); ancestor != nil; ancestor = g.Parent(ancestor.ID) {
		state, err := s.Get(ctx, leadID, workflowID, ancestor.ID)
		if err != nil {
			return "", err
		}

		if state != nil && state.ProducedEmailRef != "" {
			return state.ProducedEmailRef, nil
		}
	}

	return "", nil
}

// AllCompleteFor reports whether every recorded step state of the lead is COMPLETED or SKIPPED.
func (s *Store) AllCompleteFor(ctx context.Context, leadID, workflowID string) (bool, error) {
	states, err := s.repo.ListByLeadWorkflow(ctx, leadID, workflowID)
	if err != nil {
		return false, err
	}

	for _, state := range states {
		if state.Status != models.StepStatusCompleted && state.Status != models.StepStatusSkipped {
			return false, nil
		}
	}

	return true, nil
}

// MarkRunning moves the state to RUNNING and stamps started_at on the first evaluation.
// A state already RUNNING is left untouched.
func (s *Store) MarkRunning(ctx context.Context, state *models.LeadStepState) error {
	switch state.Status {
	case models.StepStatusRunning:
		return nil
	case models.StepStatusCompleted:
		return persistence.NewStateError("MarkRunning", state.LeadID, state.WorkflowID, state.StepID, ErrInvalidTransition)
	}

	state.Status = models.StepStatusRunning

	if state.StartedAt == nil {
		now := s.clock.Now().UTC()
		state.StartedAt = &now
	}

	return s.repo.Update(ctx, state)
}

// Complete finishes the step. branch is recorded for branching kinds, emailRef for steps that sent an email.
func (s *Store) Complete(ctx context.Context, state *models.LeadStepState, branch *models.BranchCondition, emailRef string) error {
	state.BranchResult = branch

	if emailRef != "" {
		state.ProducedEmailRef = emailRef
	}

	return s.finish(ctx, state, models.StepStatusCompleted)
}

func (s *Store) Fail(ctx context.Context, state *models.LeadStepState) error {
	return s.finish(ctx, state, models.StepStatusFailed)
}

func (s *Store) Skip(ctx context.Context, state *models.LeadStepState) error {
	return s.finish(ctx, state, models.StepStatusSkipped)
}

// RecordRetry counts a deferred evaluation of kind. The step stays RUNNING. A kind different
// from the previous deferral restarts the count.
func (s *Store) RecordRetry(ctx context.Context, state *models.LeadStepState, kind models.RetryKind) error {
	if state.RetryKind != kind {
		state.RetryKind = kind
		state.Attempts = 0
	}

	state.Attempts++

	return s.repo.Update(ctx, state)
}

func (s *Store) finish(ctx context.Context, state *models.LeadStepState, status models.StepStatus) error {
	now := s.clock.Now().UTC()
	state.Status = status
	state.CompletedAt = &now

	if state.StartedAt == nil {
		state.StartedAt = &now
	}

	return s.repo.Update(ctx, state)
}
