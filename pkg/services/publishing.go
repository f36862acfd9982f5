package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/queue"
)

// Publishing publishes workflow executions and enrolls leads into them.
type Publishing struct {
	persistence persistence.Persistence
	queue       *queue.Queue
	logger      *slog.Logger
}

// NewPublishing creates a new publishing service.
func NewPublishing(persistence persistence.Persistence, q *queue.Queue, logger *slog.Logger) *Publishing {
	return &Publishing{
		persistence: persistence,
		queue:       q,
		logger:      logger.With("component", "publishing"),
	}
}

// Publish stores execution as the active execution of its workflow, marking earlier ones
// obsolete. With start=all every lead of the campaign is enrolled; the count is returned.
func (p *Publishing) Publish(ctx context.Context, execution *models.WorkflowExecution) (int, error) {
	err := validateForPublishing(execution)
	if err != nil {
		return 0, err
	}

	err = p.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return 0, fmt.Errorf("failed to save execution: %w", err)
	}

	err = p.persistence.ExecutionRepository().MarkObsolete(ctx, execution.WorkflowID, execution.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to retire previous executions: %w", err)
	}

	p.logger.Info("Workflow published",
		"workflow_id", execution.WorkflowID,
		"execution_id", execution.ID,
		"campaign_id", execution.CampaignID,
		"start", execution.Settings.Start)

	if execution.Settings.Start != models.StartAllLeads {
		return 0, nil
	}

	return p.EnrollExecution(ctx, execution.ID)
}

// EnrollExecution queues every subscribed lead of the execution's campaign.
func (p *Publishing) EnrollExecution(ctx context.Context, executionID string) (int, error) {
	execution, err := p.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return 0, fmt.Errorf("failed to get execution: %w", err)
	}

	if execution.Obsolete {
		return 0, newConflictError("EnrollExecution", "execution_obsolete", ErrExecutionObsolete)
	}

	leads, err := p.persistence.LeadRepository().ListByCampaign(ctx, execution.CampaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to list campaign leads: %w", err)
	}

	enrolled := 0

	for _, lead := range leads {
		if lead.Unsubscribed {
			continue
		}

		_, err = p.queue.Enqueue(ctx, lead.ID, execution.ID, execution.Settings)
		if err != nil {
			return enrolled, err
		}

		enrolled++
	}

	p.logger.Info("Campaign leads enrolled", "execution_id", execution.ID, "enrolled", enrolled, "leads", len(leads))

	return enrolled, nil
}

// EnrollLead queues a newly created lead into the active execution of its campaign.
func (p *Publishing) EnrollLead(ctx context.Context, leadID string) (*models.QueueItem, error) {
	lead, err := p.persistence.LeadRepository().GetByID(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	if lead.Unsubscribed {
		return nil, newConflictError("EnrollLead", "lead_unsubscribed", ErrLeadUnsubscribed)
	}

	if lead.Status != models.LeadStatusNew {
		return nil, newConflictError("EnrollLead", "lead_not_new", ErrLeadNotNew)
	}

	executions, err := p.persistence.ExecutionRepository().ActiveByCampaign(ctx, lead.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active execution: %w", err)
	}

	if len(executions) == 0 {
		p.logger.Warn("No active workflow for campaign", "campaign_id", lead.CampaignID, "lead_id", lead.ID)

		return nil, newConflictError("EnrollLead", "no_active_execution", ErrNoActiveExecution)
	}

	execution := executions[0]

	return p.queue.Enqueue(ctx, lead.ID, execution.ID, execution.Settings)
}

func validateForPublishing(execution *models.WorkflowExecution) error {
	if execution == nil {
		return NewValidationError("Publish", "execution_nil", "execution cannot be nil", ErrExecutionNil)
	}

	if execution.WorkflowID == "" || execution.CampaignID == "" {
		return NewValidationError("Publish", "invalid_request", "workflow_id and campaign_id are required", ErrInvalidRequest)
	}

	_, err := graph.Build(execution.Steps)
	if err != nil {
		return NewValidationError("Publish", "invalid_graph", err.Error(), fmt.Errorf("%w: %w", ErrInvalidGraph, err))
	}

	err = execution.Settings.Validate()
	if err != nil {
		return NewValidationError("Publish", "invalid_settings", err.Error(), fmt.Errorf("%w: %w", ErrInvalidSettings, err))
	}

	_, err = execution.Location()
	if err != nil {
		return NewValidationError("Publish", "invalid_timezone", err.Error(), fmt.Errorf("%w: %w", ErrInvalidTimezone, err))
	}

	return nil
}
