// Package workflow walks a published step graph for one lead and settles the lead's
// aggregate status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/log"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/dukex/dripflow/pkg/otelhelper"
	"github.com/dukex/dripflow/pkg/persistence"
	"github.com/dukex/dripflow/pkg/state"
	"github.com/dukex/dripflow/pkg/steps"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrPassPanicked = errors.New("workflow pass panicked")

// StepEvaluator evaluates one step of a pass.
type StepEvaluator interface {
	Evaluate(ctx context.Context, pass *steps.Pass, node *models.StepNode) (steps.Outcome, error)
}

// PassResult summarizes one pass over a lead. RetryAfter is non-zero when the pass stopped
// on a step that must be evaluated again later.
type PassResult struct {
	LeadID      string
	ExecutionID string
	Status      models.LeadWorkflowStatus
	RetryAfter  time.Duration
	Evaluated   int
	Halted      bool
	Reason      string
}

// Deferred reports whether the lead must be re-queued.
func (r PassResult) Deferred() bool {
	return r.RetryAfter > 0
}

type Runner struct {
	executions persistence.ExecutionRepository
	leads      persistence.LeadRepository
	states     *state.Store
	evaluator  StepEvaluator
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewRunner(
	executions persistence.ExecutionRepository,
	leads persistence.LeadRepository,
	states *state.Store,
	evaluator StepEvaluator,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Runner {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Runner{
		executions: executions,
		leads:      leads,
		states:     states,
		evaluator:  evaluator,
		tracer:     tracer,
		logger:     logger.With("component", "workflow_runner"),
	}
}

// Run performs one pass of the execution's graph for the lead using settings, the snapshot
// taken when the lead was queued. Unexpected errors and panics mark the lead FAILED.
func (r *Runner) Run(ctx context.Context, executionID, leadID string, settings models.WorkflowSettings) (result PassResult, err error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.pass",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.LeadIDKey, leadID),
	)
	defer span.End()

	logger := r.logger.With("execution_id", executionID, "lead_id", leadID)
	ctx = log.WithLogger(ctx, logger)

	var currentStep string

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrPassPanicked, recovered)
		}

		if err == nil {
			return
		}

		logger.Error("Workflow pass failed", "step_id", currentStep, "error", err)
		otelhelper.SetError(span, err, attribute.String(otelhelper.StepIDKey, currentStep))

		markErr := r.leads.UpdateWorkflowStatus(context.WithoutCancel(ctx), leadID, models.LeadWorkflowFailed)
		if markErr != nil {
			logger.Error("Failed to mark lead as failed", "error", markErr)
		}

		result = PassResult{
			LeadID:      leadID,
			ExecutionID: executionID,
			Status:      models.LeadWorkflowFailed,
			Reason:      err.Error(),
		}
	}()

	return r.run(ctx, executionID, leadID, settings, &currentStep)
}

func (r *Runner) run(
	ctx context.Context,
	executionID, leadID string,
	settings models.WorkflowSettings,
	currentStep *string,
) (PassResult, error) {
	result := PassResult{LeadID: leadID, ExecutionID: executionID}

	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		return result, fmt.Errorf("failed to load lead: %w", err)
	}

	if lead.WorkflowStatus.IsTerminal() {
		result.Status = lead.WorkflowStatus

		return result, nil
	}

	execution, err := r.executions.GetByID(ctx, executionID)
	if err != nil {
		return result, fmt.Errorf("failed to load execution: %w", err)
	}

	// A newer publication of the workflow owns the lead's progress; passes queued for this
	// one end here without touching the lead or deferring again.
	if execution.Obsolete {
		result.Status = lead.WorkflowStatus
		result.Reason = "execution obsolete"

		log.FromContext(ctx).Info("Skipping pass for obsolete execution")

		return result, nil
	}

	g, err := graph.Build(execution.Steps)
	if err != nil {
		return result, fmt.Errorf("invalid step graph: %w", err)
	}

	location, err := execution.Location()
	if err != nil {
		return result, err
	}

	if lead.WorkflowStatus != models.LeadWorkflowRunning {
		err = r.settle(ctx, lead, models.LeadWorkflowRunning)
		if err != nil {
			return result, err
		}
	}

	pass := &steps.Pass{
		Execution: execution,
		Graph:     g,
		Lead:      lead,
		Settings:  settings,
		Location:  location,
	}

	for _, node := range g.Nodes() {
		*currentStep = node.ID

		ready, err := r.ready(ctx, pass, node)
		if err != nil {
			return result, err
		}

		if !ready {
			continue
		}

		outcome, err := r.evaluate(ctx, pass, node)
		if err != nil {
			return result, err
		}

		result.Evaluated++
		result.Reason = outcome.Reason

		switch outcome.Kind {
		case steps.OutcomeCompleted:
			if outcome.Halt {
				result.Halted = true

				return r.finish(ctx, lead, result, models.LeadWorkflowCompleted)
			}
		case steps.OutcomeFailed:
			return r.finish(ctx, lead, result, models.LeadWorkflowFailed)
		case steps.OutcomeSkipped:
			return r.finish(ctx, lead, result, models.LeadWorkflowSkipped)
		case steps.OutcomeRetryAfter:
			result.Status = models.LeadWorkflowRunning
			result.RetryAfter = outcome.RetryAfter

			return result, nil
		}
	}

	*currentStep = ""
	result.Reason = ""

	done, err := r.states.AllCompleteFor(ctx, leadID, execution.WorkflowID)
	if err != nil {
		return result, err
	}

	if done {
		return r.finish(ctx, lead, result, models.LeadWorkflowCompleted)
	}

	result.Status = models.LeadWorkflowRunning

	return result, nil
}

// ready reports whether node should be evaluated in this pass: it is not completed yet and its
// parent completed on the branch the node follows.
func (r *Runner) ready(ctx context.Context, pass *steps.Pass, node *models.StepNode) (bool, error) {
	leadID, workflowID := pass.Lead.ID, pass.Execution.WorkflowID

	own, err := r.states.Get(ctx, leadID, workflowID, node.ID)
	if err != nil {
		return false, err
	}

	if own != nil && own.Status == models.StepStatusCompleted {
		return false, nil
	}

	parent := pass.Graph.Parent(node.ID)
	if parent == nil {
		return true, nil
	}

	parentState, err := r.states.Get(ctx, leadID, workflowID, parent.ID)
	if err != nil {
		return false, err
	}

	if parentState == nil || parentState.Status != models.StepStatusCompleted {
		return false, nil
	}

	if !parent.Kind().IsBranching() {
		return true, nil
	}

	return node.BranchCondition != nil && parentState.BranchResult != nil &&
		*node.BranchCondition == *parentState.BranchResult, nil
}

func (r *Runner) evaluate(ctx context.Context, pass *steps.Pass, node *models.StepNode) (steps.Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, node.ID),
		attribute.String(otelhelper.StepKindKey, string(node.Kind())),
	)
	defer span.End()

	outcome, err := r.evaluator.Evaluate(ctx, pass, node)
	if err != nil {
		otelhelper.SetError(span, err)

		return outcome, fmt.Errorf("step %s: %w", node.ID, err)
	}

	otelhelper.SetOutcome(span, outcome.Kind.String(), outcome.Reason)

	log.FromContext(ctx).Debug("Step evaluated",
		"step_id", node.ID,
		"kind", node.Kind(),
		"outcome", outcome.Kind.String(),
		"reason", outcome.Reason)

	return outcome, nil
}

func (r *Runner) finish(ctx context.Context, lead *models.Lead, result PassResult, status models.LeadWorkflowStatus) (PassResult, error) {
	err := r.settle(ctx, lead, status)
	if err != nil {
		return result, err
	}

	result.Status = status

	log.FromContext(ctx).Info("Lead settled", "status", status, "reason", result.Reason)

	return result, nil
}

func (r *Runner) settle(ctx context.Context, lead *models.Lead, status models.LeadWorkflowStatus) error {
	err := r.leads.UpdateWorkflowStatus(ctx, lead.ID, status)
	if err != nil {
		return fmt.Errorf("failed to update lead workflow status: %w", err)
	}

	lead.WorkflowStatus = status

	return nil
}
