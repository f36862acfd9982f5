package steps

import (
	"context"
	"fmt"

	"github.com/dukex/dripflow/pkg/log"
	"github.com/dukex/dripflow/pkg/models"
)

func (e *Evaluator) checkLinkClicked(ctx context.Context, pass *Pass, node *models.StepNode, cfg models.CheckLinkClickedConfig) (Outcome, error) {
	emailRef, err := e.deps.States.FindNearestAncestorEmail(ctx, pass.Graph, node.ID, pass.Lead.ID, pass.Execution.WorkflowID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to find ancestor email: %w", err)
	}

	if emailRef == "" {
		log.FromContext(ctx).Error("No ancestor email to check link clicks against",
			"lead_id", pass.Lead.ID,
			"step_id", node.ID)

		return Failed("no email sent before link check"), nil
	}

	clicked, err := e.deps.Tracker.WasLinkClicked(ctx, pass.Lead.ID, emailRef, cfg.LinkURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check link click: %w", err)
	}

	return CompletedWithBranch(models.BranchFor(clicked)), nil
}
