// Package steps evaluates single workflow steps for a single lead.
package steps

import (
	"time"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
)

type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota + 1
	OutcomeFailed
	OutcomeSkipped
	OutcomeRetryAfter
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetryAfter:
		return "retry_after"
	default:
		return "unknown"
	}
}

// Outcome is the result of evaluating one step. Branch is set for branching kinds, EmailRef
// when an email was sent, RetryAfter when the evaluation must be repeated later.
type Outcome struct {
	Kind       OutcomeKind
	Branch     *models.BranchCondition
	Halt       bool
	EmailRef   string
	RetryAfter time.Duration
	Retry      models.RetryKind
	Reason     string
}

func Completed() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

func CompletedWithBranch(branch models.BranchCondition) Outcome {
	return Outcome{Kind: OutcomeCompleted, Branch: &branch}
}

// Halted completes the step and tells the runner to stop the walk for the lead.
func Halted(reason string) Outcome {
	return Outcome{Kind: OutcomeCompleted, Halt: true, Reason: reason}
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func RetryAfter(kind models.RetryKind, delay time.Duration, reason string) Outcome {
	return Outcome{Kind: OutcomeRetryAfter, RetryAfter: delay, Retry: kind, Reason: reason}
}

// Pass is everything an evaluator may read about the lead's current run.
type Pass struct {
	Execution *models.WorkflowExecution
	Graph     *graph.Graph
	Lead      *models.Lead
	Settings  models.WorkflowSettings
	Location  *time.Location
}

func (p *Pass) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}

	return p.Location
}
