package models

import "time"

type StepStatus string

const (
	StepStatusCreated   StepStatus = "CREATED"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusSkipped   StepStatus = "SKIPPED"
)

func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// RetryKind names why a step evaluation was deferred.
type RetryKind string

const (
	RetryWait   RetryKind = "wait"
	RetryDay    RetryKind = "day"
	RetryWindow RetryKind = "window"
	RetryQuota  RetryKind = "quota"
	RetryBounce RetryKind = "bounce"
)

// LeadStepState is the progress of one lead through one step. It is unique per
// (LeadID, WorkflowID, StepID). Attempts counts consecutive deferrals of kind RetryKind; a
// deferral of another kind starts the count again.
type LeadStepState struct {
	ID               string           `json:"id"`
	LeadID           string           `json:"lead_id"`
	WorkflowID       string           `json:"workflow_id"`
	StepID           string           `json:"step_id"`
	Status           StepStatus       `json:"status"`
	BranchResult     *BranchCondition `json:"branch_result,omitempty"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	ProducedEmailRef string           `json:"produced_email_ref,omitempty"`
	Attempts         int              `json:"attempts"`
	RetryKind        RetryKind        `json:"retry_kind,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// LeadStepKey identifies a LeadStepState.
type LeadStepKey struct {
	LeadID     string
	WorkflowID string
	StepID     string
}

func (s *LeadStepState) Key() LeadStepKey {
	return LeadStepKey{LeadID: s.LeadID, WorkflowID: s.WorkflowID, StepID: s.StepID}
}

// RetriesOf returns how many consecutive deferrals of kind the step has had.
func (s *LeadStepState) RetriesOf(kind RetryKind) int {
	if s.RetryKind != kind {
		return 0
	}

	return s.Attempts
}
