package models

import "time"

// QueueItem is one pending request to run a lead through a published workflow.
type QueueItem struct {
	ID          string           `json:"id"`
	LeadID      string           `json:"lead_id"`
	ExecutionID string           `json:"execution_id"`
	Settings    WorkflowSettings `json:"settings"`
	Processed   bool             `json:"processed"`
	Processing  bool             `json:"processing"`
	RunAfter    time.Time        `json:"run_after"`
	CreatedAt   time.Time        `json:"created_at"`
	ClaimedAt   *time.Time       `json:"claimed_at,omitempty"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}

// Claimable reports whether the item may be claimed at now.
func (q *QueueItem) Claimable(now time.Time) bool {
	return !q.Processed && !q.Processing && !q.RunAfter.After(now)
}
