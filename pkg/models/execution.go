// Package models defines the domain types of the outbound sequence engine.
package models

import (
	"fmt"
	"time"
)

// WorkflowExecution is a published, immutable snapshot of a workflow graph for one campaign.
type WorkflowExecution struct {
	ID            string           `json:"id"`
	WorkflowID    string           `json:"workflow_id"    validate:"required"`
	CampaignID    string           `json:"campaign_id"    validate:"required"`
	OwnerID       string           `json:"owner_id"`
	OwnerTimezone string           `json:"owner_timezone"`
	Steps         []*StepNode      `json:"steps"`
	Settings      WorkflowSettings `json:"settings"`
	Obsolete      bool             `json:"obsolete"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Location resolves the owner's timezone. An empty timezone means UTC.
func (e *WorkflowExecution) Location() (*time.Location, error) {
	if e.OwnerTimezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(e.OwnerTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid owner timezone %q: %w", e.OwnerTimezone, err)
	}

	return loc, nil
}
