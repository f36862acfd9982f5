// Package web provides HTTP request and response types for the dripflow API.
package web

import (
	"encoding/json"
	"time"

	"github.com/dukex/dripflow/pkg/models"
)

// PublishExecutionRequest represents the request body for publishing a workflow. Steps is the
// JSON step definition, validated against the schema of each step kind.
type PublishExecutionRequest struct {
	WorkflowID    string                   `json:"workflow_id"    validate:"required"`
	CampaignID    string                   `json:"campaign_id"    validate:"required"`
	OwnerID       string                   `json:"owner_id"`
	OwnerTimezone string                   `json:"owner_timezone"`
	Settings      *models.WorkflowSettings `json:"settings,omitempty"`
	Steps         json.RawMessage          `json:"steps"          validate:"required"`
}

// PublishExecutionResponse reports the published execution and how many leads were enrolled.
type PublishExecutionResponse struct {
	Execution *models.WorkflowExecution `json:"execution"`
	Enrolled  int                       `json:"enrolled"`
}

// ReplyRequest is posted by the mailbox poller for every inbound reply.
type ReplyRequest struct {
	LeadID     string     `json:"lead_id"               validate:"required"`
	EmailID    string     `json:"email_id"`
	MessageID  string     `json:"message_id"`
	Snippet    string     `json:"snippet"               validate:"max=2000"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

type EnrollResponse struct {
	Enrolled int `json:"enrolled"`
}
