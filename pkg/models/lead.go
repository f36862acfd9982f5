package models

import "time"

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusConverted LeadStatus = "converted"
)

// LeadWorkflowStatus is the aggregate outcome of the most recent pass over a lead.
type LeadWorkflowStatus string

const (
	LeadWorkflowRunning   LeadWorkflowStatus = "RUNNING"
	LeadWorkflowCompleted LeadWorkflowStatus = "COMPLETED"
	LeadWorkflowFailed    LeadWorkflowStatus = "FAILED"
	LeadWorkflowSkipped   LeadWorkflowStatus = "SKIPPED"
)

// IsTerminal reports whether no further pass should run for the lead.
func (s LeadWorkflowStatus) IsTerminal() bool {
	switch s {
	case LeadWorkflowCompleted, LeadWorkflowFailed, LeadWorkflowSkipped:
		return true
	default:
		return false
	}
}

type Lead struct {
	ID             string             `json:"id"`
	CampaignID     string             `json:"campaign_id"     validate:"required"`
	Email          string             `json:"email"           validate:"required,email"`
	FirstName      string             `json:"first_name"`
	LastName       string             `json:"last_name"`
	Company        string             `json:"company"`
	Phone          string             `json:"phone"`
	Status         LeadStatus         `json:"status"`
	WorkflowStatus LeadWorkflowStatus `json:"workflow_status"`
	Unsubscribed   bool               `json:"unsubscribed"`
	CustomFields   map[string]string  `json:"custom_fields"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PlaceholderValues returns the values available to {placeholder} tokens. Built-in fields win
// over custom fields with the same name.
func (l *Lead) PlaceholderValues() map[string]string {
	values := make(map[string]string, len(l.CustomFields)+7)

	for key, value := range l.CustomFields {
		values[key] = value
	}

	values["id"] = l.ID
	values["campaign_id"] = l.CampaignID
	values["email"] = l.Email
	values["first_name"] = l.FirstName
	values["last_name"] = l.LastName
	values["company"] = l.Company
	values["phone"] = l.Phone

	return values
}
