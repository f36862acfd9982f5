// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/dripflow/pkg/models"
	"github.com/google/uuid"
)

const TestAccount = "sales@example.com"

// SendEmailStep creates a SEND_EMAIL step with default content that can be overridden.
func SendEmailStep(id string, overrides ...func(*models.StepNode)) *models.StepNode {
	return newStep(id, models.SendEmailConfig{
		Subject:      "Hello {first_name}",
		Body:         "Hi {first_name}, see https://example.com/offer",
		EmailAccount: TestAccount,
	}, overrides)
}

func WaitStep(id string, delay int, unit models.WaitUnit, overrides ...func(*models.StepNode)) *models.StepNode {
	return newStep(id, models.WaitConfig{Delay: delay, Unit: unit}, overrides)
}

func CheckLinkClickedStep(id, link string, overrides ...func(*models.StepNode)) *models.StepNode {
	return newStep(id, models.CheckLinkClickedConfig{LinkURL: link}, overrides)
}

func newStep(id string, config models.StepConfig, overrides []func(*models.StepNode)) *models.StepNode {
	node := &models.StepNode{
		ID:     id,
		Name:   id,
		Config: config,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithParent attaches the step under parentID.
func WithParent(parentID string) func(*models.StepNode) {
	return func(n *models.StepNode) {
		n.ParentID = &parentID
	}
}

// WithBranch sets the branch the step follows under a CHECK_LINK_CLICKED parent.
func WithBranch(branch models.BranchCondition) func(*models.StepNode) {
	return func(n *models.StepNode) {
		n.BranchCondition = &branch
	}
}

func WithNumber(number int) func(*models.StepNode) {
	return func(n *models.StepNode) {
		n.Number = number
	}
}

func WithConfig(config models.StepConfig) func(*models.StepNode) {
	return func(n *models.StepNode) {
		n.Config = config
	}
}

// AlwaysOpenSettings allows sending on every day at any time.
func AlwaysOpenSettings() models.WorkflowSettings {
	settings := models.DefaultWorkflowSettings()
	settings.SendingTimeStart = models.ClockTime{}
	settings.SendingTimeEnd = models.ClockTime{Hour: 23, Minute: 59, Second: 59}
	settings.SendingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

	return settings
}

func NewExecution(steps ...*models.StepNode) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		WorkflowID: "wf-" + uuid.New().String()[:8],
		CampaignID: "campaign-1",
		OwnerID:    "owner-1",
		Steps:      steps,
		Settings:   AlwaysOpenSettings(),
	}
}

func NewLead(overrides ...func(*models.Lead)) *models.Lead {
	lead := &models.Lead{
		CampaignID: "campaign-1",
		Email:      "ada@example.org",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Company:    "Analytical Engines",
		Status:     models.LeadStatusNew,
	}

	for _, override := range overrides {
		override(lead)
	}

	return lead
}

func NewAccount(overrides ...func(*models.ConnectedAccount)) *models.ConnectedAccount {
	account := &models.ConnectedAccount{
		OwnerID:      "owner-1",
		Provider:     models.ProviderIMAPSMTP,
		EmailAddress: TestAccount,
		Active:       true,
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
	}

	for _, override := range overrides {
		override(account)
	}

	return account
}
