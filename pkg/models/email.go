package models

import "time"

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "PENDING"
	EmailStatusSent    EmailStatus = "SENT"
	EmailStatusFailed  EmailStatus = "FAILED"
)

// Email is the record of one outbound message produced by a SEND_EMAIL step.
type Email struct {
	ID        string      `json:"id"`
	LeadID    string      `json:"lead_id"`
	StepID    string      `json:"step_id"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Status    EmailStatus `json:"status"`
	MessageID string      `json:"message_id,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	SentAt    *time.Time  `json:"sent_at,omitempty"`
}

// Click is a recorded visit to a tracked link.
type Click struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	EmailID   string    `json:"email_id"`
	URL       string    `json:"url"`
	ClickedAt time.Time `json:"clicked_at"`
}

// Reply is an inbound answer from a lead, reported by the mailbox poller.
type Reply struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"     validate:"required"`
	EmailID    string    `json:"email_id"`
	MessageID  string    `json:"message_id"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"received_at"`
}
