// Package events defines the messages exchanged between the dripflow services.
package events

import (
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "dripflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Lead run events.
	LeadRunRequestedEvent EventType = "lead.run.requested"
	LeadPassFinishedEvent EventType = "lead.pass.finished"

	// Engagement events.
	LinkClickedEvent      EventType = "link.clicked"
	ReplyReceivedEvent    EventType = "reply.received"
	LeadUnsubscribedEvent EventType = "lead.unsubscribed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LeadRunRequested asks a worker to run one pass for the queued lead.
type LeadRunRequested struct {
	BaseEvent

	QueueItemID string                  `json:"queue_item_id"`
	LeadID      string                  `json:"lead_id"`
	ExecutionID string                  `json:"execution_id"`
	Settings    models.WorkflowSettings `json:"settings"`
}

func (e LeadRunRequested) GetType() EventType {
	return LeadRunRequestedEvent
}

// QueueItem rebuilds the queue item the request was dispatched for.
func (e LeadRunRequested) QueueItem() *models.QueueItem {
	return &models.QueueItem{
		ID:          e.QueueItemID,
		LeadID:      e.LeadID,
		ExecutionID: e.ExecutionID,
		Settings:    e.Settings,
	}
}

// LeadPassFinished reports the outcome of one pass.
type LeadPassFinished struct {
	BaseEvent

	LeadID      string                    `json:"lead_id"`
	ExecutionID string                    `json:"execution_id"`
	Status      models.LeadWorkflowStatus `json:"status"`
	RetryAfter  time.Duration             `json:"retry_after,omitempty"`
	Halted      bool                      `json:"halted,omitempty"`
	Reason      string                    `json:"reason,omitempty"`
}

func (e LeadPassFinished) GetType() EventType {
	return LeadPassFinishedEvent
}

type LinkClicked struct {
	BaseEvent

	LeadID  string `json:"lead_id"`
	EmailID string `json:"email_id"`
	URL     string `json:"url"`
}

func (e LinkClicked) GetType() EventType {
	return LinkClickedEvent
}

type ReplyReceived struct {
	BaseEvent

	LeadID  string `json:"lead_id"`
	EmailID string `json:"email_id,omitempty"`
}

func (e ReplyReceived) GetType() EventType {
	return ReplyReceivedEvent
}

type LeadUnsubscribed struct {
	BaseEvent

	LeadID string `json:"lead_id"`
}

func (e LeadUnsubscribed) GetType() EventType {
	return LeadUnsubscribedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
