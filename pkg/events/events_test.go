package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, LeadRunRequestedEvent, LeadRunRequested{}.GetType())
	assert.Equal(t, LeadPassFinishedEvent, LeadPassFinished{}.GetType())
	assert.Equal(t, LinkClickedEvent, LinkClicked{}.GetType())
	assert.Equal(t, ReplyReceivedEvent, ReplyReceived{}.GetType())
	assert.Equal(t, LeadUnsubscribedEvent, LeadUnsubscribed{}.GetType())
}

func TestLeadRunRequested_CarriesSettingsSnapshot(t *testing.T) {
	settings := models.DefaultWorkflowSettings()
	settings.MaxEmailsPerDay = 7

	original := LeadRunRequested{
		BaseEvent:   NewBaseEvent(LeadRunRequestedEvent, "wf-1"),
		QueueItemID: "item-1",
		LeadID:      "lead-1",
		ExecutionID: "exec-1",
		Settings:    settings,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"lead.run.requested"`)
	assert.Contains(t, string(data), `"sending_time_start":"08:00:00"`)

	var decoded LeadRunRequested
	require.NoError(t, json.Unmarshal(data, &decoded))

	item := decoded.QueueItem()
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "lead-1", item.LeadID)
	assert.Equal(t, "exec-1", item.ExecutionID)
	assert.Equal(t, settings, item.Settings)
}

func TestLeadPassFinished_JSON(t *testing.T) {
	original := LeadPassFinished{
		BaseEvent:  NewBaseEvent(LeadPassFinishedEvent, "wf-1"),
		LeadID:     "lead-1",
		Status:     models.LeadWorkflowRunning,
		RetryAfter: time.Hour,
		Reason:     "outside sending window",
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded LeadPassFinished
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.RetryAfter, decoded.RetryAfter)
	assert.Equal(t, models.LeadWorkflowRunning, decoded.Status)
	assert.Equal(t, "wf-1", decoded.WorkflowID)
}

func TestNewBaseEvent_Defaults(t *testing.T) {
	event := NewBaseEvent(LinkClickedEvent, "")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, LinkClickedEvent, event.Type)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
	assert.NotNil(t, event.Metadata)
}
