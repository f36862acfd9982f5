package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepNode_UnmarshalJSON_DecodesTypedConfig(t *testing.T) {
	raw := `[
		{"id":"s1","number":1,"type":"SEND_EMAIL","settings":{"subject":"Hi {first_name}","body":"Hello","email_account":"sales@example.com"}},
		{"id":"s2","number":2,"parent_id":"s1","type":"WAIT","settings":{"delay":2,"format":"Days"}},
		{"id":"s3","number":3,"parent_id":"s2","type":"CHECK_LINK_CLICKED","settings":{"link_url":"https://example.com/pricing"}},
		{"id":"s4","number":4,"parent_id":"s3","condition":"YES","type":"SEND_EMAIL","settings":{"subject":"Thanks","body":"b","email_account":"sales@example.com"}}
	]`

	var steps []*StepNode

	err := json.Unmarshal([]byte(raw), &steps)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	send, ok := steps[0].Config.(SendEmailConfig)
	require.True(t, ok)
	assert.Equal(t, "sales@example.com", send.EmailAccount)
	assert.False(t, steps[0].HasParent())

	wait, ok := steps[1].Config.(WaitConfig)
	require.True(t, ok)
	assert.Equal(t, 48*time.Hour, wait.Duration())

	check, ok := steps[2].Config.(CheckLinkClickedConfig)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/pricing", check.LinkURL)
	assert.True(t, steps[2].Kind().IsBranching())

	require.NotNil(t, steps[3].BranchCondition)
	assert.Equal(t, BranchYes, *steps[3].BranchCondition)
	assert.Equal(t, "s3", *steps[3].ParentID)
}

func TestStepNode_MarshalJSON_KeepsWireShape(t *testing.T) {
	parent := "s1"
	no := BranchNo
	node := StepNode{
		ID:              "s2",
		Number:          2,
		ParentID:        &parent,
		BranchCondition: &no,
		Config:          WaitConfig{Delay: 3, Unit: WaitUnitHours},
	}

	data, err := json.Marshal(node)
	require.NoError(t, err)

	var wire map[string]any

	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "WAIT", wire["type"])
	assert.Equal(t, "NO", wire["condition"])
	assert.Equal(t, "s1", wire["parent_id"])
	assert.Equal(t, map[string]any{"delay": float64(3), "format": "Hours"}, wire["settings"])
}

func TestDecodeStepConfig_UnknownKind(t *testing.T) {
	_, err := DecodeStepConfig("SEND_SMS", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrUnknownStepKind)
}

func TestWaitConfig_DefaultsToMinutes(t *testing.T) {
	config, err := DecodeStepConfig(StepKindWait, json.RawMessage(`{"delay":15}`))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, config.(WaitConfig).Duration())
}

func TestWorkflowSettings_AllowsDay(t *testing.T) {
	settings := DefaultWorkflowSettings()
	settings.SendingDays = []string{"monday"}

	monday := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	assert.True(t, settings.AllowsDay(monday))
	assert.False(t, settings.AllowsDay(tuesday))
}

func TestWorkflowSettings_WithinWindow(t *testing.T) {
	settings := DefaultWorkflowSettings()
	settings.SendingTimeStart = ClockTime{Hour: 9}
	settings.SendingTimeEnd = ClockTime{Hour: 17, Minute: 30}

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, settings.WithinWindow(day.Add(8*time.Hour+59*time.Minute)))
	assert.True(t, settings.WithinWindow(day.Add(9*time.Hour)))
	assert.True(t, settings.WithinWindow(day.Add(17*time.Hour+30*time.Minute)))
	assert.False(t, settings.WithinWindow(day.Add(17*time.Hour+31*time.Minute)))
}

func TestWorkflowSettings_Validate(t *testing.T) {
	settings := DefaultWorkflowSettings()
	require.NoError(t, settings.Validate())

	settings.ReplyAction = "ignore"
	require.Error(t, settings.Validate())

	settings = DefaultWorkflowSettings()
	settings.SendingDays = []string{"funday"}
	require.Error(t, settings.Validate())

	settings = DefaultWorkflowSettings()
	settings.SendingTimeStart = ClockTime{Hour: 19}
	require.Error(t, settings.Validate())
}

func TestWorkflowSettings_JSONClockTimes(t *testing.T) {
	var settings WorkflowSettings

	err := json.Unmarshal([]byte(`{"sending_time_start":"08:30","sending_time_end":"18:00:15"}`), &settings)
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 8, Minute: 30}, settings.SendingTimeStart)
	assert.Equal(t, ClockTime{Hour: 18, Second: 15}, settings.SendingTimeEnd)

	data, err := json.Marshal(settings.SendingTimeStart)
	require.NoError(t, err)
	assert.JSONEq(t, `"08:30:00"`, string(data))
}

func TestWorkflowSettings_SnapshotIsIndependent(t *testing.T) {
	settings := DefaultWorkflowSettings()
	snapshot := settings.Snapshot()

	settings.SendingDays[0] = "sunday"

	assert.Equal(t, "monday", snapshot.SendingDays[0])
}

func TestThrottleStatus_Breaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	status := &ThrottleStatus{Account: "sales@example.com"}

	status.RecordFailure(now, 3, 10*time.Minute)
	status.RecordFailure(now, 3, 10*time.Minute)
	assert.Nil(t, status.PausedUntil)
	assert.False(t, status.IsThrottled(now))

	status.RecordFailure(now, 3, 10*time.Minute)
	assert.True(t, status.IsThrottled(now))
	assert.True(t, status.IsThrottled(now.Add(9*time.Minute)))
	assert.False(t, status.IsThrottled(now.Add(10*time.Minute)))

	status.RecordSuccess()
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.False(t, status.IsThrottled(now))
}

func TestLead_PlaceholderValues(t *testing.T) {
	lead := &Lead{
		ID:           "lead-1",
		FirstName:    "Ada",
		Company:      "Analytical",
		CustomFields: map[string]string{"first_name": "ignored", "role": "CTO"},
	}

	values := lead.PlaceholderValues()

	assert.Equal(t, "Ada", values["first_name"])
	assert.Equal(t, "CTO", values["role"])
	assert.Equal(t, "Analytical", values["company"])
}

func TestLeadWorkflowStatus_IsTerminal(t *testing.T) {
	assert.False(t, LeadWorkflowStatus("").IsTerminal())
	assert.False(t, LeadWorkflowRunning.IsTerminal())
	assert.True(t, LeadWorkflowCompleted.IsTerminal())
	assert.True(t, LeadWorkflowFailed.IsTerminal())
	assert.True(t, LeadWorkflowSkipped.IsTerminal())
}

func TestConnectedAccount_TokenExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Minute)
	account := &ConnectedAccount{AccessToken: "tok", TokenExpiresAt: &expires}

	assert.False(t, account.TokenExpired(now))
	assert.True(t, account.TokenExpired(now.Add(time.Minute)))

	account.AccessToken = ""
	assert.True(t, account.TokenExpired(now))
}
