package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ReplyAction string

const (
	ReplyActionStop     ReplyAction = "stop"
	ReplyActionContinue ReplyAction = "continue"
)

type BounceHandling string

const (
	BounceHandlingStop     BounceHandling = "stop"
	BounceHandlingRetry    BounceHandling = "retry"
	BounceHandlingContinue BounceHandling = "continue"
)

type UnsubscribeHandling string

const (
	UnsubscribeHandlingRemove  UnsubscribeHandling = "remove"
	UnsubscribeHandlingExclude UnsubscribeHandling = "exclude"
)

// StartMode selects which leads are enrolled when a workflow is published.
type StartMode string

const (
	StartNewLeads StartMode = "new"
	StartAllLeads StartMode = "all"
)

// WorkflowSettings is the sending policy of a workflow. Queue items carry a value copy taken
// at publish time so later edits do not affect in-flight runs.
type WorkflowSettings struct {
	Start               StartMode           `json:"start"                validate:"omitempty,oneof=new all"`
	MaxEmailsPerDay     int                 `json:"max_emails_per_day"   validate:"gte=0"`
	PauseBetweenEmails  int                 `json:"pause_between_emails" validate:"gte=0"`
	ReplyAction         ReplyAction         `json:"reply_action"         validate:"oneof=stop continue"`
	SendingTimeStart    ClockTime           `json:"sending_time_start"`
	SendingTimeEnd      ClockTime           `json:"sending_time_end"`
	SendingDays         []string            `json:"sending_days"         validate:"dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	UnsubscribeHandling UnsubscribeHandling `json:"unsubscribe_handling" validate:"oneof=remove exclude"`
	BounceHandling      BounceHandling      `json:"bounce_handling"      validate:"oneof=stop retry continue"`
}

// DefaultWorkflowSettings mirrors the defaults of a freshly created workflow.
func DefaultWorkflowSettings() WorkflowSettings {
	return WorkflowSettings{
		Start:               StartNewLeads,
		MaxEmailsPerDay:     50,
		PauseBetweenEmails:  30,
		ReplyAction:         ReplyActionStop,
		SendingTimeStart:    ClockTime{Hour: 8},
		SendingTimeEnd:      ClockTime{Hour: 18},
		SendingDays:         []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		UnsubscribeHandling: UnsubscribeHandlingRemove,
		BounceHandling:      BounceHandlingStop,
	}
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

func (s WorkflowSettings) Validate() error {
	if s.SendingTimeEnd.Before(s.SendingTimeStart) {
		return fmt.Errorf("sending_time_end %s is before sending_time_start %s", s.SendingTimeEnd, s.SendingTimeStart)
	}

	return settingsValidator.Struct(s)
}

// Snapshot returns a deep copy safe to store alongside a queue item.
func (s WorkflowSettings) Snapshot() WorkflowSettings {
	s.SendingDays = slices.Clone(s.SendingDays)

	return s
}

// AllowsDay reports whether sending is allowed on the weekday of local.
func (s WorkflowSettings) AllowsDay(local time.Time) bool {
	day := strings.ToLower(local.Weekday().String())

	for _, allowed := range s.SendingDays {
		if strings.ToLower(allowed) == day {
			return true
		}
	}

	return false
}

// WithinWindow reports whether the clock time of local is inside [start, end].
func (s WorkflowSettings) WithinWindow(local time.Time) bool {
	now := ClockTimeOf(local)

	return !now.Before(s.SendingTimeStart) && !s.SendingTimeEnd.Before(now)
}

// ClockTime is a wall-clock time of day without a date or zone.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseClockTime accepts "15:04" and "15:04:05".
func ParseClockTime(value string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return ClockTimeOf(t), nil
		}
	}

	return ClockTime{}, fmt.Errorf("invalid time of day %q", value)
}

func (c ClockTime) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

func (c ClockTime) Before(other ClockTime) bool {
	return c.seconds() < other.seconds()
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var value string

	err := json.Unmarshal(data, &value)
	if err != nil {
		return err
	}

	parsed, err := ParseClockTime(value)
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}
