package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StepKind identifies what a step does when it is evaluated for a lead.
type StepKind string

const (
	StepKindSendEmail        StepKind = "SEND_EMAIL"
	StepKindWait             StepKind = "WAIT"
	StepKindCheckLinkClicked StepKind = "CHECK_LINK_CLICKED"
)

// IsBranching reports whether steps of this kind record a branch result for their children.
func (k StepKind) IsBranching() bool {
	return k == StepKindCheckLinkClicked
}

// BranchCondition is the YES/NO label recorded by branching steps and matched by their children.
type BranchCondition string

const (
	BranchYes BranchCondition = "YES"
	BranchNo  BranchCondition = "NO"
)

func (b BranchCondition) Valid() bool {
	return b == BranchYes || b == BranchNo
}

// BranchFor maps a boolean signal to its branch label.
func BranchFor(ok bool) BranchCondition {
	if ok {
		return BranchYes
	}

	return BranchNo
}

// WaitUnit is the unit of a WAIT step delay.
type WaitUnit string

const (
	WaitUnitMinutes WaitUnit = "Minutes"
	WaitUnitHours   WaitUnit = "Hours"
	WaitUnitDays    WaitUnit = "Days"
)

var ErrUnknownStepKind = errors.New("unknown step kind")

// StepConfig is the kind-specific payload of a step. The set of implementations is closed.
type StepConfig interface {
	Kind() StepKind
	isStepConfig()
}

// SendEmailConfig configures a SEND_EMAIL step.
type SendEmailConfig struct {
	Subject      string `json:"subject"       validate:"required"`
	Body         string `json:"body"          validate:"required"`
	EmailAccount string `json:"email_account" validate:"required,email"`
}

func (SendEmailConfig) Kind() StepKind { return StepKindSendEmail }
func (SendEmailConfig) isStepConfig()  {}

// WaitConfig configures a WAIT step.
type WaitConfig struct {
	Delay int      `json:"delay"  validate:"gte=0"`
	Unit  WaitUnit `json:"format" validate:"omitempty,oneof=Minutes Hours Days"`
}

func (WaitConfig) Kind() StepKind { return StepKindWait }
func (WaitConfig) isStepConfig()  {}

// Duration converts the configured delay to a time.Duration.
func (c WaitConfig) Duration() time.Duration {
	delay := time.Duration(c.Delay)

	switch c.Unit {
	case WaitUnitHours:
		return delay * time.Hour
	case WaitUnitDays:
		return delay * 24 * time.Hour
	default:
		return delay * time.Minute
	}
}

// CheckLinkClickedConfig configures a CHECK_LINK_CLICKED step.
type CheckLinkClickedConfig struct {
	LinkURL string `json:"link_url" validate:"required,url"`
}

func (CheckLinkClickedConfig) Kind() StepKind { return StepKindCheckLinkClicked }
func (CheckLinkClickedConfig) isStepConfig()  {}

// StepNode is one node of a published workflow graph.
type StepNode struct {
	ID              string
	Number          int
	Name            string
	ParentID        *string
	BranchCondition *BranchCondition
	Config          StepConfig
}

// Kind returns the kind carried by the node's config.
func (n *StepNode) Kind() StepKind {
	if n.Config == nil {
		return ""
	}

	return n.Config.Kind()
}

func (n *StepNode) HasParent() bool {
	return n.ParentID != nil && *n.ParentID != ""
}

type stepNodeJSON struct {
	ID        string           `json:"id"`
	Number    int              `json:"number"`
	Name      string           `json:"name,omitempty"`
	ParentID  *string          `json:"parent_id,omitempty"`
	Condition *BranchCondition `json:"condition,omitempty"`
	Type      StepKind         `json:"type"`
	Settings  json.RawMessage  `json:"settings"`
}

func (n StepNode) MarshalJSON() ([]byte, error) {
	settings, err := json.Marshal(n.Config)
	if err != nil {
		return nil, err
	}

	return json.Marshal(stepNodeJSON{
		ID:        n.ID,
		Number:    n.Number,
		Name:      n.Name,
		ParentID:  n.ParentID,
		Condition: n.BranchCondition,
		Type:      n.Kind(),
		Settings:  settings,
	})
}

func (n *StepNode) UnmarshalJSON(data []byte) error {
	var raw stepNodeJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	config, err := DecodeStepConfig(raw.Type, raw.Settings)
	if err != nil {
		return fmt.Errorf("step %s: %w", raw.ID, err)
	}

	*n = StepNode{
		ID:              raw.ID,
		Number:          raw.Number,
		Name:            raw.Name,
		ParentID:        raw.ParentID,
		BranchCondition: raw.Condition,
		Config:          config,
	}

	return nil
}

// DecodeStepConfig decodes the settings payload of a step of the given kind.
func DecodeStepConfig(kind StepKind, settings json.RawMessage) (StepConfig, error) {
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}

	switch kind {
	case StepKindSendEmail:
		var c SendEmailConfig
		if err := json.Unmarshal(settings, &c); err != nil {
			return nil, err
		}

		return c, nil
	case StepKindWait:
		var c WaitConfig
		if err := json.Unmarshal(settings, &c); err != nil {
			return nil, err
		}

		if c.Unit == "" {
			c.Unit = WaitUnitMinutes
		}

		return c, nil
	case StepKindCheckLinkClicked:
		var c CheckLinkClickedConfig
		if err := json.Unmarshal(settings, &c); err != nil {
			return nil, err
		}

		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepKind, kind)
	}
}
