package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidDefinition = errors.New("invalid workflow definition")

var settingsSchemas = map[models.StepKind]map[string]any{
	models.StepKindSendEmail: {
		"type":     "object",
		"required": []any{"subject", "body", "email_account"},
		"properties": map[string]any{
			"subject":       map[string]any{"type": "string", "minLength": 1},
			"body":          map[string]any{"type": "string", "minLength": 1},
			"email_account": map[string]any{"type": "string", "format": "email"},
		},
	},
	models.StepKindWait: {
		"type":     "object",
		"required": []any{"delay"},
		"properties": map[string]any{
			"delay":  map[string]any{"type": "integer", "minimum": 0},
			"format": map[string]any{"type": "string", "enum": []any{"Minutes", "Hours", "Days"}},
		},
	},
	models.StepKindCheckLinkClicked: {
		"type":     "object",
		"required": []any{"link_url"},
		"properties": map[string]any{
			"link_url": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

type rawStep struct {
	ID       string          `json:"id"`
	Type     models.StepKind `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

// DecodeDefinition parses a JSON array of steps, checks every step's settings against the
// schema of its kind and builds the graph.
func DecodeDefinition(data []byte) (*Graph, []*models.StepNode, error) {
	var raws []rawStep

	err := json.Unmarshal(data, &raws)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	for _, raw := range raws {
		err := validateSettings(raw)
		if err != nil {
			return nil, nil, err
		}
	}

	var steps []*models.StepNode

	err = json.Unmarshal(data, &steps)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	g, err := Build(steps)
	if err != nil {
		return nil, nil, err
	}

	return g, steps, nil
}

func validateSettings(raw rawStep) error {
	schema, ok := settingsSchemas[raw.Type]
	if !ok {
		return fmt.Errorf("%w: step %s: %w: %q", ErrInvalidDefinition, raw.ID, models.ErrUnknownStepKind, raw.Type)
	}

	settings := raw.Settings
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(settings))
	if err != nil {
		return fmt.Errorf("%w: step %s: %w", ErrInvalidDefinition, raw.ID, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: step %s: %s", ErrInvalidDefinition, raw.ID, strings.Join(problems, "; "))
	}

	return nil
}
