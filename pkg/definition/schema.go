package definition

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/stepflow/pkg/models"
)

var graphSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"nodes":        map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		"edges":        map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		"dataBindings": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		"streams":      map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		"name":         map[string]any{"type": "string"},
		"description":  map[string]any{"type": "string"},
	},
}

// payloadSchema describes the outer shape of a definition payload. Field level rules are applied while
// normalizing, where aliases are resolved.
var payloadSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":           map[string]any{"type": "string"},
		"workflowId":   map[string]any{"type": "string"},
		"name":         map[string]any{"type": "string"},
		"description":  map[string]any{"type": "string"},
		"startNodeId":  map[string]any{"type": "string"},
		"start":        map[string]any{"type": "string"},
		"definition":   graphSchema,
		"nodes":        graphSchema["properties"].(map[string]any)["nodes"],
		"edges":        graphSchema["properties"].(map[string]any)["edges"],
		"dataBindings": graphSchema["properties"].(map[string]any)["dataBindings"],
		"streams":      graphSchema["properties"].(map[string]any)["streams"],
	},
}

// validateSchema checks data against schema and reports every violation in one ValidationError.
func validateSchema(label string, schema map[string]any, data any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return models.NewValidationError("%s: %v", label, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}

	return models.NewValidationError("%s failed schema validation: %s", label, strings.Join(violations, "; ")).
		WithMetadata("violations", violations)
}

// SchemaSource returns the config schema for a step type, if one is known.
type SchemaSource interface {
	Schema(stepType string) (map[string]any, bool)
}

func validateNodeConfig(source SchemaSource, index int, node models.Node) error {
	if source == nil {
		return nil
	}

	schema, ok := source.Schema(node.Type)
	if !ok || len(schema) == 0 {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	return validateSchema(fmt.Sprintf("Node[%d] %q config", index+1, node.ID), schema, config)
}
