package models

import (
	"encoding/json"
	"fmt"
)

// ConditionType selects how an edge condition is evaluated.
type ConditionType string

const (
	ConditionTypeExpression ConditionType = "expression"
	ConditionTypeScript     ConditionType = "script"
	ConditionTypeEvent      ConditionType = "event"
	ConditionTypePredicate  ConditionType = "predicate"
)

// IsValid reports whether the condition type is one of the known types.
func (t ConditionType) IsValid() bool {
	switch t {
	case ConditionTypeExpression, ConditionTypeScript, ConditionTypeEvent, ConditionTypePredicate:
		return true
	default:
		return false
	}
}

// Condition guards an edge. Only expression conditions are evaluated by the executor.
type Condition struct {
	Type       ConditionType  `json:"type"                 yaml:"type"`
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// NewCondition validates and copies a condition.
func NewCondition(conditionType ConditionType, expression string, parameters map[string]any) (*Condition, error) {
	if !conditionType.IsValid() {
		return nil, NewValidationError("unsupported condition type %q", conditionType)
	}

	params := cloneMap(parameters)
	if params == nil {
		params = map[string]any{}
	}

	return &Condition{
		Type:       conditionType,
		Expression: expression,
		Parameters: params,
	}, nil
}

// Signature returns a canonical form of the condition. Map keys are sorted so equal conditions always
// produce the same signature.
func (c *Condition) Signature() string {
	if c == nil {
		return "no-condition"
	}

	canonical := map[string]any{
		"type":       c.Type,
		"parameters": c.Parameters,
	}
	if c.Expression != "" {
		canonical["expression"] = c.Expression
	}

	if len(c.Parameters) == 0 {
		canonical["parameters"] = map[string]any{}
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		// parameters holding unmarshalable values still need a stable key
		return fmt.Sprintf("%s|%s|%v", c.Type, c.Expression, c.Parameters)
	}

	return string(raw)
}

func (c *Condition) clone() *Condition {
	if c == nil {
		return nil
	}

	out := *c
	out.Parameters = cloneMap(c.Parameters)

	return &out
}
