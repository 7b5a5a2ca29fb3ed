// Package definition turns workflow definition payloads, as posted to the runner or read from disk, into
// validated workflow graphs.
package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dukex/stepflow/pkg/models"
)

const (
	DefaultWorkflowName = "Untitled Workflow"
	DefaultNodeType     = "task"
)

// Metadata describes the loaded workflow.
type Metadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Loaded is a validated workflow plus the step a run should start from.
type Loaded struct {
	Workflow    *models.Workflow
	StartNodeID string
	Metadata    Metadata
}

// Loader normalizes definition payloads. Field aliases used by different editors are accepted.
type Loader struct {
	validate *validator.Validate
	schemas  SchemaSource
}

// NewLoader creates a loader. When schemas is not nil every node config is checked against the schema of its
// step type.
func NewLoader(schemas SchemaSource) *Loader {
	return &Loader{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		schemas:  schemas,
	}
}

var defaultLoader = NewLoader(nil)

// Load normalizes payload with a loader that does not check step configs.
func Load(payload map[string]any) (*Loaded, error) {
	return defaultLoader.Load(payload)
}

type edgeSpec struct {
	From     string `validate:"required"`
	To       string
	Priority *int `validate:"omitempty,min=0"`
}

type bindingSpec struct {
	SourceNodeID string `validate:"required"`
	SourceOutput string
	TargetNodeID string `validate:"required"`
	TargetInput  string `validate:"required"`
}

type streamSpec struct {
	From   string `validate:"required"`
	To     string `validate:"required,nefield=From"`
	Output string
}

// Load normalizes payload into a validated workflow.
func (l *Loader) Load(payload map[string]any) (*Loaded, error) {
	if payload == nil {
		return nil, models.NewValidationError("workflow payload is required")
	}

	if err := validateSchema("workflow payload", payloadSchema, payload); err != nil {
		return nil, err
	}

	base := payload
	if inner, ok := payload["definition"].(map[string]any); ok {
		base = inner
	}

	workflowID := pickString(payload["workflowId"], payload["id"], base["workflowId"], base["id"])
	if workflowID == "" {
		return nil, models.NewValidationError("workflow id is required")
	}

	name := pickString(payload["name"], base["name"], DefaultWorkflowName)

	rawNodes := toSlice(base["nodes"])
	if len(rawNodes) == 0 {
		return nil, models.NewValidationError("workflow must include nodes")
	}

	nodes, keys, err := l.nodes(rawNodes)
	if err != nil {
		return nil, err
	}

	edges, err := l.edges(toSlice(base["edges"]), keys)
	if err != nil {
		return nil, err
	}

	bindings, err := l.bindings(toSlice(base["dataBindings"]), keys)
	if err != nil {
		return nil, err
	}

	streams, err := l.streams(toSlice(base["streams"]), keys)
	if err != nil {
		return nil, err
	}

	description, _ := base["description"].(string)

	wf, err := models.NewWorkflow(models.WorkflowDefinition{
		ID:           workflowID,
		Name:         strings.TrimSpace(name),
		Description:  description,
		Nodes:        nodes,
		Edges:        edges,
		DataBindings: bindings,
		Streams:      streams,
	})
	if err != nil {
		return nil, err
	}

	start := pickString(payload["startNodeId"], base["startNodeId"], payload["start"], base["start"])
	if _, ok := wf.Node(start); !ok {
		start = ""
	}

	if start == "" {
		if starts := wf.StartNodeIDs(); len(starts) > 0 {
			start = starts[0]
		} else {
			start = nodes[0].ID
		}
	}

	return &Loaded{
		Workflow:    wf,
		StartNodeID: start,
		Metadata: Metadata{
			ID:          workflowID,
			Name:        name,
			Description: description,
		},
	}, nil
}

func (l *Loader) nodes(raw []any) ([]models.Node, map[string]string, error) {
	nodes := make([]models.Node, 0, len(raw))
	keys := make(map[string]string, len(raw))

	for i, item := range raw {
		in, ok := item.(map[string]any)
		if !ok {
			return nil, nil, models.NewValidationError("Node[%d] must be an object", i+1)
		}

		providedID := pickString(in["id"])
		providedKey := pickString(in["nodeKey"])

		id := providedID
		if id == "" {
			id = providedKey
		}

		if id == "" {
			id = uuid.NewString()
		}

		keys[id] = id
		if providedKey != "" {
			keys[providedKey] = id
		}

		config, _ := in["config"].(map[string]any)

		node := models.Node{
			ID:      id,
			Name:    pickString(in["name"], id),
			Type:    pickString(in["type"], DefaultNodeType),
			Inputs:  ports(in["inputs"], true),
			Outputs: ports(in["outputs"], false),
			Config:  config,
		}

		if err := validateNodeConfig(l.schemas, i, node); err != nil {
			return nil, nil, err
		}

		nodes = append(nodes, node)
	}

	return nodes, keys, nil
}

func (l *Loader) edges(raw []any, keys map[string]string) ([]models.Edge, error) {
	edges := make([]models.Edge, 0, len(raw))

	for i, item := range raw {
		in, ok := item.(map[string]any)
		if !ok {
			return nil, models.NewValidationError("Edge[%d] must be an object", i+1)
		}

		spec := edgeSpec{
			From: pickString(in["from"], in["fromId"], in["fromNodeId"], in["source"], in["sourceKey"]),
			To:   pickString(in["to"], in["toId"], in["toNodeId"], in["target"], in["targetNodeId"], in["targetKey"]),
		}

		if raw, present := in["priority"]; present && raw != nil {
			p, ok := toInt(raw)
			if !ok {
				return nil, models.NewValidationError("Edge[%d] priority must be an integer, got %v", i+1, raw)
			}

			spec.Priority = models.Priority(p)
		}

		if err := l.check(fmt.Sprintf("Edge[%d]", i+1), spec); err != nil {
			return nil, err
		}

		from, err := resolve(keys, spec.From, "Edge", i)
		if err != nil {
			return nil, err
		}

		to := ""
		if spec.To != "" {
			if to, err = resolve(keys, spec.To, "Edge", i); err != nil {
				return nil, err
			}
		}

		condition, err := toCondition(in["condition"], i)
		if err != nil {
			return nil, err
		}

		edges = append(edges, models.Edge{From: from, To: to, Condition: condition, Priority: spec.Priority})
	}

	return edges, nil
}

func (l *Loader) bindings(raw []any, keys map[string]string) ([]models.DataBinding, error) {
	bindings := make([]models.DataBinding, 0, len(raw))

	for i, item := range raw {
		in, ok := item.(map[string]any)
		if !ok {
			return nil, models.NewValidationError("DataBinding[%d] must be an object", i+1)
		}

		spec := bindingSpec{
			SourceNodeID: pickString(in["sourceNodeId"], in["from"], in["source"]),
			SourceOutput: pickString(in["sourceOutput"], in["output"]),
			TargetNodeID: pickString(in["targetNodeId"], in["to"], in["target"]),
			TargetInput:  pickString(in["targetInput"], in["input"]),
		}

		if err := l.check(fmt.Sprintf("DataBinding[%d]", i+1), spec); err != nil {
			return nil, err
		}

		source, err := resolve(keys, spec.SourceNodeID, "DataBinding", i)
		if err != nil {
			return nil, err
		}

		target, err := resolve(keys, spec.TargetNodeID, "DataBinding", i)
		if err != nil {
			return nil, err
		}

		bindings = append(bindings, models.DataBinding{
			SourceNodeID: source,
			SourceOutput: spec.SourceOutput,
			TargetNodeID: target,
			TargetInput:  spec.TargetInput,
		})
	}

	return bindings, nil
}

func (l *Loader) streams(raw []any, keys map[string]string) ([]models.Stream, error) {
	streams := make([]models.Stream, 0, len(raw))

	for i, item := range raw {
		in, ok := item.(map[string]any)
		if !ok {
			return nil, models.NewValidationError("Stream[%d] must be an object", i+1)
		}

		spec := streamSpec{
			From:   pickString(in["sourceNodeId"], in["from"], in["source"]),
			To:     pickString(in["targetNodeId"], in["to"], in["target"]),
			Output: pickString(in["output"], in["sourceOutput"]),
		}

		if err := l.check(fmt.Sprintf("Stream[%d]", i+1), spec); err != nil {
			return nil, err
		}

		from, err := resolve(keys, spec.From, "Stream", i)
		if err != nil {
			return nil, err
		}

		to, err := resolve(keys, spec.To, "Stream", i)
		if err != nil {
			return nil, err
		}

		streams = append(streams, models.Stream{From: from, To: to, Output: spec.Output})
	}

	return streams, nil
}

// check runs the struct validator and turns its first failure into a ValidationError.
func (l *Loader) check(label string, spec any) error {
	err := l.validate.Struct(spec)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]

		switch fe.Tag() {
		case "required":
			return models.NewValidationError("%s is missing %s", label, fieldLabel(fe.Field()))
		case "nefield":
			return models.NewValidationError("%s source and target cannot match", label)
		default:
			return models.NewValidationError("%s has invalid %s", label, fieldLabel(fe.Field()))
		}
	}

	return models.NewValidationError("%s: %v", label, err)
}

func fieldLabel(field string) string {
	switch field {
	case "From", "SourceNodeID":
		return "source reference"
	case "To", "TargetNodeID":
		return "target reference"
	case "TargetInput":
		return "targetInput"
	default:
		return strings.ToLower(field)
	}
}

func resolve(keys map[string]string, ref, kind string, index int) (string, error) {
	id, ok := keys[ref]
	if !ok {
		return "", models.NewValidationError("%s[%d] references unknown node %q", kind, index+1, ref)
	}

	return id, nil
}

func toCondition(raw any, index int) (*models.Condition, error) {
	if raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case string:
		// A bare string is an expression.
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}

		return models.NewCondition(models.ConditionTypeExpression, v, nil)
	case map[string]any:
		conditionType := pickString(v["type"], string(models.ConditionTypeExpression))
		expression, _ := v["expression"].(string)
		parameters, _ := v["parameters"].(map[string]any)

		return models.NewCondition(models.ConditionType(conditionType), expression, parameters)
	default:
		return nil, models.NewValidationError("Edge[%d] condition must be an object or an expression string", index+1)
	}
}

// ports accepts port names or {name, required} objects.
func ports(raw any, requiredByDefault bool) []models.Port {
	items := toSlice(raw)
	if len(items) == 0 {
		return nil
	}

	out := make([]models.Port, 0, len(items))

	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, models.Port{Name: v, Required: requiredByDefault})
		case map[string]any:
			required := requiredByDefault
			if r, ok := v["required"].(bool); ok {
				required = r
			}

			out = append(out, models.Port{Name: pickString(v["name"]), Required: required})
		}
	}

	return out
}

func pickString(values ...any) string {
	for _, value := range values {
		if s, ok := value.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}

	return ""
}

func toSlice(v any) []any {
	items, _ := v.([]any)

	return items
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}

		return int(n), true
	case json.Number:
		i, err := n.Int64()

		return int(i), err == nil
	default:
		return 0, false
	}
}

// Parse decodes a JSON or YAML document into a payload for Load.
func Parse(data []byte, format string) (map[string]any, error) {
	var payload map[string]any

	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, models.NewValidationError("invalid YAML workflow definition: %v", err)
		}
	case "json", "":
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, models.NewValidationError("invalid JSON workflow definition: %v", err)
		}
	default:
		return nil, models.NewValidationError("unsupported workflow definition format %q", format)
	}

	if payload == nil {
		return nil, models.NewValidationError("workflow payload is required")
	}

	return payload, nil
}

// ParseFile reads a .json, .yaml or .yml definition file.
func ParseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition %s: %w", path, err)
	}

	return Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadFile reads and loads a definition file.
func (l *Loader) LoadFile(path string) (*Loaded, error) {
	payload, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	return l.Load(payload)
}
