// Package template renders step config strings against run data.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var variableShorthand = regexp.MustCompile(`{{\s*variables\.([a-zA-Z0-9_]+)\s*}}`)

// Context is the run data a template can reference.
type Context struct {
	RunID      string
	WorkflowID string
	StepID     string
	Variables  map[string]any
}

func (c Context) data() map[string]any {
	vars := c.Variables
	if vars == nil {
		vars = map[string]any{}
	}

	return map[string]any{
		"variables": vars,
		"vars":      vars,
		"env":       getEnvVars(),
		"execution": map[string]any{
			"run_id":      c.RunID,
			"workflow_id": c.WorkflowID,
			"step_id":     c.StepID,
		},
	}
}

// ExpandVariables replaces the {{ variables.name }} shorthand with the variable value. Missing and nil
// variables render as an empty string.
func ExpandVariables(input string, vars map[string]any) string {
	return variableShorthand.ReplaceAllStringFunc(input, func(match string) string {
		key := variableShorthand.FindStringSubmatch(match)[1]

		value, ok := vars[key]
		if !ok || value == nil {
			return ""
		}

		return fmt.Sprint(value)
	})
}

// RenderString expands the variable shorthand and then renders the remaining Go template, returning text.
func RenderString(input string, ctx Context) (string, error) {
	expanded := ExpandVariables(input, ctx.Variables)
	if !strings.Contains(expanded, "{{") {
		return expanded, nil
	}

	return execute(expanded, ctx.data())
}

// RenderWithContext renders input against the run context and coerces the result like Render.
func RenderWithContext(input string, ctx Context) (any, error) {
	return Render(ExpandVariables(input, ctx.Variables), ctx.data())
}

// Render executes a Go template and coerces the text to JSON, a number or a boolean when it parses as one.
func Render(templateStr string, data any) (any, error) {
	rendered, err := execute(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(rendered)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func execute(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("step").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)

				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
