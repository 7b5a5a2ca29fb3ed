package httprequest

import (
	"context"

	"github.com/dukex/stepflow/pkg/protocol"
)

// HTTPRequestStepFactory registers the http_request step.
type HTTPRequestStepFactory struct{}

// NewHTTPRequestStepFactory creates a new HTTP request step factory.
func NewHTTPRequestStepFactory() *HTTPRequestStepFactory {
	return &HTTPRequestStepFactory{}
}

// ID returns the factory ID.
func (f *HTTPRequestStepFactory) ID() string {
	return StepType
}

// Name returns the factory name.
func (f *HTTPRequestStepFactory) Name() string {
	return "HTTP Request"
}

// Description returns the factory description.
func (f *HTTPRequestStepFactory) Description() string {
	return "Performs an HTTP request through the run session with retries; cookies persist across steps"
}

// Handler returns the step handler.
func (f *HTTPRequestStepFactory) Handler() protocol.StepHandler {
	return func(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
		step, err := NewHTTPRequestStep(rt.Step.Config)
		if err != nil {
			return protocol.NoResult(), err
		}

		return step.Execute(ctx, rt)
	}
}

// Schema returns the JSON schema for HTTP request node configuration.
func (f *HTTPRequestStepFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP URL to request. Supports {{ variables.name }} and Go templates over .variables",
				"examples": []string{
					"https://api.example.com/users",
					"{{ variables.profile_url }}",
					"https://{{.variables.api_host}}/runs/{{.execution.run_id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers. Values support templating",
				"examples": []map[string]any{
					{"Authorization": "Bearer {{.variables.api_token}}"},
					{"Content-Type": "application/json", "User-Agent": "stepflow/1.0"},
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating for dynamic content",
				"examples": []string{
					`{"name": "{{ variables.user_name }}", "run": "{{.execution.run_id}}"}`,
				},
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
			"saveAs": map[string]any{
				"type":        "string",
				"description": "Variable name that receives the response",
			},
			"retries": map[string]any{
				"type":        "object",
				"description": "Retry configuration for failed requests",
				"properties": map[string]any{
					"attempts": map[string]any{
						"type":        "number",
						"description": "Number of retry attempts (including initial request)",
						"default":     1,
						"minimum":     1,
						"maximum":     10,
					},
					"delay": map[string]any{
						"type":        "number",
						"description": "Delay between retries in milliseconds",
						"default":     1000,
						"minimum":     0,
						"maximum":     30000,
					},
				},
				"examples": []map[string]any{
					{"attempts": 3, "delay": 1000},
					{"attempts": 5, "delay": 2000},
				},
			},
		},
		"required": []string{"url"},
		"examples": []map[string]any{
			{
				"url":    "https://api.github.com/user",
				"method": "GET",
				"headers": map[string]string{
					"Authorization": "Bearer {{.variables.github_token}}",
					"Accept":        "application/vnd.github.v3+json",
				},
			},
			{
				"url":     "{{ variables.callback_url }}",
				"method":  "POST",
				"headers": map[string]string{"Content-Type": "application/json"},
				"body":    `{"status": "completed", "run": "{{.execution.run_id}}"}`,
				"retries": map[string]any{"attempts": 3, "delay": 1000},
				"saveAs":  "callback",
			},
		},
	}
}
