// Package httprequest provides the http_request step, which issues an HTTP request through the run session.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/session"
	"github.com/dukex/stepflow/pkg/template"
)

const StepType = "http_request"

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// HTTPRequestStep performs one HTTP request with optional retries.
type HTTPRequestStep struct {
	config HTTPRequestConfig
}

// HTTPRequestConfig defines the configuration for HTTP request steps.
type HTTPRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout"`
	Retries RetryConfig       `json:"retries"`
	SaveAs  string            `json:"saveAs,omitempty"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Delay    int `json:"delay"`
}

// NewHTTPRequestStep parses and validates the step config.
func NewHTTPRequestStep(config map[string]any) (*HTTPRequestStep, error) {
	httpConfig := HTTPRequestConfig{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: 30,
		Retries: RetryConfig{Attempts: 1, Delay: 0},
	}

	url, ok := config["url"].(string)
	if !ok || strings.TrimSpace(url) == "" {
		return nil, errors.New("missing required field 'url'")
	}

	httpConfig.URL = url

	if method, ok := config["method"].(string); ok {
		httpConfig.Method = strings.ToUpper(method)
	}

	if !validMethods[httpConfig.Method] {
		return nil, fmt.Errorf("invalid HTTP method: %s", httpConfig.Method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				httpConfig.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		httpConfig.Body = body
	}

	if saveAs, ok := config["saveAs"].(string); ok {
		httpConfig.SaveAs = strings.TrimSpace(saveAs)
	}

	if timeout, ok := number(config["timeout"]); ok {
		if timeout < 1 || timeout > 300 {
			return nil, errors.New("timeout must be between 1 and 300 seconds")
		}

		httpConfig.Timeout = timeout
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := number(retries["attempts"]); ok {
			if attempts < 1 || attempts > 10 {
				return nil, errors.New("retry attempts must be between 1 and 10")
			}

			httpConfig.Retries.Attempts = attempts
		}

		if delay, ok := number(retries["delay"]); ok {
			if delay < 0 || delay > 30000 {
				return nil, errors.New("retry delay must be between 0 and 30000 milliseconds")
			}

			httpConfig.Retries.Delay = delay
		}
	}

	return &HTTPRequestStep{config: httpConfig}, nil
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Execute renders the request against run variables and performs it. Client errors are not retried.
func (s *HTTPRequestStep) Execute(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
	tplCtx := template.Context{RunID: rt.RunID, WorkflowID: rt.WorkflowID, StepID: rt.Step.ID}
	if rt.Execution != nil {
		tplCtx.Variables = rt.Execution.Variables()
	}

	url, err := template.RenderString(s.config.URL, tplCtx)
	if err != nil {
		return protocol.NoResult(), fmt.Errorf("failed to render URL template: %w", err)
	}

	var body string
	if s.config.Body != "" {
		body, err = template.RenderString(s.config.Body, tplCtx)
		if err != nil {
			return protocol.NoResult(), fmt.Errorf("failed to render body template: %w", err)
		}
	}

	headers := make(map[string]string, len(s.config.Headers))
	for key, value := range s.config.Headers {
		rendered, err := template.RenderString(value, tplCtx)
		if err != nil {
			rendered = value
		}

		headers[key] = rendered
	}

	client, err := s.client(rt.Session)
	if err != nil {
		return protocol.NoResult(), err
	}

	var lastErr error

	for attempt := 1; attempt <= s.config.Retries.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return protocol.NoResult(), ctx.Err()
			case <-time.After(time.Duration(s.config.Retries.Delay) * time.Millisecond):
			}
		}

		result, err := s.performRequest(ctx, client, url, body, headers)
		if err == nil {
			if s.config.SaveAs != "" && rt.Execution != nil {
				rt.Execution.SetVar(s.config.SaveAs, result)
			}

			return protocol.Outputs(result), nil
		}

		lastErr = err

		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
			break
		}
	}

	return protocol.NoResult(), fmt.Errorf("HTTP request failed after %d attempts: %w", s.config.Retries.Attempts, lastErr)
}

// client prefers the session client so cookies persist across steps of a run.
func (s *HTTPRequestStep) client(sess protocol.Session) (*http.Client, error) {
	if httpSession, ok := sess.(session.HTTPClient); ok {
		return httpSession.Client()
	}

	return &http.Client{Timeout: time.Duration(s.config.Timeout) * time.Second}, nil
}

func (s *HTTPRequestStep) performRequest(
	ctx context.Context,
	client *http.Client,
	url, body string,
	headers map[string]string,
) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, s.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	result := map[string]any{
		"url":         resp.Request.URL.String(),
		"status_code": resp.StatusCode,
		"headers":     flattenHeaders(resp.Header),
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}

func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for key := range h {
		out[key] = h.Get(key)
	}

	return out
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
