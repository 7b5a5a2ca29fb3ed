// Package log provides the log step, which renders a message against run variables and publishes it.
package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/template"
)

const (
	EventType     = "log"
	DefaultTarget = "agent-flow"
)

// LogLevel represents different logging levels.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
)

var logLevelName = map[LogLevel]string{
	Debug: "debug",
	Info:  "info",
	Warn:  "warn",
	Error: "error",
}

// LogStep logs a templated message.
type LogStep struct {
	message string
	level   string
	target  string
}

// NewLogStep parses the step config.
func NewLogStep(config map[string]any) (*LogStep, error) {
	message := ""
	if raw, ok := config["message"]; ok {
		msg, ok := raw.(string)
		if !ok {
			return nil, errors.New("field 'message' must be a string")
		}

		message = msg
	}

	level := logLevelName[Info]
	if lvl, ok := config["level"].(string); ok && lvl != "" {
		level = lvl
	}

	target := DefaultTarget
	if tgt, ok := config["target"].(string); ok && tgt != "" {
		target = tgt
	}

	return &LogStep{message: message, level: level, target: target}, nil
}

// Execute renders and logs the message, then publishes a log entry for the run.
func (s *LogStep) Execute(ctx context.Context, rt protocol.Runtime) (protocol.Result, error) {
	vars := map[string]any{}
	if rt.Execution != nil {
		vars = rt.Execution.Variables()
	}

	message, err := template.RenderString(s.message, template.Context{
		RunID:      rt.RunID,
		WorkflowID: rt.WorkflowID,
		StepID:     rt.Step.ID,
		Variables:  vars,
	})
	if err != nil {
		return protocol.NoResult(), fmt.Errorf("failed to render log message template: %w", err)
	}

	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("step_id", rt.Step.ID, "step_type", "log", "target", s.target)

	switch s.level {
	case logLevelName[Debug]:
		logger.DebugContext(ctx, message)
	case logLevelName[Warn]:
		logger.WarnContext(ctx, message)
	case logLevelName[Error]:
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	entry := map[string]any{
		"type":    EventType,
		"target":  s.target,
		"level":   s.level,
		"message": message,
	}

	if rt.Publish != nil {
		if err := rt.Publish(ctx, EventType, entry); err != nil {
			logger.WarnContext(ctx, "failed to publish log entry", "error", err)
		}
	}

	return protocol.Outputs(entry), nil
}
