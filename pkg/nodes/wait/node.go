// Package wait provides the wait step, which pauses a run for a fixed duration.
package wait

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/dukex/stepflow/pkg/protocol"
)

const DefaultDuration = time.Second

// WaitStep sleeps for its duration or until the context is done.
type WaitStep struct {
	duration time.Duration
}

// NewWaitStep reads config.durationMs. Missing, negative or unparsable values fall back to one second.
func NewWaitStep(config map[string]any) *WaitStep {
	return &WaitStep{duration: parseDuration(config["durationMs"])}
}

// Duration returns the configured pause.
func (s *WaitStep) Duration() time.Duration {
	return s.duration
}

// Execute waits.
func (s *WaitStep) Execute(ctx context.Context, _ protocol.Runtime) (protocol.Result, error) {
	timer := time.NewTimer(s.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return protocol.NoResult(), ctx.Err()
	case <-timer.C:
		return protocol.Outputs(map[string]any{"waitedMs": s.duration.Milliseconds()}), nil
	}
}

func parseDuration(raw any) time.Duration {
	var ms float64

	switch v := raw.(type) {
	case float64:
		ms = v
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return DefaultDuration
		}

		ms = parsed
	default:
		return DefaultDuration
	}

	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return DefaultDuration
	}

	return time.Duration(ms * float64(time.Millisecond))
}
