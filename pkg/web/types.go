package web

import "time"

// CreateRunRequest is the body of POST /runs. A missing run id is generated.
type CreateRunRequest struct {
	RunID    string         `json:"runId"    validate:"omitempty,max=255"`
	Workflow map[string]any `json:"workflow" validate:"required"`
}

// CreateRunResponse acknowledges an admitted run.
type CreateRunResponse struct {
	RunID string `json:"runId"`
}

// HealthResponse reports the health of the runner.
type HealthResponse struct {
	Status         string            `json:"status"`
	ActiveRuns     int               `json:"activeRuns"`
	MaxConcurrency int               `json:"maxConcurrency"`
	Checkers       map[string]string `json:"checkers"`
}

// RecordMetricRequest is the body of POST /runs/:id/metrics. A missing timestamp means now.
type RecordMetricRequest struct {
	Key       string     `json:"key"       validate:"required"`
	Type      string     `json:"type"      validate:"required"`
	Value     any        `json:"value"`
	Unit      string     `json:"unit"`
	Timestamp *time.Time `json:"timestamp"`
}
