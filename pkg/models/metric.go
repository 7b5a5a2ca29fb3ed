package models

import "time"

// Metric is a measurement recorded during an execution.
type Metric struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	Value     any       `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMetric validates a metric. A zero timestamp is replaced by the current time.
func NewMetric(key, metricType string, value any, unit string, timestamp time.Time) (Metric, error) {
	k, err := requireNonBlank(key, "metric key")
	if err != nil {
		return Metric{}, err
	}

	typ, err := requireNonBlank(metricType, "metric type")
	if err != nil {
		return Metric{}, err
	}

	if value == nil {
		return Metric{}, NewValidationError("metric %s value is required", k)
	}

	if unit != "" {
		if _, err := requireNonBlank(unit, "metric unit"); err != nil {
			return Metric{}, err
		}
	}

	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	return Metric{Key: k, Type: typ, Value: value, Unit: unit, Timestamp: timestamp}, nil
}

type metricShape struct {
	typ  string
	unit string
}
