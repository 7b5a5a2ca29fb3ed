package models

// ExecutionStatus is shared by workflow and node executions.
type ExecutionStatus string

const (
	StatusNotStarted ExecutionStatus = "NotStarted"
	StatusRunning    ExecutionStatus = "Running"
	StatusSucceeded  ExecutionStatus = "Succeeded"
	StatusFailed     ExecutionStatus = "Failed"
	StatusCancelled  ExecutionStatus = "Cancelled"
)

// ParseExecutionStatus validates a status string. An empty string means NotStarted.
func ParseExecutionStatus(value string) (ExecutionStatus, error) {
	if value == "" {
		return StatusNotStarted, nil
	}

	status := ExecutionStatus(value)
	if !status.IsValid() {
		return "", NewValidationError("invalid execution status: %s", value)
	}

	return status, nil
}

// IsValid reports whether the status is one of the five known values.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

func (s ExecutionStatus) String() string {
	return string(s)
}
