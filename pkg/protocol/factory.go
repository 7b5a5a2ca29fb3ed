package protocol

// StepFactory describes a step type and provides its handler.
type StepFactory interface {
	// ID returns the step type this factory handles, such as "log" or "navigate"
	ID() string

	// Name returns the human-readable name for this step type
	Name() string

	// Description returns a description of what this step does
	Description() string

	// Schema returns the JSON schema for the step config
	Schema() map[string]any

	// Handler returns the function that executes the step
	Handler() StepHandler
}
