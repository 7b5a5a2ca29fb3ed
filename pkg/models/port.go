package models

// Port declares a named input or output of a node.
type Port struct {
	Name     string `json:"name"               yaml:"name"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// PortDirection represents the direction of data flow for a port.
type PortDirection string

const (
	PortDirectionInput  PortDirection = "input"
	PortDirectionOutput PortDirection = "output"
)

func findPort(ports []Port, name string) (Port, bool) {
	for _, port := range ports {
		if port.Name == name {
			return port, true
		}
	}

	return Port{}, false
}
