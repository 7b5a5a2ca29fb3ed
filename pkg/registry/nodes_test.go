package registry

import (
	"testing"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestRegisterDefaultSteps(t *testing.T) {
	r := NewRegistry(log.Nop())

	r.RegisterDefaultSteps()

	assert.Equal(t, []string{"branch", "http_request", "log", "set", "switch", "transform", "wait"}, r.Types())

	for _, stepType := range r.Types() {
		schema, ok := r.Schema(stepType)
		assert.True(t, ok, "schema for %s", stepType)
		assert.Equal(t, "object", schema["type"])
	}
}
