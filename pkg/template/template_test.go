package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Coercion(t *testing.T) {
	data := map[string]any{
		"title": "Example Domain",
		"price": 12.5,
		"ok":    true,
		"items": []any{"a", "b"},
	}

	tests := []struct {
		name     string
		template string
		expected any
	}{
		{name: "text", template: "{{ .title }}", expected: "Example Domain"},
		{name: "number", template: "{{ .price }}", expected: 12.5},
		{name: "boolean", template: "{{ .ok }}", expected: true},
		{name: "object", template: `{"title": "{{ .title }}", "count": {{ len .items }}}`, expected: map[string]any{"title": "Example Domain", "count": 2.0}},
		{name: "array", template: `[{{ range $i, $v := .items }}{{ if $i }},{{ end }}"{{ $v }}"{{ end }}]`, expected: []any{"a", "b"}},
		{name: "interpolation", template: "https://example.com/{{ .title }}?ok={{ .ok }}", expected: "https://example.com/Example Domain?ok=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("{{ nonexistent.field }}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")

	_, err = Render(`{"broken": {{ .missing }}}`, map[string]any{})
	require.Error(t, err)
}

func TestRenderWithContext_EnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	result, err := RenderWithContext("{{ .env.TEST_VAR }}", Context{})
	require.NoError(t, err)
	assert.Equal(t, "test_value", result)

	// bare identifiers are not template fields
	_, err = Render("{{ env.TEST_VAR }}", map[string]any{})
	assert.Error(t, err)
}

func TestExpandVariables(t *testing.T) {
	vars := map[string]any{"user": "alice", "count": 3, "empty": nil}

	assert.Equal(t, "hello alice (3)", ExpandVariables("hello {{ variables.user }} ({{variables.count}})", vars))
	assert.Equal(t, "missing: ''", ExpandVariables("missing: '{{ variables.nope }}'", vars))
	assert.Equal(t, "nil: ''", ExpandVariables("nil: '{{ variables.empty }}'", vars))
	assert.Equal(t, "{{ .vars.user }}", ExpandVariables("{{ .vars.user }}", vars))
}

func TestRenderString(t *testing.T) {
	ctx := Context{RunID: "run-1", StepID: "log-1", Variables: map[string]any{"title": "Example Domain", "price": "1.50"}}

	out, err := RenderString("Title: {{ variables.title }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Title: Example Domain", out)

	out, err = RenderString("{{ .vars.price }} in {{ .execution.run_id }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.50 in run-1", out)

	_, err = RenderString("{{ .vars.price", ctx)
	assert.Error(t, err)
}
