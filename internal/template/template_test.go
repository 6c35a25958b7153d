package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTemplate(t *testing.T) {
	cases := map[string]bool{
		"{{payload.name}}": true,
		"{{a}}":            true,
		"plain string":     false,
		"{{unterminated":   false,
		"prefix{{a}}":      false,
		"{{a}}suffix":      false,
		"{{}}":             true,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsTemplate(in), "input: %q", in)
	}
}

func TestResolveWholeString(t *testing.T) {
	ctx := map[string]any{
		"payload": map[string]any{"name": "alice", "count": 3},
		"steps": map[string]any{
			"a": map[string]any{"path": "/tmp/a"},
		},
	}

	require.Equal(t, "alice", Resolve("{{payload.name}}", ctx))
	require.Equal(t, 3, Resolve("{{payload.count}}", ctx))
	require.Equal(t, "/tmp/a", Resolve("{{steps.a.path}}", ctx))
}

func TestResolveArrayIndex(t *testing.T) {
	ctx := map[string]any{
		"steps": []any{
			map[string]any{"path": "/tmp/0"},
			map[string]any{"path": "/tmp/1"},
		},
	}
	require.Equal(t, "/tmp/0", Resolve("{{steps.0.path}}", ctx))
	require.Equal(t, "/tmp/1", Resolve("{{steps.1.path}}", ctx))
}

func TestResolveMissingPathIsUndefined(t *testing.T) {
	ctx := map[string]any{"payload": map[string]any{"name": "alice"}}

	assert.True(t, IsUndefined(Resolve("{{payload.missing}}", ctx)))
	assert.True(t, IsUndefined(Resolve("{{missing.a.b}}", ctx)))
	assert.True(t, IsUndefined(Resolve("{{payload.name.nested}}", ctx)))
}

func TestResolveOutOfRangeIndexIsUndefined(t *testing.T) {
	ctx := map[string]any{"steps": []any{map[string]any{"x": 1}}}
	assert.True(t, IsUndefined(Resolve("{{steps.5.x}}", ctx)))
	assert.True(t, IsUndefined(Resolve("{{steps.-1.x}}", ctx)))
}

func TestRenderFieldPassesNonTemplatesThrough(t *testing.T) {
	ctx := map[string]any{"payload": map[string]any{"n": 5}}
	out := RenderField(map[string]string{
		"a": "{{payload.n}}",
		"b": "literal",
	}, ctx)

	assert.Equal(t, 5, out["a"])
	assert.Equal(t, "literal", out["b"])
}

func TestRenderValueRecursesThroughMapsAndSlices(t *testing.T) {
	ctx := map[string]any{"payload": map[string]any{"n": 5}}
	in := map[string]any{
		"nested": map[string]any{"x": "{{payload.n}}"},
		"list":   []any{"{{payload.n}}", "literal"},
	}

	out := RenderValue(in, ctx).(map[string]any)
	assert.Equal(t, 5, out["nested"].(map[string]any)["x"])
	list := out["list"].([]any)
	assert.Equal(t, 5, list[0])
	assert.Equal(t, "literal", list[1])
}

func TestResolveIsPure(t *testing.T) {
	ctx := map[string]any{"payload": map[string]any{"n": 5}}
	first := Resolve("{{payload.n}}", ctx)
	second := Resolve("{{payload.n}}", ctx)
	assert.Equal(t, first, second)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(Undefined{}))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(""))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy([]any{}))
	assert.True(t, Truthy(map[string]any{}))
}
