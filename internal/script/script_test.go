package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	cases := map[string]string{
		"${amount > 100}":              "return (amount > 100)",
		"${a && !b}":                   "return (a and  not b)",
		"${x != null}":                 "return (x~= nil )",
		"${x eq 'a&&b'}":               "return (x == 'a&&b')",
		"#{empty name}":                "return (__empty(name))",
		"hello ${name}!":               `return "hello " .. __str(name) .. "!"`,
		"plain":                        `return "plain"`,
		"${execution.getVariable('a')}": "return (execution.getVariable('a'))",
	}
	for in, want := range cases {
		assert.Equal(t, want, Translate(in), in)
	}
}

func TestEvalCondition(t *testing.T) {
	r := NewRuntime()
	b := Bindings{Variables: map[string]any{"amount": int64(150), "approved": true, "note": nil}}

	ok, err := r.EvalCondition(b, "${amount > 100 && approved}")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.EvalCondition(b, "${note == null}")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.EvalCondition(b, "${amount}")
	assert.True(t, errors.Is(err, ErrEvaluation))

	_, err = r.EvalCondition(b, "${missing > 1}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown property used in expression: missing")
}

func TestEvalExpressionUpdates(t *testing.T) {
	r := NewRuntime()
	b := Bindings{
		Variables: map[string]any{"count": int64(2)},
		Execution: map[string]any{"id": "exec-1"},
	}
	v, u, err := r.EvalExpression(b, "${execution.setVariable('seen', execution.id)}")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, []string{"seen"}, u.Names)
	assert.Equal(t, "exec-1", u.Values["seen"])

	v, _, err = r.EvalExpression(b, "${count * 2}")
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	v, _, err = r.EvalExpression(b, "total: ${count}")
	require.NoError(t, err)
	assert.Equal(t, "total: 2", v)
}

func TestRunScript(t *testing.T) {
	r := NewRuntime()
	b := Bindings{Variables: map[string]any{"items": []any{int64(1), int64(2), int64(3)}}}
	src := `
local sum = 0
for _, v in ipairs(items) do sum = sum + v end
setVariable("sum", sum)
setVariable("ratio", sum / 4)
setVariable("tags", {"a", "b"})
return getVariable("sum") + 1`
	v, u, err := r.RunScript(b, src)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, []string{"sum", "ratio", "tags"}, u.Names)
	assert.Equal(t, int64(6), u.Values["sum"])
	assert.Equal(t, 1.5, u.Values["ratio"])
	assert.Equal(t, []any{"a", "b"}, u.Values["tags"])
}

func TestSandbox(t *testing.T) {
	r := NewRuntime()
	_, _, err := r.RunScript(Bindings{}, `return os.time()`)
	require.Error(t, err)
	_, _, err = r.RunScript(Bindings{}, `error("boom")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
