package expr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPongo2EvaluatorStaticJSON(t *testing.T) {
	evaluator := NewPongo2Evaluator()

	result, err := evaluator.Evaluate(context.Background(), `"approve"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "approve", result)

	result, err = evaluator.Evaluate(context.Background(), `["approve", "reject"]`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"approve", "reject"}, result)
}

func TestPongo2EvaluatorConditional(t *testing.T) {
	evaluator := NewPongo2Evaluator()
	expression := `{% if group == "legal" %}"approve"{% endif %}`

	result, err := evaluator.Evaluate(context.Background(), expression, map[string]any{"group": "legal"})
	require.NoError(t, err)
	assert.Equal(t, "approve", result)

	result, err = evaluator.Evaluate(context.Background(), expression, map[string]any{"group": "sales"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestPongo2EvaluatorVariable(t *testing.T) {
	evaluator := NewPongo2Evaluator()

	result, err := evaluator.Evaluate(context.Background(), "next_task", map[string]any{"next_task": "approve"})
	require.NoError(t, err)
	assert.Equal(t, "approve", result)
}

func TestPongo2EvaluatorJSONHelper(t *testing.T) {
	evaluator := NewPongo2Evaluator()

	result, err := evaluator.Evaluate(
		context.Background(),
		"{{ json(groups) }}",
		map[string]any{"groups": []string{"legal", "audit"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"legal", "audit"}, result)
}

func TestPongo2EvaluatorMalformed(t *testing.T) {
	evaluator := NewPongo2Evaluator()

	_, err := evaluator.Evaluate(context.Background(), "{% if %}", nil)
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
}

func TestPongo2EvaluatorEmpty(t *testing.T) {
	evaluator := NewPongo2Evaluator()

	result, err := evaluator.Evaluate(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{}, Normalize(nil))
	assert.Equal(t, []string{}, Normalize(""))
	assert.Equal(t, []string{"approve"}, Normalize("approve"))
	assert.Equal(t, []string{"a", "b"}, Normalize([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, Normalize([]any{"a", "b"}))
	assert.Equal(t, []string{"42"}, Normalize(float64(42)))
}

func TestStaticEvaluator(t *testing.T) {
	evaluator := NewStatic(map[string]any{"next": "approve"})

	result, err := evaluator.Evaluate(context.Background(), "next", nil)
	require.NoError(t, err)
	assert.Equal(t, "approve", result)

	_, err = evaluator.Evaluate(context.Background(), "missing", nil)
	assert.True(t, IsEvaluationError(err))
}
