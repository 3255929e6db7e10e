// Package expr defines the pluggable expression evaluator used to select
// successor tasks and to resolve group assignments.
package expr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Evaluator evaluates a successor-selection or group expression against a
// completion context. Evaluation must be pure: no side effects, same result
// for the same inputs.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, env map[string]any) (any, error)
}

// EvaluationError indicates a malformed expression, an unresolvable
// reference or unusable output. The triggering mutation is rolled back
// entirely; there is no partial application.
type EvaluationError struct {
	Expression string
	Reason     string
	Err        error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluating %q: %s: %v", e.Expression, e.Reason, e.Err)
	}

	return fmt.Sprintf("evaluating %q: %s", e.Expression, e.Reason)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// IsEvaluationError checks whether err stems from expression evaluation.
func IsEvaluationError(err error) bool {
	var evalErr *EvaluationError

	return errors.As(err, &evalErr)
}

// Normalize converts an evaluator result into a list of identifiers. A
// scalar becomes a singleton list, nil and the empty string become the
// empty list.
func Normalize(result any) []string {
	switch value := result.(type) {
	case nil:
		return []string{}
	case string:
		if value == "" {
			return []string{}
		}

		return []string{value}
	case []string:
		return value
	case []any:
		identifiers := make([]string, 0, len(value))
		for _, item := range value {
			identifiers = append(identifiers, stringify(item))
		}

		return identifiers
	default:
		return []string{stringify(value)}
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
