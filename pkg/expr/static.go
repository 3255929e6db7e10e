package expr

import "context"

// Static is a fixture evaluator returning canned results per expression.
// Unknown expressions fail with an EvaluationError, mirroring an
// unresolvable reference in a real grammar.
type Static struct {
	Results map[string]any
}

func NewStatic(results map[string]any) *Static {
	return &Static{Results: results}
}

func (s *Static) Evaluate(_ context.Context, expression string, _ map[string]any) (any, error) {
	result, ok := s.Results[expression]
	if !ok {
		return nil, &EvaluationError{Expression: expression, Reason: "unknown expression"}
	}

	return result, nil
}
