package expr

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flosch/pongo2/v4"
)

// Pongo2Evaluator evaluates Django-style expressions. Static JSON
// expressions ("approve", ["a", "b"]) are decoded directly; anything else
// is rendered as a template against the completion context and the output
// is JSON-decoded when possible. A `json` helper is available inside
// templates to serialize lists, e.g. {{ json(groups) }}.
type Pongo2Evaluator struct{}

func NewPongo2Evaluator() *Pongo2Evaluator {
	// Expressions produce identifiers and JSON, not HTML.
	pongo2.SetAutoescape(false)

	return &Pongo2Evaluator{}
}

func (e *Pongo2Evaluator) Evaluate(_ context.Context, expression string, env map[string]any) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, nil
	}

	var static any
	if err := json.Unmarshal([]byte(trimmed), &static); err == nil {
		return static, nil
	}

	source := trimmed
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		source = "{{ " + source + " }}"
	}

	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, &EvaluationError{Expression: expression, Reason: "malformed expression", Err: err}
	}

	pongoCtx := pongo2.Context{
		"json": func(value any) string {
			encoded, err := json.Marshal(value)
			if err != nil {
				return ""
			}

			return string(encoded)
		},
	}
	for key, value := range env {
		pongoCtx[key] = value
	}

	rendered, err := tpl.Execute(pongoCtx)
	if err != nil {
		return nil, &EvaluationError{Expression: expression, Reason: "evaluation failed", Err: err}
	}

	rendered = strings.TrimSpace(rendered)
	if rendered == "" {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(rendered), &decoded); err != nil {
		// Not JSON: treat the rendered output as a plain identifier.
		return rendered, nil
	}

	return decoded, nil
}
