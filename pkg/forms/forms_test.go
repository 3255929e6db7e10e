package forms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/pkg/forms"
	"github.com/caseflow/caseflow/pkg/models"
)

func applicationForm() *models.Form {
	return &models.Form{
		Slug: "application",
		Name: "Permit Application",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"applicant"},
			"properties": map[string]any{
				"applicant": map[string]any{"type": "string"},
				"urgent":    map[string]any{"type": "boolean"},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	err := forms.Validate(applicationForm(), map[string]any{
		"applicant": "ACME Inc.",
		"urgent":    true,
	})
	require.NoError(t, err)
}

func TestValidateRejectsInvalidDocument(t *testing.T) {
	err := forms.Validate(applicationForm(), map[string]any{"urgent": "yes"})
	require.ErrorIs(t, err, forms.ErrDocumentInvalid)
	assert.Contains(t, err.Error(), "application")
}

func TestValidateSchemalessFormAcceptsAnything(t *testing.T) {
	form := &models.Form{Slug: "freeform", Name: "Freeform"}

	require.NoError(t, forms.Validate(form, map[string]any{"anything": 42}))
	require.NoError(t, forms.Validate(nil, nil))
}
