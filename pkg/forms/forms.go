// Package forms validates case and work item documents against the JSON
// schema of their form. Document content is opaque to the engine; the
// check happens at the API boundary only.
package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/caseflow/caseflow/pkg/models"
)

// ErrDocumentInvalid indicates a document does not conform to its form
// schema.
var ErrDocumentInvalid = errors.New("document does not match form schema")

// Validate checks a document against the schema of the given form. Forms
// without a schema accept any document.
func Validate(form *models.Form, document map[string]any) error {
	if form == nil || len(form.Schema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(form.Schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate document against form %s: %w", form.Slug, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultError := range result.Errors() {
		details = append(details, resultError.String())
	}

	return fmt.Errorf("form %s: %s: %w", form.Slug, strings.Join(details, "; "), ErrDocumentInvalid)
}
