package questionnaire

import (
	"fmt"
	"strings"

	"github.com/roach88/formsync/internal/form"
)

// Validator decides whether a page's answers may be submitted.
type Validator func(Page, form.Values) error

// ValidationError lists the fields that blocked a page.
type ValidationError struct {
	Group  string
	Fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("page %q: missing answers for %s", e.Group, strings.Join(e.Fields, ", "))
}

// RequiredValidator rejects a page when a required field that applies
// (its When condition holds) has no answer.
func RequiredValidator(p Page, values form.Values) error {
	var missing []string
	for _, f := range p.Fields {
		if !f.Required || !applies(f, values) {
			continue
		}
		if form.IsEmpty(values[f.Name]) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Group: p.Group, Fields: missing}
	}
	return nil
}

// applies reports whether f is asked given the answers so far.
func applies(f Field, values form.Values) bool {
	if f.When == "" {
		return true
	}
	b, ok := values[f.When].(form.Bool)
	return ok && bool(b)
}
