package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/gospool/internal/assets/schemas"
	"github.com/3leaps/gospool/pkg/pages"
)

// ErrValidationFailed is wrapped by every ValidationErrors value.
var ErrValidationFailed = errors.New("manifest validation failed")

// ValidationError is one problem, located by JSON pointer (e.g. "/jobs/0/layout").
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects every problem found in one manifest.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ErrValidationFailed.Error()
	case 1:
		return e[0].Error()
	}
	lines := make([]string, 0, len(e)+1)
	lines = append(lines, fmt.Sprintf("%s with %d errors:", ErrValidationFailed, len(e)))
	for _, ve := range e {
		lines = append(lines, "  - "+ve.Error())
	}
	return strings.Join(lines, "\n")
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks a manifest assembled in code, such as one built from
// command-line flags.
func Validate(m *Manifest) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := ValidateRaw(doc); err != nil {
		return err
	}
	return validateSemantics(m)
}

var manifestSchema = sync.OnceValues(func() (*schema.Validator, error) {
	if len(schemasassets.BatchManifestSchema) == 0 {
		return nil, errors.New("embedded batch manifest schema is empty")
	}
	v, err := schema.NewValidator(schemasassets.BatchManifestSchema)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return v, nil
})

// ValidateRaw checks a JSON document against the batch manifest schema.
// Unknown properties are errors.
func ValidateRaw(doc []byte) error {
	v, err := manifestSchema()
	if err != nil {
		return err
	}
	diags, err := v.ValidateJSON(doc)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity != schema.SeverityError {
			continue
		}
		errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateSemantics rejects page ranges the schema pattern lets through,
// such as "5-2".
func validateSemantics(m *Manifest) error {
	var errs ValidationErrors
	for i, job := range m.Jobs {
		if job.Range == "" {
			continue
		}
		if _, ok := pages.ParseRange(job.Range); !ok {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/jobs/%d/range", i),
				Message: fmt.Sprintf("invalid page range %q", job.Range),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
