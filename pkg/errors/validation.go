package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationErrors aggregates field problems found while checking a payload
type ValidationErrors struct {
	fields map[string][]string
}

// NewValidationErrors creates an empty collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

// Add records a problem with a field
func (v *ValidationErrors) Add(field, message string) {
	v.fields[field] = append(v.fields[field], message)
}

// Addf records a formatted problem with a field
func (v *ValidationErrors) Addf(field, format string, args ...interface{}) {
	v.Add(field, fmt.Sprintf(format, args...))
}

// HasErrors returns true if any field failed
func (v *ValidationErrors) HasErrors() bool {
	return len(v.fields) > 0
}

// Fields returns the recorded problems keyed by field
func (v *ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(v.fields))
	for k, msgs := range v.fields {
		out[k] = append([]string(nil), msgs...)
	}
	return out
}

// Err converts the collection into a VALIDATION AppError, or nil when empty.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}

	names := make([]string, 0, len(v.fields))
	for name := range v.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, strings.Join(v.fields[name], ", ")))
	}

	return NewValidationError("validation failed: "+strings.Join(parts, "; ")).
		WithDetail("fields", v.Fields())
}
