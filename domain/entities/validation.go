package entities

import "strings"

// ValidationResult is the outcome of checking a configuration document
// against its schema.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
	Valid  bool              `json:"valid"`
}

// ValidationError is one schema violation. Field is a dotted path into the
// document, or the document kind when the violation is at the root.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Add records a violation and marks the result invalid.
func (r *ValidationResult) Add(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// String lists the violations one per line as "field: message".
func (r *ValidationResult) String() string {
	var sb strings.Builder
	for i, e := range r.Errors {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Field)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}
