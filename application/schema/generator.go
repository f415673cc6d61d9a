// Package schema generates JSON schemas for the host's configuration
// documents.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Option adjusts the generated schema document.
type Option func(*jsonschema.Schema)

// WithID sets the schema $id.
func WithID(id string) Option {
	return func(s *jsonschema.Schema) {
		s.ID = jsonschema.ID(id)
	}
}

// WithTitle sets the schema title shown by editors.
func WithTitle(title string) Option {
	return func(s *jsonschema.Schema) {
		s.Title = title
	}
}

// GenerateSchema reflects v into a closed JSON schema (Draft 2020-12).
// Nested structs are expanded inline, so the result validates on its own
// and unknown keys are rejected at every level.
func GenerateSchema(v any, opts ...Option) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		// Fields are optional; zero values select built-in defaults.
		RequiredFromJSONSchemaTags: true,
	}
	s := reflector.Reflect(v)
	for _, opt := range opts {
		opt(s)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
