// Package validation checks raw configuration documents against JSON
// schemas held in a schema registry.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/jgmdev/pragtical/go/domain/entities"
	"github.com/jgmdev/pragtical/go/domain/ports"
)

// Document formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// DocumentValidator implements ports.DocumentValidator using JSON schemas.
type DocumentValidator struct {
	registry ports.SchemaRegistry
	format   string
}

// NewDocumentValidator creates a validator decoding documents in format.
func NewDocumentValidator(registry ports.SchemaRegistry, format string) ports.DocumentValidator {
	return &DocumentValidator{registry: registry, format: format}
}

// Validate decodes data and checks it against the schema registered for
// kind. Schema violations are reported in the result; a missing schema or an
// undecodable document is returned as an error.
func (v *DocumentValidator) Validate(kind string, data []byte) (*entities.ValidationResult, error) {
	schemaStr, ok := v.registry.GetSchema(kind)
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", kind)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(kind, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", kind, err)
	}
	sch, err := compiler.Compile(kind)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", kind, err)
	}

	doc, err := decode(v.format, data)
	if err != nil {
		return nil, err
	}

	result := &entities.ValidationResult{Valid: true}
	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			result.Add(kind, err.Error())
			return result, nil
		}
		for _, leaf := range leaves(ve) {
			field := strings.TrimPrefix(leaf.InstanceLocation, "/")
			if field == "" {
				field = kind
			}
			result.Add(strings.ReplaceAll(field, "/", "."), leaf.Message)
		}
	}
	return result, nil
}

// leaves flattens a validation error tree to its most specific causes.
func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// decode parses a document and normalizes it to the JSON data model the
// schema validator expects.
func decode(format string, data []byte) (any, error) {
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
		raw = m
	case FormatJSON:
		raw = json.RawMessage(data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to prepare validation object: %w", err)
	}
	return obj, nil
}
