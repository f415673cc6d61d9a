package config

import (
	"fmt"
	"os"

	"github.com/jgmdev/pragtical/go/application/validation"
	"github.com/jgmdev/pragtical/go/domain/entities"
	"github.com/jgmdev/pragtical/go/infrastructure/schema"
)

// Kind is the schema registry key of HostConfig.
const Kind = "host"

func newRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := reg.Register(Kind, HostConfig{}); err != nil {
		return nil, err
	}
	return reg, nil
}

// Schema returns the JSON Schema of HostConfig.
func Schema() (string, error) {
	reg, err := newRegistry()
	if err != nil {
		return "", err
	}
	s, _ := reg.GetSchema(Kind)
	return s, nil
}

// ValidateDocument checks a raw config document against the HostConfig
// schema without decoding it into the struct, so unknown keys and type
// mismatches are all reported.
func ValidateDocument(format string, data []byte) (*entities.ValidationResult, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}
	return validation.NewDocumentValidator(reg, format).Validate(Kind, data)
}

// CheckFile validates the document at path against the schema.
func CheckFile(path string) (*entities.ValidationResult, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ValidateDocument(format, data)
}
