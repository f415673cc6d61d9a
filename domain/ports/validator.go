package ports

import "github.com/jgmdev/pragtical/go/domain/entities"

// DocumentValidator validates a raw configuration document against the
// schema registered for its kind.
type DocumentValidator interface {
	// Validate checks data, which may be YAML, TOML or JSON, and reports
	// every violation.
	Validate(kind string, data []byte) (*entities.ValidationResult, error)
}
