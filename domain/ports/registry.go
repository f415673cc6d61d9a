package ports

// SchemaRegistry holds the JSON schemas of the host's configuration
// documents, keyed by document kind such as "host".
type SchemaRegistry interface {
	// Register reflects model into a schema stored under kind.
	Register(kind string, model any) error

	// GetSchema returns the schema text for kind.
	GetSchema(kind string) (string, bool)

	// List returns the registered kinds in sorted order.
	List() []string
}
