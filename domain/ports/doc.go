// Package ports declares the seams between the registry loader, the config
// layer and their adapters: observers of module registration and the schema
// machinery behind config validation.
package ports
