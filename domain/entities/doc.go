// Package entities provides the core domain types of the host: module
// registration outcomes, load reports, structured error details and
// validation results. They double as JSON wire types for diagnostics.
package entities
