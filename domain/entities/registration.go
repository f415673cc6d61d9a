package entities

import "time"

// RegistrationStatus is the outcome of binding one native module.
type RegistrationStatus string

const (
	// RegistrationBound means the entry point ran and the table was stored.
	RegistrationBound RegistrationStatus = "bound"

	// RegistrationCached means the module was already loaded and its entry
	// point was not invoked again.
	RegistrationCached RegistrationStatus = "cached"

	// RegistrationFailed means the entry point returned an error. The walk
	// stops at the first failure.
	RegistrationFailed RegistrationStatus = "failed"
)

// RegistrationOutcome describes what happened to one descriptor during a
// registry walk.
type RegistrationOutcome struct {
	// Err is the failure cause. It is not serialized; Error carries the
	// structured form.
	Err error `json:"-"`

	Error *ErrorDetail `json:"error,omitempty"`

	Module string             `json:"module"`
	Status RegistrationStatus `json:"status"`

	// Index is the position of the module in the load order.
	Index int `json:"index"`

	Duration time.Duration `json:"duration_ns"`
}

// IsBound reports whether the entry point ran successfully.
func (o RegistrationOutcome) IsBound() bool {
	return o.Status == RegistrationBound
}

// IsFailed reports whether the entry point failed.
func (o RegistrationOutcome) IsFailed() bool {
	return o.Status == RegistrationFailed
}
