package entities

// LoadReport summarizes one registry walk over an interpreter.
type LoadReport struct {
	// Metadata contains timing information.
	Metadata *RunMetadata `json:"metadata,omitempty"`

	// Error is the structured form of the failure that stopped the walk.
	Error *ErrorDetail `json:"error,omitempty"`

	// Backend names the interpreter implementation.
	Backend string `json:"backend"`

	// Variant names the variant tail of the descriptor set.
	Variant string `json:"variant"`

	// Outcomes holds one entry per visited descriptor, in load order.
	Outcomes []RegistrationOutcome `json:"outcomes"`
}

// Count returns the number of outcomes with the given status.
func (r LoadReport) Count(status RegistrationStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Failure returns the failed outcome, if any. A walk has at most one.
func (r LoadReport) Failure() (RegistrationOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.IsFailed() {
			return o, true
		}
	}
	return RegistrationOutcome{}, false
}

// IsSuccess reports whether every visited descriptor was bound or cached.
func (r LoadReport) IsSuccess() bool {
	_, failed := r.Failure()
	return !failed && r.Error == nil
}

// Modules returns the module names in visit order.
func (r LoadReport) Modules() []string {
	names := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		names[i] = o.Module
	}
	return names
}
