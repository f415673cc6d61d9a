package entities

import (
	"time"
)

// RunMetadata contains timing metadata for a registry walk.
type RunMetadata struct {
	// StartTime is when the walk started.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the walk completed or stopped.
	EndTime time.Time `json:"end_time"`

	// HostVersion is the version of the host binary.
	HostVersion string `json:"host_version,omitempty"`

	// Duration is the total walk time.
	Duration time.Duration `json:"duration_ns"`
}

// NewRunMetadata creates a new RunMetadata with the given start and end times.
func NewRunMetadata(start, end time.Time) *RunMetadata {
	return &RunMetadata{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
}

// WithHostVersion returns the RunMetadata with the host version set.
func (m *RunMetadata) WithHostVersion(version string) *RunMetadata {
	m.HostVersion = version
	return m
}
