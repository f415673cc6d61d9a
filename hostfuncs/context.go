package hostfuncs

import (
	"context"
)

// HostContext wraps a standard context.Context with native call helpers.
// It gives middleware access to the qualified name of the function being
// invoked, e.g. "process.start" or "process.Process:wait".
type HostContext interface {
	context.Context

	// FunctionName returns the qualified name of the native function.
	FunctionName() string
}

// hostContext is the concrete implementation of HostContext.
type hostContext struct {
	context.Context
	funcName string
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{
		Context:  ctx,
		funcName: funcName,
	}
}

// FunctionName returns the qualified name of the native function.
func (c *hostContext) FunctionName() string {
	return c.funcName
}

// HostContextFrom extracts a HostContext from a context.Context.
// If the context is already a HostContext for the same function, it is
// returned directly. Otherwise, a new HostContext is created.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

// FunctionName returns the native function name carried by ctx, or
// "unknown".
func FunctionName(ctx context.Context) string {
	if hc, ok := ctx.(HostContext); ok {
		return hc.FunctionName()
	}
	return "unknown"
}

type limitsKey struct{}

// Limits bounds the resources native modules may use per interpreter.
type Limits struct {
	// MaxOutputSize caps captured process stdout and stderr, per stream.
	MaxOutputSize int

	// MaxThreads caps concurrently running thread-module workers.
	MaxThreads int

	// ShmemCapacity is used by shmem.open when no capacity is given.
	ShmemCapacity int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxOutputSize: DefaultMaxOutputSize,
		MaxThreads:    64,
		ShmemCapacity: 1024,
	}
}

// WithLimits attaches limits to ctx.
func WithLimits(ctx context.Context, l Limits) context.Context {
	return context.WithValue(ctx, limitsKey{}, l)
}

// LimitsFrom returns the limits attached to ctx, or DefaultLimits.
func LimitsFrom(ctx context.Context) Limits {
	if l, ok := ctx.Value(limitsKey{}).(Limits); ok {
		return l
	}
	return DefaultLimits()
}
