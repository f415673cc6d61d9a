package host

import (
	"log/slog"

	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// Version is the host version reported in load reports and by the CLI.
// It is overridden at link time.
var Version = "dev"

// interpreterConfig holds configuration for an Interpreter.
type interpreterConfig struct {
	set         *hostfuncs.DescriptorSet
	logger      *slog.Logger
	limits      *hostfuncs.Limits
	searchPaths []string
	middleware  []hostfuncs.Middleware
	loaderOpts  []LoaderOption
}

// Option defines a functional option for configuring the Interpreter.
type Option func(*interpreterConfig)

// WithDescriptorSet configures the interpreter with a module descriptor set.
// The default is hostfuncs.ActiveSet.
func WithDescriptorSet(set *hostfuncs.DescriptorSet) Option {
	return func(c *interpreterConfig) {
		c.set = set
	}
}

// WithLogger sets the logger used by the interpreter and its loader.
func WithLogger(l *slog.Logger) Option {
	return func(c *interpreterConfig) {
		c.logger = l
	}
}

// WithLimits sets the resource limits native modules read from their call
// context.
func WithLimits(l hostfuncs.Limits) Option {
	return func(c *interpreterConfig) {
		c.limits = &l
	}
}

// WithSearchPaths prepends Lua module search patterns to package.path.
func WithSearchPaths(paths ...string) Option {
	return func(c *interpreterConfig) {
		c.searchPaths = append(c.searchPaths, paths...)
	}
}

// WithMiddleware wraps every native function with mw, in order.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(c *interpreterConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithLoaderOptions passes options to the registry loader.
func WithLoaderOptions(opts ...LoaderOption) Option {
	return func(c *interpreterConfig) {
		c.loaderOpts = append(c.loaderOpts, opts...)
	}
}
