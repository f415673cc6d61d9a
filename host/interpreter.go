package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jgmdev/pragtical/go/domain/entities"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// Interpreter is an embedded Lua state with the native modules bound.
type Interpreter struct {
	runtime   hostfuncs.Runtime
	resources *hostfuncs.Resources
	set       *hostfuncs.DescriptorSet
	loader    *Loader
	logger    *slog.Logger
	report    entities.LoadReport
}

var _ hostfuncs.Interpreter = (*Interpreter)(nil)

// NewInterpreter creates an interpreter on the compiled-in backend and binds
// the descriptor set before returning. If any module fails to bind the state
// is closed and the *errors.ModuleInitError is returned.
func NewInterpreter(ctx context.Context, opts ...Option) (*Interpreter, error) {
	cfg := interpreterConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.set == nil {
		cfg.set = hostfuncs.ActiveSet()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.limits != nil {
		ctx = hostfuncs.WithLimits(ctx, *cfg.limits)
	}

	// Thread workers get a sibling built from the same options.
	fork := func() (hostfuncs.Interpreter, error) {
		return NewInterpreter(ctx, opts...)
	}

	// Processes and monitors opened by scripts die with the interpreter.
	resources := hostfuncs.NewResources()
	rctx := hostfuncs.WithResources(ctx, resources)

	i := &Interpreter{
		runtime:   newRuntime(rctx, &cfg, fork),
		resources: resources,
		set:       cfg.set,
		logger:    cfg.logger,
		loader:    NewLoader(append([]LoaderOption{WithLoaderLogger(cfg.logger)}, cfg.loaderOpts...)...),
	}

	if err := i.LoadLibs(); err != nil {
		_ = i.Close()
		return nil, fmt.Errorf("failed to load native modules: %w", err)
	}
	return i, nil
}

// LoadLibs binds the interpreter's descriptor set. It runs once from
// NewInterpreter; calling it again binds nothing new.
func (i *Interpreter) LoadLibs() error {
	report, err := i.loader.Load(i.runtime, i.set)
	i.report = report
	return err
}

// Report returns the outcome of the last LoadLibs call.
func (i *Interpreter) Report() entities.LoadReport {
	return i.report
}

// Descriptors returns the descriptor set bound into this interpreter.
func (i *Interpreter) Descriptors() *hostfuncs.DescriptorSet {
	return i.set
}

// Runtime exposes the backend binding surface.
func (i *Interpreter) Runtime() hostfuncs.Runtime {
	return i.runtime
}

// Backend names the interpreter implementation.
func (i *Interpreter) Backend() string {
	return i.runtime.Backend()
}

// DoString runs a chunk with the given arguments and returns its results.
func (i *Interpreter) DoString(chunk string, args ...any) ([]any, error) {
	return i.runtime.DoString(chunk, args...)
}

// DoFile runs a script file with the given arguments and returns its
// results.
func (i *Interpreter) DoFile(path string, args ...any) ([]any, error) {
	return i.runtime.DoFile(path, args...)
}

// Close kills child processes and stops directory monitors started by
// scripts, then releases the interpreter state.
func (i *Interpreter) Close() error {
	err := i.resources.Close()
	if err != nil {
		i.logger.Warn("failed to release script resources", "error", err)
	}
	return errors.Join(err, i.runtime.Close())
}
