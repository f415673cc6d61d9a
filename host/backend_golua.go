//go:build !gopherlua

package host

import (
	"context"

	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/infrastructure/golua"
)

// DefaultBackend names the interpreter compiled into this binary.
const DefaultBackend = golua.BackendName

func newRuntime(ctx context.Context, cfg *interpreterConfig, fork func() (hostfuncs.Interpreter, error)) hostfuncs.Runtime {
	return golua.New(ctx,
		golua.WithLogger(cfg.logger),
		golua.WithSearchPaths(cfg.searchPaths...),
		golua.WithMiddleware(cfg.middleware...),
		golua.WithForker(fork),
	)
}
