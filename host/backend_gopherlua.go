//go:build gopherlua

package host

import (
	"context"

	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/infrastructure/gopherlua"
)

// DefaultBackend names the interpreter compiled into this binary.
const DefaultBackend = gopherlua.BackendName

func newRuntime(ctx context.Context, cfg *interpreterConfig, fork func() (hostfuncs.Interpreter, error)) hostfuncs.Runtime {
	return gopherlua.New(ctx,
		gopherlua.WithLogger(cfg.logger),
		gopherlua.WithSearchPaths(cfg.searchPaths...),
		gopherlua.WithMiddleware(cfg.middleware...),
		gopherlua.WithForker(fork),
	)
}
