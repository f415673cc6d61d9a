package hostfuncs

import (
	"context"
	"log/slog"
	"time"
)

// Middleware is a function that wraps a Func to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	tracing := func(next Func) Func {
//	    return func(ctx context.Context, args Args) ([]any, error) {
//	        slog.Debug("calling", "func", FunctionName(ctx))
//	        return next(ctx, args)
//	    }
//	}
type Middleware func(next Func) Func

// Chain wraps fn so that mw[0] is the outermost layer.
func Chain(fn Func, mw ...Middleware) Func {
	wrapped := fn
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}
	return wrapped
}

// PanicRecoveryMiddleware returns a middleware that catches panics and
// converts them to a PanicError, which the backend raises as a script error
// instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, args Args) (out []any, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = nil
					err = NewPanicError(FunctionName(ctx), r)
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware returns a middleware that logs native function calls at
// debug level and failures at warn level. Calls reaching it without a
// HostContext get one named after args.Func.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Func) Func {
		return func(ctx context.Context, args Args) ([]any, error) {
			funcName := args.Func
			if funcName == "" {
				funcName = FunctionName(ctx)
			}
			hc := HostContextFrom(ctx, funcName)
			start := time.Now()
			out, err := next(hc, args)
			if err != nil {
				logger.Warn("native function failed", "func", funcName, "error", err)
				return out, err
			}
			logger.Debug("native function completed", "func", funcName, "args", args.Len(),
				"results", len(out), "duration", time.Since(start))
			return out, nil
		}
	}
}
