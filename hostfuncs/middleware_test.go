package hostfuncs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	panicking := func(ctx context.Context, args Args) ([]any, error) {
		panic("test panic")
	}

	wrapped := PanicRecoveryMiddleware()(panicking)

	out, err := wrapped(NewHostContext(context.Background(), "system.boom"), NewArgs("system.boom"))
	require.Error(t, err)
	assert.Nil(t, out)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "system.boom", pe.Func)
	assert.Contains(t, err.Error(), "test panic")
}

func TestPanicRecoveryMiddleware_PassesThrough(t *testing.T) {
	fn := func(ctx context.Context, args Args) ([]any, error) {
		return []any{args.Len()}, nil
	}

	out, err := PanicRecoveryMiddleware()(fn)(context.Background(), NewArgs("f", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []any{2}, out)
}

func TestChain_Order(t *testing.T) {
	var trace []string
	layer := func(name string) Middleware {
		return func(next Func) Func {
			return func(ctx context.Context, args Args) ([]any, error) {
				trace = append(trace, name+">")
				out, err := next(ctx, args)
				trace = append(trace, "<"+name)
				return out, err
			}
		}
	}
	fn := func(ctx context.Context, args Args) ([]any, error) {
		trace = append(trace, "fn")
		return nil, nil
	}

	_, err := Chain(fn, layer("a"), layer("b"))(context.Background(), Args{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "fn", "<b", "<a"}, trace)
}

func TestChain_NoMiddleware(t *testing.T) {
	fn := func(ctx context.Context, args Args) ([]any, error) {
		return []any{"ok"}, nil
	}
	out, err := Chain(fn)(context.Background(), Args{})
	require.NoError(t, err)
	assert.Equal(t, []any{"ok"}, out)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := LoggingMiddleware(logger)

	ok := mw(func(ctx context.Context, args Args) ([]any, error) {
		return []any{1}, nil
	})
	_, err := ok(NewHostContext(context.Background(), "encoding.detect"), NewArgs("encoding.detect", "x"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "native function completed")
	assert.Contains(t, buf.String(), "func=encoding.detect")

	buf.Reset()
	failing := mw(func(ctx context.Context, args Args) ([]any, error) {
		return nil, errors.New("nope")
	})
	_, err = failing(NewHostContext(context.Background(), "encoding.convert"), Args{})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=nope")

	buf.Reset()
	var seen string
	named := mw(func(ctx context.Context, args Args) ([]any, error) {
		seen = FunctionName(ctx)
		return nil, nil
	})
	_, err = named(context.Background(), NewArgs("regex.compile", "a+"))
	require.NoError(t, err)
	assert.Equal(t, "regex.compile", seen)
	assert.Contains(t, buf.String(), "func=regex.compile")
}
