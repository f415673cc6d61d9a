package gopherlua

import (
	"errors"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/wireformat"
)

const maxDepth = 64

var (
	errTooDeep = fmt.Errorf("table nesting exceeds %d levels", maxDepth)
	errCycle   = errors.New("table contains itself")
)

func (r *Runtime) toLua(v any, where string) (lua.LValue, error) {
	return r.toLuaValue(v, where, 0)
}

func (r *Runtime) toLuaValue(v any, where string, depth int) (lua.LValue, error) {
	switch x := v.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(x), nil
	case int:
		return lua.LNumber(x), nil
	case int64:
		return lua.LNumber(x), nil
	case float64:
		return lua.LNumber(x), nil
	case string:
		return lua.LString(x), nil
	case []byte:
		return lua.LString(string(x)), nil
	case []any:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%s: %w", where, errTooDeep)
		}
		tb := r.l.CreateTable(len(x), 0)
		for i, item := range x {
			lv, err := r.toLuaValue(item, where, depth+1)
			if err != nil {
				return nil, err
			}
			tb.RawSetInt(i+1, lv)
		}
		return tb, nil
	case map[string]any:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%s: %w", where, errTooDeep)
		}
		tb := r.l.CreateTable(0, len(x))
		for _, k := range sortedKeys(x) {
			lv, err := r.toLuaValue(x[k], where, depth+1)
			if err != nil {
				return nil, err
			}
			tb.RawSetString(k, lv)
		}
		return tb, nil
	case map[any]any:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%s: %w", where, errTooDeep)
		}
		tb := r.l.CreateTable(0, len(x))
		for _, k := range wireformat.SortedKeys(x) {
			lk, err := luaKey(k, where)
			if err != nil {
				return nil, err
			}
			lv, err := r.toLuaValue(x[k], where, depth+1)
			if err != nil {
				return nil, err
			}
			tb.RawSet(lk, lv)
		}
		return tb, nil
	case hostfuncs.Func:
		name := where
		if name == "" {
			name = "function"
		}
		return r.wrap(name, x), nil
	case hostfuncs.Object:
		ud := r.l.NewUserData()
		ud.Value = x.Value
		r.l.SetMetatable(ud, r.l.GetTypeMetatable(x.Class))
		return ud, nil
	}
	return nil, fmt.Errorf("%s: cannot pass %T to the interpreter", where, v)
}

func luaKey(k any, where string) (lua.LValue, error) {
	switch x := k.(type) {
	case int:
		return lua.LNumber(x), nil
	case int64:
		return lua.LNumber(x), nil
	case float64:
		if math.IsNaN(x) {
			return nil, fmt.Errorf("%s: table key is NaN", where)
		}
		return lua.LNumber(x), nil
	case string:
		return lua.LString(x), nil
	case bool:
		return lua.LBool(x), nil
	}
	return nil, fmt.Errorf("%s: cannot use %T as a table key", where, k)
}

// converter walks one value. seen holds the tables on the current path so
// a table nested inside itself is reported instead of expanded.
type converter struct {
	r    *Runtime
	seen map[*lua.LTable]struct{}
}

func (r *Runtime) toGo(v lua.LValue) (any, error) {
	c := converter{r: r}
	return c.value(v, 0)
}

func (c *converter) value(v lua.LValue, depth int) (any, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		return normalizeNumber(float64(x)), nil
	case lua.LString:
		return string(x), nil
	case *lua.LTable:
		return c.table(x, depth)
	case *lua.LFunction:
		return c.r.callable(x), nil
	case *lua.LUserData:
		return x.Value, nil
	}
	return nil, fmt.Errorf("cannot convert %s value", v.Type().String())
}

func (c *converter) table(tb *lua.LTable, depth int) (any, error) {
	if depth >= maxDepth {
		return nil, errTooDeep
	}
	if _, ok := c.seen[tb]; ok {
		return nil, errCycle
	}
	if c.seen == nil {
		c.seen = make(map[*lua.LTable]struct{})
	}
	c.seen[tb] = struct{}{}
	defer delete(c.seen, tb)

	b := hostfuncs.NewTableBuilder(tb.Len())
	var convErr error
	tb.ForEach(func(key, value lua.LValue) {
		if convErr != nil {
			return
		}
		v, err := c.value(value, depth+1)
		if err != nil {
			convErr = err
			return
		}
		switch k := key.(type) {
		case lua.LNumber:
			b.Set(normalizeNumber(float64(k)), v)
		case lua.LString:
			b.Set(string(k), v)
		case lua.LBool:
			b.Set(bool(k), v)
		}
	})
	if convErr != nil {
		return nil, convErr
	}
	return b.Value(), nil
}

func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return int(f)
	}
	return f
}

// callable wraps a script function. gopher-lua functions are ordinary Go
// values, so the Callable stays valid while the state is open.
func (r *Runtime) callable(fn *lua.LFunction) hostfuncs.Callable {
	return func(args ...any) ([]any, error) {
		return r.call("callback", fn, args)
	}
}
