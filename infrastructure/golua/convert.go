package golua

import (
	"errors"
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/wireformat"
)

// maxDepth bounds table nesting during conversion.
const maxDepth = 64

// stackPerLevel is the number of slots one level of table conversion
// needs: the table or key, the value, and one spare for the next push.
const stackPerLevel = 3

var (
	errTooDeep = fmt.Errorf("table nesting exceeds %d levels", maxDepth)
	errCycle   = errors.New("table contains itself")
)

// push converts v and pushes it onto the stack.
func (r *Runtime) push(v any, where string) error {
	return r.pushValue(v, where, 0)
}

func (r *Runtime) pushValue(v any, where string, depth int) error {
	l := r.l
	if !l.CheckStack(stackPerLevel) {
		return fmt.Errorf("%s: stack overflow", where)
	}
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case int:
		l.PushInteger(x)
	case int64:
		l.PushNumber(float64(x))
	case float64:
		l.PushNumber(x)
	case string:
		l.PushString(x)
	case []byte:
		l.PushString(string(x))
	case []any:
		if depth >= maxDepth {
			return fmt.Errorf("%s: %w", where, errTooDeep)
		}
		l.CreateTable(len(x), 0)
		for i, item := range x {
			if err := r.pushValue(item, where, depth+1); err != nil {
				l.Pop(1)
				return err
			}
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		if depth >= maxDepth {
			return fmt.Errorf("%s: %w", where, errTooDeep)
		}
		l.CreateTable(0, len(x))
		for _, k := range sortedKeys(x) {
			if err := r.pushValue(x[k], where, depth+1); err != nil {
				l.Pop(1)
				return err
			}
			l.SetField(-2, k)
		}
	case map[any]any:
		if depth >= maxDepth {
			return fmt.Errorf("%s: %w", where, errTooDeep)
		}
		l.CreateTable(0, len(x))
		for _, k := range wireformat.SortedKeys(x) {
			if err := r.pushKey(k, where); err != nil {
				l.Pop(1)
				return err
			}
			if err := r.pushValue(x[k], where, depth+1); err != nil {
				l.Pop(2)
				return err
			}
			l.RawSet(-3)
		}
	case hostfuncs.Func:
		name := where
		if name == "" {
			name = "function"
		}
		l.PushGoFunction(r.wrap(name, x))
	case hostfuncs.Object:
		l.PushUserData(x.Value)
		lua.SetMetaTableNamed(l, x.Class)
	default:
		return fmt.Errorf("%s: cannot pass %T to the interpreter", where, v)
	}
	return nil
}

func (r *Runtime) pushKey(k any, where string) error {
	l := r.l
	switch x := k.(type) {
	case int:
		l.PushInteger(x)
	case int64:
		l.PushNumber(float64(x))
	case float64:
		if math.IsNaN(x) {
			return fmt.Errorf("%s: table key is NaN", where)
		}
		l.PushNumber(x)
	case string:
		l.PushString(x)
	case bool:
		l.PushBoolean(x)
	default:
		return fmt.Errorf("%s: cannot use %T as a table key", where, k)
	}
	return nil
}

// converter walks one value. seen holds the tables on the current path so
// a table nested inside itself is reported instead of expanded.
type converter struct {
	r    *Runtime
	seen map[any]struct{}
}

// toGo converts the value at index.
func (r *Runtime) toGo(index int) (any, error) {
	c := converter{r: r}
	return c.value(r.l.AbsIndex(index), 0)
}

func (c *converter) value(index, depth int) (any, error) {
	l := c.r.l
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeNumber:
		f, _ := l.ToNumber(index)
		return normalizeNumber(f), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	case lua.TypeTable:
		return c.table(index, depth)
	case lua.TypeFunction:
		return c.r.anchor(index), nil
	case lua.TypeUserData, lua.TypeLightUserData:
		return l.ToUserData(index), nil
	}
	return nil, fmt.Errorf("cannot convert %s value", lua.TypeNameOf(l, index))
}

func (c *converter) table(index, depth int) (any, error) {
	if depth >= maxDepth {
		return nil, errTooDeep
	}
	l := c.r.l
	if !l.CheckStack(stackPerLevel) {
		return nil, errTooDeep
	}
	id := l.ToValue(index)
	if _, ok := c.seen[id]; ok {
		return nil, errCycle
	}
	if c.seen == nil {
		c.seen = make(map[any]struct{})
	}
	c.seen[id] = struct{}{}
	defer delete(c.seen, id)

	b := hostfuncs.NewTableBuilder(l.RawLength(index))
	l.PushNil()
	for l.Next(index) {
		v, err := c.value(l.AbsIndex(-1), depth+1)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			f, _ := l.ToNumber(-2)
			b.Set(normalizeNumber(f), v)
		case lua.TypeString:
			k, _ := l.ToString(-2)
			b.Set(k, v)
		case lua.TypeBoolean:
			b.Set(l.ToBoolean(-2), v)
		}
		l.Pop(1)
	}
	return b.Value(), nil
}

// normalizeNumber returns integral values as int.
func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return int(f)
	}
	return f
}

// anchor stores the function at index in the registry and returns a
// Callable for it. Anchors are released when the native call that received
// them returns.
func (r *Runtime) anchor(index int) hostfuncs.Callable {
	l := r.l
	r.nextAnchor++
	id := r.nextAnchor
	lua.SubTable(l, lua.RegistryIndex, anchorsKey)
	l.PushValue(index)
	l.RawSetInt(-2, id)
	l.Pop(1)
	r.anchors = append(r.anchors, id)

	return func(args ...any) ([]any, error) {
		top := l.Top()
		defer l.SetTop(top)
		if !l.CheckStack(len(args) + 2) {
			return nil, errors.New("callback: stack overflow")
		}
		lua.SubTable(l, lua.RegistryIndex, anchorsKey)
		l.RawGetInt(-1, id)
		if l.TypeOf(-1) != lua.TypeFunction {
			return nil, errors.New("function argument used after its call returned")
		}
		base := l.Top()
		for _, a := range args {
			if err := r.push(a, "callback"); err != nil {
				return nil, err
			}
		}
		if err := l.ProtectedCall(len(args), lua.MultipleReturns, 0); err != nil {
			return nil, fmt.Errorf("%s", stackMessage(l, err))
		}
		out := make([]any, 0, l.Top()-base+1)
		for i := base; i <= l.Top(); i++ {
			v, err := r.toGo(i)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
}

// dropAnchors releases anchors created after mark.
func (r *Runtime) dropAnchors(mark int) {
	if mark >= len(r.anchors) {
		return
	}
	l := r.l
	lua.SubTable(l, lua.RegistryIndex, anchorsKey)
	for _, id := range r.anchors[mark:] {
		l.PushNil()
		l.RawSetInt(-2, id)
	}
	l.Pop(1)
	r.anchors = r.anchors[:mark]
}

func (r *Runtime) releaseAnchors() {
	r.dropAnchors(0)
}
