package hostfuncs

import (
	"context"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// BitModule provides the LuaJIT bit library. Every operation works on 32-bit
// integers and returns a signed result.
var BitModule = OpenFunc(openBit)

func openBit(ns Namespace) error {
	ns.SetFunc("tobit", bitToBit)
	ns.SetFunc("tohex", bitToHex)
	ns.SetFunc("bnot", bitUnary(func(x uint32) uint32 { return ^x }))
	ns.SetFunc("bswap", bitUnary(bits.ReverseBytes32))
	ns.SetFunc("band", bitFold(func(a, b uint32) uint32 { return a & b }))
	ns.SetFunc("bor", bitFold(func(a, b uint32) uint32 { return a | b }))
	ns.SetFunc("bxor", bitFold(func(a, b uint32) uint32 { return a ^ b }))
	ns.SetFunc("lshift", bitShift(func(x uint32, n uint) uint32 { return x << n }))
	ns.SetFunc("rshift", bitShift(func(x uint32, n uint) uint32 { return x >> n }))
	ns.SetFunc("arshift", bitShift(func(x uint32, n uint) uint32 { return uint32(int32(x) >> n) }))
	ns.SetFunc("rol", bitShift(func(x uint32, n uint) uint32 { return bits.RotateLeft32(x, int(n)) }))
	ns.SetFunc("ror", bitShift(func(x uint32, n uint) uint32 { return bits.RotateLeft32(x, -int(n)) }))
	return nil
}

// ToBit normalizes a number to a 32-bit integer the way LuaJIT does:
// the value is rounded to nearest and wrapped modulo 2^32.
func ToBit(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.RoundToEven(f)
	m := math.Mod(f, 4294967296)
	if m < 0 {
		m += 4294967296
	}
	return uint32(m)
}

// Signed converts a normalized value to the signed result scripts receive.
func Signed(x uint32) int {
	return int(int32(x))
}

func bitArg(args Args, n int) (uint32, error) {
	switch v := args.Get(n).(type) {
	case int:
		return uint32(v), nil
	case int64:
		return uint32(v), nil
	}
	f, err := args.Number(n)
	if err != nil {
		return 0, err
	}
	return ToBit(f), nil
}

func bitToBit(_ context.Context, args Args) ([]any, error) {
	x, err := bitArg(args, 1)
	if err != nil {
		return nil, err
	}
	return []any{Signed(x)}, nil
}

// bitToHex formats x with n hex digits; a negative n selects upper case.
func bitToHex(_ context.Context, args Args) ([]any, error) {
	x, err := bitArg(args, 1)
	if err != nil {
		return nil, err
	}
	n, err := args.OptInt(2, 8)
	if err != nil {
		return nil, err
	}
	upper := n < 0
	if upper {
		n = -n
	}
	if n > 8 {
		n = 8
	}
	s := strconv.FormatUint(uint64(x), 16)
	if len(s) < 8 {
		s = strings.Repeat("0", 8-len(s)) + s
	}
	s = s[8-n:]
	if upper {
		s = strings.ToUpper(s)
	}
	return []any{s}, nil
}

func bitUnary(op func(uint32) uint32) Func {
	return func(_ context.Context, args Args) ([]any, error) {
		x, err := bitArg(args, 1)
		if err != nil {
			return nil, err
		}
		return []any{Signed(op(x))}, nil
	}
}

func bitFold(op func(a, b uint32) uint32) Func {
	return func(_ context.Context, args Args) ([]any, error) {
		acc, err := bitArg(args, 1)
		if err != nil {
			return nil, err
		}
		for n := 2; n <= args.Len(); n++ {
			x, err := bitArg(args, n)
			if err != nil {
				return nil, err
			}
			acc = op(acc, x)
		}
		return []any{Signed(acc)}, nil
	}
}

// bitShift applies op with the shift count masked to five bits.
func bitShift(op func(x uint32, n uint) uint32) Func {
	return func(_ context.Context, args Args) ([]any, error) {
		x, err := bitArg(args, 1)
		if err != nil {
			return nil, err
		}
		n, err := bitArg(args, 2)
		if err != nil {
			return nil, err
		}
		return []any{Signed(op(x, uint(n&31)))}, nil
	}
}
