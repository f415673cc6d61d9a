package hostfuncs

import (
	"context"
	"errors"
	"unicode/utf8"
)

// Compat53UTF8Module provides the Lua 5.3 utf8 library. Positions are byte
// offsets, as in the reference implementation.
var Compat53UTF8Module = OpenFunc(openCompat53UTF8)

func openCompat53UTF8(ns Namespace) error {
	ns.SetFunc("char", utf8Char)
	ns.SetValue("charpattern", UTF8CharPattern)
	ns.SetFunc("codepoint", utf8Codepoint)
	ns.SetFunc("len", utf8ByteLen)
	ns.SetFunc("offset", utf8Offset)
	ns.SetFunc("codes", utf8Codes)
	return nil
}

// bytePos converts a possibly negative 1-based position into a 0-based
// offset, clamping negatives that run past the start to -1.
func bytePos(pos, n int) int {
	if pos >= 0 {
		return pos - 1
	}
	if -pos > n {
		return -1
	}
	return n + pos
}

func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}

func decodeAt(s string, i int) (rune, int, error) {
	r, size := utf8.DecodeRuneInString(s[i:])
	if r == utf8.RuneError && size <= 1 {
		return 0, 0, errors.New("invalid UTF-8 code")
	}
	return r, size, nil
}

func utf8Codepoint(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	i, err := args.OptInt(2, 1)
	if err != nil {
		return nil, err
	}
	start := bytePos(i, len(s))
	j, err := args.OptInt(3, start+1)
	if err != nil {
		return nil, err
	}
	end := bytePos(j, len(s))
	if start < 0 {
		return nil, &ArgError{Func: args.Func, Index: 2, Expected: "out of range"}
	}
	if end >= len(s) {
		return nil, &ArgError{Func: args.Func, Index: 3, Expected: "out of range"}
	}
	var out []any
	for p := start; p <= end; {
		r, size, err := decodeAt(s, p)
		if err != nil {
			return nil, err
		}
		out = append(out, int(r))
		p += size
	}
	return out, nil
}

// utf8ByteLen counts characters between byte positions i and j. On invalid
// input it returns nil and the position of the first bad byte.
func utf8ByteLen(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	i, err := args.OptInt(2, 1)
	if err != nil {
		return nil, err
	}
	j, err := args.OptInt(3, -1)
	if err != nil {
		return nil, err
	}
	start := bytePos(i, len(s))
	end := bytePos(j, len(s))
	if start < 0 || start > len(s) {
		return nil, &ArgError{Func: args.Func, Index: 2, Expected: "initial position out of string"}
	}
	if end >= len(s) {
		return nil, &ArgError{Func: args.Func, Index: 3, Expected: "final position out of string"}
	}
	n := 0
	for p := start; p <= end; {
		_, size, err := decodeAt(s, p)
		if err != nil {
			return []any{nil, p + 1}, nil
		}
		p += size
		n++
	}
	return []any{n}, nil
}

// utf8Offset returns the byte position where the n-th character, counted
// from byte position i, starts.
func utf8Offset(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	n, err := args.Int(2)
	if err != nil {
		return nil, err
	}
	defI := 1
	if n < 0 {
		defI = len(s) + 1
	}
	i, err := args.OptInt(3, defI)
	if err != nil {
		return nil, err
	}
	p := bytePos(i, len(s))
	if p < 0 || p > len(s) {
		return nil, &ArgError{Func: args.Func, Index: 3, Expected: "position out of range"}
	}
	at := func(k int) bool { return k < len(s) && isContinuation(s[k]) }

	if n == 0 {
		for p > 0 && at(p) {
			p--
		}
		return []any{p + 1}, nil
	}
	if at(p) {
		return nil, errors.New("initial position is a continuation byte")
	}
	if n < 0 {
		for n < 0 && p > 0 {
			p--
			for p > 0 && at(p) {
				p--
			}
			n++
		}
	} else {
		n--
		for n > 0 && p < len(s) {
			p++
			for at(p) {
				p++
			}
			n--
		}
	}
	if n == 0 {
		return []any{p + 1}, nil
	}
	return []any{nil}, nil
}

// utf8Codes returns a stateless iterator over (position, codepoint) pairs.
func utf8Codes(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	iter := Func(func(_ context.Context, a Args) ([]any, error) {
		str, err := a.String(1)
		if err != nil {
			return nil, err
		}
		pos, err := a.Int(2)
		if err != nil {
			return nil, err
		}
		// pos is the 1-based position of the previous character, so the
		// search starts right after its first byte.
		p := 0
		if pos > 0 {
			p = pos
			for p < len(str) && isContinuation(str[p]) {
				p++
			}
		}
		if p >= len(str) {
			return []any{nil}, nil
		}
		r, _, err := decodeAt(str, p)
		if err != nil {
			return nil, err
		}
		return []any{p + 1, int(r)}, nil
	})
	return []any{iter, s, 0}, nil
}
