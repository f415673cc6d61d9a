package hostfuncs

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// UTF8ExtraModule exposes character-indexed UTF-8 string helpers.
var UTF8ExtraModule = OpenFunc(openUTF8Extra)

func openUTF8Extra(ns Namespace) error {
	ns.SetFunc("len", utf8Len)
	ns.SetFunc("sub", utf8Sub)
	ns.SetFunc("byte", utf8Byte)
	ns.SetFunc("char", utf8Char)
	ns.SetFunc("upper", utf8Upper)
	ns.SetFunc("lower", utf8Lower)
	ns.SetFunc("reverse", utf8Reverse)
	ns.SetFunc("width", utf8Width)
	ns.SetFunc("normalize", utf8Normalize)
	ns.SetValue("charpattern", UTF8CharPattern)
	return nil
}

// UTF8CharPattern matches exactly one UTF-8 byte sequence in a Lua pattern.
const UTF8CharPattern = "[\x00-\x7F\xC2-\xFD][\x80-\xBF]*"

// CellWidth returns the number of terminal cells r occupies: 0 for
// combining marks, 2 for wide and fullwidth East Asian characters, 1
// otherwise.
func CellWidth(r rune) int {
	if unicode.In(r, unicode.Mn, unicode.Me) {
		return 0
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// StringWidth returns the total cell width of s.
func StringWidth(s string) int {
	w := 0
	for _, r := range s {
		w += CellWidth(r)
	}
	return w
}

func utf8Len(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	n := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return []any{nil, i + 1}, nil
		}
		i += size
		n++
	}
	return []any{n}, nil
}

// runeRange converts Lua style character positions, where negative values
// count from the end, into a clamped half-open rune interval.
func runeRange(n, i, j int) (int, int) {
	if i < 0 {
		i = n + i + 1
	}
	if j < 0 {
		j = n + j + 1
	}
	if i < 1 {
		i = 1
	}
	if j > n {
		j = n
	}
	if i > j {
		return 0, 0
	}
	return i - 1, j
}

func utf8Sub(_ context.Context, args Args) ([]any, error) {
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
	runes := []rune(s)
	from, to := runeRange(len(runes), i, j)
	return []any{string(runes[from:to])}, nil
}

func utf8Byte(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	i, err := args.OptInt(2, 1)
	if err != nil {
		return nil, err
	}
	j, err := args.OptInt(3, i)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	from, to := runeRange(len(runes), i, j)
	out := make([]any, 0, to-from)
	for _, r := range runes[from:to] {
		out = append(out, int(r))
	}
	return out, nil
}

func utf8Char(_ context.Context, args Args) ([]any, error) {
	var sb strings.Builder
	for n := 1; n <= args.Len(); n++ {
		code, err := args.Int(n)
		if err != nil {
			return nil, err
		}
		if code < 0 || code > unicode.MaxRune {
			return nil, &ArgError{Func: args.Func, Index: n, Expected: "value out of range"}
		}
		sb.WriteRune(rune(code))
	}
	return []any{sb.String()}, nil
}

func utf8Upper(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	return []any{cases.Upper(language.Und).String(s)}, nil
}

func utf8Lower(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	return []any{cases.Lower(language.Und).String(s)}, nil
}

func utf8Reverse(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return []any{string(runes)}, nil
}

func utf8Width(_ context.Context, args Args) ([]any, error) {
	switch v := args.Get(1).(type) {
	case string:
		return []any{StringWidth(v)}, nil
	case int, int64, float64:
		code, err := args.Int(1)
		if err != nil {
			return nil, err
		}
		return []any{CellWidth(rune(code))}, nil
	}
	return nil, args.argError(1, "string or number")
}

func utf8Normalize(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	form, err := args.OptString(2, "NFC")
	if err != nil {
		return nil, err
	}
	var f norm.Form
	switch strings.ToUpper(form) {
	case "NFC":
		f = norm.NFC
	case "NFD":
		f = norm.NFD
	case "NFKC":
		f = norm.NFKC
	case "NFKD":
		f = norm.NFKD
	default:
		return nil, &ArgError{Func: args.Func, Index: 2, Expected: fmt.Sprintf("invalid normalization form %q", form)}
	}
	return []any{f.String(s)}, nil
}
