package hostfuncs

import (
	"context"
	"regexp"
	"strings"
)

// RegexClass is the class of compiled expressions.
const RegexClass = "regex.Regex"

// Match options accepted by regex.cmatch.
const (
	RegexAnchored = 1 << iota
	RegexNotEmpty
)

// RegexModule compiles and runs regular expressions. Match positions are
// 1-based byte offsets; each pair is a start and an exclusive end.
var RegexModule = OpenFunc(openRegex)

// Regex is a compiled expression.
type Regex struct {
	re *regexp.Regexp
	// after and at match the expression behind one byte of context, either
	// anywhere past that byte or right after it. Group 1 is the match.
	after   *regexp.Regexp
	at      *regexp.Regexp
	pattern string
}

func openRegex(ns Namespace) error {
	ns.SetClass(RegexClass, map[string]Func{
		"pattern": func(_ context.Context, args Args) ([]any, error) {
			r, err := Self[*Regex](args, RegexClass)
			if err != nil {
				return nil, err
			}
			return []any{r.pattern}, nil
		},
		"cmatch": regexCMatch,
	})
	ns.SetFunc("compile", regexCompile)
	ns.SetFunc("cmatch", regexCMatch)
	ns.SetFunc("gsub", regexGsub)
	ns.SetValue("ANCHORED", RegexAnchored)
	ns.SetValue("NOTEMPTY", RegexNotEmpty)
	return nil
}

// CompileRegex compiles pattern with options, a string made of the flags
// "i" (case insensitive), "m" (multi-line) and "s" (dot matches newline).
func CompileRegex(pattern, options string) (*Regex, error) {
	var flags strings.Builder
	for _, c := range options {
		switch c {
		case 'i', 'm', 's':
			flags.WriteRune(c)
		}
	}
	expr := pattern
	if flags.Len() > 0 {
		expr = "(?" + flags.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	after, err := regexp.Compile(`\A(?s:.)(?s:.*?)(` + expr + `)`)
	if err != nil {
		return nil, err
	}
	at, err := regexp.Compile(`\A(?s:.)(` + expr + `)`)
	if err != nil {
		return nil, err
	}
	return &Regex{re: re, after: after, at: at, pattern: pattern}, nil
}

// Match returns the 1-based positions of the first match at or after
// offset, followed by those of every capture group. Groups that did not
// participate are reported as 0, 0. Assertions see the whole subject, so
// ^ and \A do not match at an offset past the start and \b looks at the
// byte before offset.
func (r *Regex) Match(subject string, offset, flags int) []int {
	if offset < 1 {
		offset = 1
	}
	if offset > len(subject)+1 {
		return nil
	}
	anchored := flags&RegexAnchored != 0
	start := offset - 1
	for start <= len(subject) {
		loc, base := r.find(subject, start, anchored)
		if loc == nil {
			return nil
		}
		if flags&RegexNotEmpty != 0 && loc[0] == loc[1] {
			if anchored {
				return nil
			}
			start = base + loc[0] + 1
			continue
		}
		out := make([]int, len(loc))
		for i, v := range loc {
			if v < 0 {
				out[i] = 0
				continue
			}
			out[i] = base + v + 1
		}
		return out
	}
	return nil
}

// find returns the submatch indexes of the first match starting at or
// after start, relative to base. Past the beginning of subject the search
// keeps the preceding byte as context.
func (r *Regex) find(subject string, start int, anchored bool) (loc []int, base int) {
	if start == 0 {
		loc = r.re.FindStringSubmatchIndex(subject)
		if loc == nil || anchored && loc[0] != 0 {
			return nil, 0
		}
		return loc, 0
	}
	re := r.after
	if anchored {
		re = r.at
	}
	loc = re.FindStringSubmatchIndex(subject[start-1:])
	if loc == nil {
		return nil, 0
	}
	return loc[2:], start - 1
}

func regexArg(args Args, n int) (*Regex, error) {
	switch v := args.Get(n).(type) {
	case *Regex:
		return v, nil
	case string:
		return CompileRegex(v, "")
	}
	return nil, args.argError(n, RegexClass)
}

func regexCompile(_ context.Context, args Args) ([]any, error) {
	pattern, err := args.String(1)
	if err != nil {
		return nil, err
	}
	options, err := args.OptString(2, "")
	if err != nil {
		return nil, err
	}
	r, err := CompileRegex(pattern, options)
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{Object{Class: RegexClass, Value: r}}, nil
}

func regexCMatch(_ context.Context, args Args) ([]any, error) {
	r, err := regexArg(args, 1)
	if err != nil {
		return nil, err
	}
	subject, err := args.String(2)
	if err != nil {
		return nil, err
	}
	offset, err := args.OptInt(3, 1)
	if err != nil {
		return nil, err
	}
	flags, err := args.OptInt(4, 0)
	if err != nil {
		return nil, err
	}
	loc := r.Match(subject, offset, flags)
	if loc == nil {
		return []any{nil}, nil
	}
	out := make([]any, len(loc))
	for i, v := range loc {
		out[i] = v
	}
	return out, nil
}

// Gsub replaces up to limit matches of r in subject (all when limit is
// negative). In replacement, %0 stands for the whole match, %1 to %9 for
// capture groups and %% for a literal percent sign.
func (r *Regex) Gsub(subject, replacement string, limit int) (string, int) {
	var sb strings.Builder
	count := 0
	last := 0
	for _, loc := range r.re.FindAllStringSubmatchIndex(subject, limit) {
		sb.WriteString(subject[last:loc[0]])
		expandReplacement(&sb, replacement, subject, loc)
		last = loc[1]
		count++
	}
	sb.WriteString(subject[last:])
	return sb.String(), count
}

func expandReplacement(sb *strings.Builder, repl, subject string, loc []int) {
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '%' || i+1 >= len(repl) {
			sb.WriteByte(c)
			continue
		}
		next := repl[i+1]
		switch {
		case next == '%':
			sb.WriteByte('%')
			i++
		case next >= '0' && next <= '9':
			g := int(next - '0')
			if 2*g+1 < len(loc) && loc[2*g] >= 0 {
				sb.WriteString(subject[loc[2*g]:loc[2*g+1]])
			}
			i++
		default:
			sb.WriteByte(c)
		}
	}
}

func regexGsub(_ context.Context, args Args) ([]any, error) {
	r, err := regexArg(args, 1)
	if err != nil {
		return nil, err
	}
	subject, err := args.String(2)
	if err != nil {
		return nil, err
	}
	replacement, err := args.String(3)
	if err != nil {
		return nil, err
	}
	limit, err := args.OptInt(4, -1)
	if err != nil {
		return nil, err
	}
	out, n := r.Gsub(subject, replacement, limit)
	return []any{out, n}, nil
}
