package hostfuncs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Compat53StringModule adds the Lua 5.3 string functions missing from Lua
// 5.1: pack, unpack, packsize and a rep that accepts a separator.
var Compat53StringModule = OpenFunc(openCompat53String)

func openCompat53String(ns Namespace) error {
	ns.SetFunc("rep", stringRep)
	ns.SetFunc("pack", stringPack)
	ns.SetFunc("unpack", stringUnpack)
	ns.SetFunc("packsize", stringPacksize)
	return nil
}

const maxRepSize = 1 << 30

func stringRep(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	n, err := args.Int(2)
	if err != nil {
		return nil, err
	}
	sep, err := args.OptString(3, "")
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []any{""}, nil
	}
	if (len(s)+len(sep))*n > maxRepSize {
		return nil, errors.New("resulting string too large")
	}
	if sep == "" {
		return []any{strings.Repeat(s, n)}, nil
	}
	var sb strings.Builder
	sb.Grow(len(s)*n + len(sep)*(n-1))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(s)
	}
	return []any{sb.String()}, nil
}

// packKind classifies a pack format option.
type packKind int

const (
	kindInt packKind = iota
	kindUint
	kindFloat
	kindFixedString
	kindString
	kindZString
	kindPadding
	kindAlign
	kindNone
)

// packOption is one parsed option of a pack format.
type packOption struct {
	kind  packKind
	size  int
	align int
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// packFormat iterates over the options of a format string, tracking
// endianness and maximum alignment.
type packFormat struct {
	order    byteOrder
	fmt      string
	pos      int
	maxAlign int
}

func newPackFormat(f string) *packFormat {
	return &packFormat{fmt: f, order: binary.LittleEndian, maxAlign: 1}
}

func (p *packFormat) done() bool {
	return p.pos >= len(p.fmt)
}

// number reads an optional size suffix.
func (p *packFormat) number(def int) int {
	if p.done() || p.fmt[p.pos] < '0' || p.fmt[p.pos] > '9' {
		return def
	}
	n := 0
	for !p.done() && p.fmt[p.pos] >= '0' && p.fmt[p.pos] <= '9' && n < math.MaxInt32/10 {
		n = n*10 + int(p.fmt[p.pos]-'0')
		p.pos++
	}
	return n
}

func (p *packFormat) intSize(def int) (int, error) {
	n := p.number(def)
	if n < 1 || n > 16 {
		return 0, fmt.Errorf("integral size (%d) out of limits [1,16]", n)
	}
	return n, nil
}

// next parses one option.
func (p *packFormat) next() (packOption, error) {
	c := p.fmt[p.pos]
	p.pos++
	switch c {
	case 'b':
		return packOption{kind: kindInt, size: 1}, nil
	case 'B':
		return packOption{kind: kindUint, size: 1}, nil
	case 'h':
		return packOption{kind: kindInt, size: 2}, nil
	case 'H':
		return packOption{kind: kindUint, size: 2}, nil
	case 'l', 'j':
		return packOption{kind: kindInt, size: 8}, nil
	case 'L', 'J', 'T':
		return packOption{kind: kindUint, size: 8}, nil
	case 'i':
		n, err := p.intSize(4)
		return packOption{kind: kindInt, size: n}, err
	case 'I':
		n, err := p.intSize(4)
		return packOption{kind: kindUint, size: n}, err
	case 'f':
		return packOption{kind: kindFloat, size: 4}, nil
	case 'd', 'n':
		return packOption{kind: kindFloat, size: 8}, nil
	case 's':
		n, err := p.intSize(8)
		return packOption{kind: kindString, size: n}, err
	case 'c':
		n := p.number(-1)
		if n < 0 {
			return packOption{}, errors.New("missing size for format option 'c'")
		}
		return packOption{kind: kindFixedString, size: n}, nil
	case 'z':
		return packOption{kind: kindZString}, nil
	case 'x':
		return packOption{kind: kindPadding, size: 1}, nil
	case 'X':
		if p.done() {
			return packOption{}, errors.New("invalid next option for option 'X'")
		}
		inner, err := p.next()
		if err != nil {
			return packOption{}, err
		}
		if inner.kind == kindZString || inner.kind == kindAlign || inner.size == 0 {
			return packOption{}, errors.New("invalid next option for option 'X'")
		}
		return packOption{kind: kindAlign, align: inner.size}, nil
	case ' ':
	case '<':
		p.order = binary.LittleEndian
	case '>':
		p.order = binary.BigEndian
	case '=':
		p.order = binary.LittleEndian
	case '!':
		p.maxAlign = p.number(8)
	default:
		return packOption{}, fmt.Errorf("invalid format option '%c'", c)
	}
	return packOption{kind: kindNone}, nil
}

// padding returns the bytes needed before opt at offset total.
func (p *packFormat) padding(opt packOption, total int) (int, error) {
	var align int
	switch opt.kind {
	case kindAlign:
		align = opt.align
	case kindInt, kindUint, kindFloat, kindString:
		align = opt.size
	default:
		return 0, nil
	}
	if align <= 1 || p.maxAlign <= 1 {
		return 0, nil
	}
	if align > p.maxAlign {
		align = p.maxAlign
	}
	if align&(align-1) != 0 {
		return 0, errors.New("format asks for alignment not power of 2")
	}
	return (align - total&(align-1)) & (align - 1), nil
}

func putInt(order byteOrder, v uint64, size int) []byte {
	out := make([]byte, size)
	ext := byte(0)
	if int64(v) < 0 {
		ext = 0xFF
	}
	for i := 0; i < size; i++ {
		var b byte
		if i < 8 {
			b = byte(v >> (8 * i))
		} else {
			b = ext
		}
		if order == binary.LittleEndian {
			out[i] = b
		} else {
			out[size-1-i] = b
		}
	}
	return out
}

func getInt(order byteOrder, data []byte, signed bool) (int64, error) {
	size := len(data)
	var v uint64
	for i := 0; i < size; i++ {
		var b byte
		if order == binary.LittleEndian {
			b = data[i]
		} else {
			b = data[size-1-i]
		}
		if i < 8 {
			v |= uint64(b) << (8 * i)
		} else {
			want := byte(0)
			if signed && int64(v) < 0 {
				want = 0xFF
			}
			if b != want {
				return 0, fmt.Errorf("%d-byte integer does not fit into Lua Integer", size)
			}
		}
	}
	if signed && size < 8 {
		shift := uint(64 - 8*size)
		return int64(v<<shift) >> shift, nil
	}
	return int64(v), nil
}

// Pack serializes values according to format, following Lua 5.3
// string.pack.
func Pack(format string, values []any) ([]byte, error) {
	p := newPackFormat(format)
	var out []byte
	a := NewArgs("pack", append([]any{format}, values...)...)
	n := 1
	for !p.done() {
		opt, err := p.next()
		if err != nil {
			return nil, err
		}
		pad, err := p.padding(opt, len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, make([]byte, pad)...)
		switch opt.kind {
		case kindInt, kindUint:
			n++
			v, err := a.Int(n)
			if err != nil {
				return nil, err
			}
			if opt.size < 8 {
				lim := int64(1) << (opt.size*8 - 1)
				if opt.kind == kindInt && (int64(v) < -lim || int64(v) >= lim) {
					return nil, &ArgError{Func: "pack", Index: n, Expected: "integer overflow"}
				}
				if opt.kind == kindUint && (v < 0 || uint64(v) >= uint64(lim)*2) {
					return nil, &ArgError{Func: "pack", Index: n, Expected: "unsigned overflow"}
				}
			}
			out = append(out, putInt(p.order, uint64(v), opt.size)...)
		case kindFloat:
			n++
			f, err := a.Number(n)
			if err != nil {
				return nil, err
			}
			if opt.size == 4 {
				out = p.order.AppendUint32(out, math.Float32bits(float32(f)))
			} else {
				out = p.order.AppendUint64(out, math.Float64bits(f))
			}
		case kindFixedString:
			n++
			s, err := a.String(n)
			if err != nil {
				return nil, err
			}
			if len(s) > opt.size {
				return nil, &ArgError{Func: "pack", Index: n, Expected: "string longer than given size"}
			}
			out = append(out, s...)
			out = append(out, make([]byte, opt.size-len(s))...)
		case kindString:
			n++
			s, err := a.String(n)
			if err != nil {
				return nil, err
			}
			if opt.size < 8 && uint64(len(s)) >= uint64(1)<<(opt.size*8) {
				return nil, &ArgError{Func: "pack", Index: n, Expected: "string length does not fit in given size"}
			}
			out = append(out, putInt(p.order, uint64(len(s)), opt.size)...)
			out = append(out, s...)
		case kindZString:
			n++
			s, err := a.String(n)
			if err != nil {
				return nil, err
			}
			if strings.IndexByte(s, 0) >= 0 {
				return nil, &ArgError{Func: "pack", Index: n, Expected: "string contains zeros"}
			}
			out = append(out, s...)
			out = append(out, 0)
		case kindPadding:
			out = append(out, 0)
		}
	}
	return out, nil
}

// Unpack decodes data from the 1-based position pos according to format.
// It returns the values followed by the position after the last read byte.
func Unpack(format string, data []byte, pos int) ([]any, error) {
	if pos < 0 {
		pos = len(data) + pos + 1
	}
	if pos < 1 || pos-1 > len(data) {
		return nil, errors.New("initial position out of string")
	}
	p := newPackFormat(format)
	off := pos - 1
	var out []any
	need := func(n int) error {
		if n > len(data)-off {
			return errors.New("data string too short")
		}
		return nil
	}
	for !p.done() {
		opt, err := p.next()
		if err != nil {
			return nil, err
		}
		pad, err := p.padding(opt, off)
		if err != nil {
			return nil, err
		}
		if err := need(pad); err != nil {
			return nil, err
		}
		off += pad
		switch opt.kind {
		case kindInt, kindUint:
			if err := need(opt.size); err != nil {
				return nil, err
			}
			v, err := getInt(p.order, data[off:off+opt.size], opt.kind == kindInt)
			if err != nil {
				return nil, err
			}
			out = append(out, int(v))
			off += opt.size
		case kindFloat:
			if err := need(opt.size); err != nil {
				return nil, err
			}
			if opt.size == 4 {
				out = append(out, float64(math.Float32frombits(p.order.Uint32(data[off:]))))
			} else {
				out = append(out, math.Float64frombits(p.order.Uint64(data[off:])))
			}
			off += opt.size
		case kindFixedString:
			if err := need(opt.size); err != nil {
				return nil, err
			}
			out = append(out, string(data[off:off+opt.size]))
			off += opt.size
		case kindString:
			if err := need(opt.size); err != nil {
				return nil, err
			}
			n, err := getInt(p.order, data[off:off+opt.size], false)
			if err != nil {
				return nil, err
			}
			off += opt.size
			if n < 0 || int(n) > len(data)-off {
				return nil, errors.New("data string too short")
			}
			out = append(out, string(data[off:off+int(n)]))
			off += int(n)
		case kindZString:
			end := off
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return nil, errors.New("unfinished string for format 'z'")
			}
			out = append(out, string(data[off:end]))
			off = end + 1
		case kindPadding:
			if err := need(1); err != nil {
				return nil, err
			}
			off++
		}
	}
	return append(out, off+1), nil
}

// Packsize returns the size of a string produced by Pack with format.
// Variable-length options are rejected.
func Packsize(format string) (int, error) {
	p := newPackFormat(format)
	total := 0
	for !p.done() {
		opt, err := p.next()
		if err != nil {
			return 0, err
		}
		pad, err := p.padding(opt, total)
		if err != nil {
			return 0, err
		}
		total += pad
		switch opt.kind {
		case kindString, kindZString:
			return 0, errors.New("variable-size format in packsize")
		case kindAlign, kindNone:
		default:
			total += opt.size
		}
	}
	return total, nil
}

func stringPack(_ context.Context, args Args) ([]any, error) {
	format, err := args.String(1)
	if err != nil {
		return nil, err
	}
	out, err := Pack(format, args.Rest(2))
	if err != nil {
		return nil, err
	}
	return []any{string(out)}, nil
}

func stringUnpack(_ context.Context, args Args) ([]any, error) {
	format, err := args.String(1)
	if err != nil {
		return nil, err
	}
	data, err := args.String(2)
	if err != nil {
		return nil, err
	}
	pos, err := args.OptInt(3, 1)
	if err != nil {
		return nil, err
	}
	return Unpack(format, []byte(data), pos)
}

func stringPacksize(_ context.Context, args Args) ([]any, error) {
	format, err := args.String(1)
	if err != nil {
		return nil, err
	}
	n, err := Packsize(format)
	if err != nil {
		return nil, err
	}
	return []any{n}, nil
}
