package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// EncodingModule detects and converts text encodings.
var EncodingModule = OpenFunc(openEncoding)

// byte order marks, longest first so UTF-32LE wins over UTF-16LE.
var boms = []struct {
	charset string
	bom     []byte
}{
	{"UTF-32LE", []byte{0xFF, 0xFE, 0x00, 0x00}},
	{"UTF-32BE", []byte{0x00, 0x00, 0xFE, 0xFF}},
	{"UTF-8", []byte{0xEF, 0xBB, 0xBF}},
	{"UTF-16LE", []byte{0xFF, 0xFE}},
	{"UTF-16BE", []byte{0xFE, 0xFF}},
}

func openEncoding(ns Namespace) error {
	ns.SetFunc("detect", encodingDetect)
	ns.SetFunc("detect_string", encodingDetectString)
	ns.SetFunc("convert", encodingConvert)
	ns.SetFunc("get_charset_bom", encodingGetCharsetBOM)
	ns.SetFunc("strip_bom", encodingStripBOM)
	return nil
}

// LookupEncoding resolves a charset name. Unicode names are handled
// directly; anything else goes through the WHATWG and IANA registries.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(name) {
	case "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "UTF-16BE", "UTF-16":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "UTF-32LE":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case "UTF-32BE", "UTF-32":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

// CharsetBOM returns the byte order mark of a Unicode charset, or nil.
func CharsetBOM(charset string) []byte {
	c := strings.ToUpper(charset)
	switch c {
	case "UTF-16":
		c = "UTF-16BE"
	case "UTF-32":
		c = "UTF-32BE"
	}
	for _, b := range boms {
		if b.charset == c {
			return b.bom
		}
	}
	return nil
}

// DetectEncoding guesses the charset of data. A byte order mark decides
// outright; otherwise valid UTF-8 is reported as such and anything else as
// ISO-8859-1. bom reports whether data starts with a byte order mark.
func DetectEncoding(data []byte) (charset string, bom bool) {
	for _, b := range boms {
		if bytes.HasPrefix(data, b.bom) {
			return b.charset, true
		}
	}
	if utf8.Valid(data) {
		return "UTF-8", false
	}
	return "ISO-8859-1", false
}

// ConvertOptions controls Convert.
type ConvertOptions struct {
	// StripFromBOM removes a leading byte order mark of the source charset.
	StripFromBOM bool
	// AddToBOM prefixes the result with the byte order mark of the target.
	AddToBOM bool
	// Strict fails on characters the target cannot represent instead of
	// substituting them.
	Strict bool
}

// Convert transcodes text between charsets.
func Convert(to, from string, text []byte, opts ConvertOptions) ([]byte, error) {
	fromEnc, err := LookupEncoding(from)
	if err != nil {
		return nil, err
	}
	toEnc, err := LookupEncoding(to)
	if err != nil {
		return nil, err
	}
	if opts.StripFromBOM {
		text = bytes.TrimPrefix(text, CharsetBOM(from))
	}
	decoded, err := fromEnc.NewDecoder().Bytes(text)
	if err != nil {
		return nil, err
	}
	encoder := toEnc.NewEncoder()
	if !opts.Strict {
		encoder = encoding.ReplaceUnsupported(encoder)
	}
	out, err := encoder.Bytes(decoded)
	if err != nil {
		return nil, err
	}
	if opts.AddToBOM {
		if bom := CharsetBOM(to); bom != nil && !bytes.HasPrefix(out, bom) {
			out = append(append([]byte{}, bom...), out...)
		}
	}
	return out, nil
}

const detectSampleSize = 64 * 1024

func encodingDetect(_ context.Context, args Args) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, detectSampleSize)
	n, err := io.ReadFull(f, buf)
	sample := buf[:n]
	switch {
	case err == nil:
		// The file continues past the sample, so the last rune may be cut.
		sample = trimPartialRune(sample)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
	default:
		return []any{nil, err.Error()}, nil
	}
	charset, bom := DetectEncoding(sample)
	return []any{charset, bom}, nil
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of
// a read buffer.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

func encodingDetectString(_ context.Context, args Args) ([]any, error) {
	s, err := args.String(1)
	if err != nil {
		return nil, err
	}
	charset, bom := DetectEncoding([]byte(s))
	return []any{charset, bom}, nil
}

func encodingConvert(_ context.Context, args Args) ([]any, error) {
	to, err := args.String(1)
	if err != nil {
		return nil, err
	}
	from, err := args.String(2)
	if err != nil {
		return nil, err
	}
	text, err := args.String(3)
	if err != nil {
		return nil, err
	}
	raw, err := args.OptMap(4)
	if err != nil {
		return nil, err
	}
	o := NewArgs(args.Func, raw["handle_from_bom"], raw["handle_to_bom"], raw["strict"])
	out, err := Convert(to, from, []byte(text), ConvertOptions{
		StripFromBOM: o.Bool(1),
		AddToBOM:     o.Bool(2),
		Strict:       o.Bool(3),
	})
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{string(out)}, nil
}

func encodingGetCharsetBOM(_ context.Context, args Args) ([]any, error) {
	charset, err := args.String(1)
	if err != nil {
		return nil, err
	}
	if bom := CharsetBOM(charset); bom != nil {
		return []any{string(bom)}, nil
	}
	return []any{nil}, nil
}

func encodingStripBOM(_ context.Context, args Args) ([]any, error) {
	text, err := args.String(1)
	if err != nil {
		return nil, err
	}
	charset, err := args.OptString(2, "")
	if err != nil {
		return nil, err
	}
	if charset == "" {
		for _, b := range boms {
			if strings.HasPrefix(text, string(b.bom)) {
				return []any{text[len(b.bom):]}, nil
			}
		}
		return []any{text}, nil
	}
	return []any{strings.TrimPrefix(text, string(CharsetBOM(charset)))}, nil
}
