package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
)

// CSV renders the header line followed by one line per row, joined by \n
// with no trailing newline (the writer owns line termination). A field is
// quoted iff it contains a comma, double quote, CR or LF; encoding/csv is
// not used because it also quotes leading whitespace and always appends a
// record terminator.
func (t Table) CSV() string {
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, joinCSV(t.Header))
	for _, row := range t.Rows {
		lines = append(lines, joinCSV(row))
	}
	return strings.Join(lines, "\n")
}

func joinCSV(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = escapeCSV(f)
	}
	return strings.Join(parts, ",")
}

func escapeCSV(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// JSONOptions configures the row-object JSON rendering.
type JSONOptions struct {
	// EnsureASCII escapes every non-ASCII code point as \uXXXX.
	EnsureASCII bool
	// Indent is the number of spaces per nesting level; zero or negative
	// yields compact output with no extra whitespace.
	Indent int
}

// JSON renders Records as a JSON array of objects in row order, keys in
// header order.
func (t Table) JSON(opts JSONOptions) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range t.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		rec.appendJSON(&buf, opts.EnsureASCII)
	}
	buf.WriteByte(']')
	if opts.Indent <= 0 {
		return buf.String(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", strings.Repeat(" ", opts.Indent)); err != nil {
		return "", fmt.Errorf("indent json: %w", err)
	}
	return out.String(), nil
}

// MarshalJSON renders the record as an object with header-ordered keys,
// which encoding/json cannot do for plain maps.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	r.appendJSON(&buf, false)
	return buf.Bytes(), nil
}

func (r Record) appendJSON(buf *bytes.Buffer, asciiOnly bool) {
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, k, asciiOnly)
		buf.WriteByte(':')
		writeJSONString(buf, r.values[k], asciiOnly)
	}
	buf.WriteByte('}')
}

// writeJSONString writes s as a JSON string literal. encoding/json has no
// equivalent of the ensure-ascii mode, so escaping is done here.
func writeJSONString(buf *bytes.Buffer, s string, asciiOnly bool) {
	buf.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			switch {
			case c < 0x20:
				fmt.Fprintf(buf, `\u%04x`, c)
			case asciiOnly && c > 0x7f:
				if c > 0xffff {
					hi, lo := utf16.EncodeRune(c)
					fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
				} else {
					fmt.Fprintf(buf, `\u%04x`, c)
				}
			default:
				buf.WriteRune(c)
			}
		}
	}
	buf.WriteByte('"')
}
