// Package output delivers converted tables to stdout and to per-table files.
// Serialization itself lives in the convert package; this package only
// decides where the bytes go.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tablepick/tablepick/internal/convert"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// DefaultBaseName is used when the configured base name sanitizes to nothing.
const DefaultBaseName = "tablepick"

var (
	// ErrNoTables is returned when the writer is handed zero tables.
	ErrNoTables = errors.New("no tables to output")
	// ErrUnsupportedFormat is returned for formats outside csv/json.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Options selects the destination and rendering of the table set.
type Options struct {
	// Format is "csv" or "json" (case-insensitive).
	Format string
	// OutDir, when non-empty, receives one file per table.
	OutDir string
	// BaseName is the file name stem; sanitized before use.
	BaseName string
	// Stdout prints each table with a marker line.
	Stdout bool
	// EnsureASCII and Indent apply to JSON only.
	EnsureASCII bool
	Indent      int
}

// Writer emits tables according to Options.
type Writer struct {
	// Stdout receives table payloads when Options.Stdout is set.
	// Nil means os.Stdout.
	Stdout io.Writer
}

// Emit prints and/or writes every table and returns the paths written.
// Tables are numbered from 1 in input order. The call fails up front on an
// empty table set or an unknown format and never produces partial stdout
// output in those cases.
func (w *Writer) Emit(tables []convert.Table, opts Options) ([]string, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	if opts.Stdout {
		if err := w.printTables(tables, format, opts); err != nil {
			return nil, err
		}
	}
	if opts.OutDir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	base := SanitizeBaseName(opts.BaseName)
	written := make([]string, 0, len(tables))
	for i, tbl := range tables {
		payload, err := serialize(tbl, format, opts)
		if err != nil {
			return written, err
		}
		// Files always end with a newline.
		if !strings.HasSuffix(payload, "\n") {
			payload += "\n"
		}
		path := filepath.Join(opts.OutDir, fmt.Sprintf("%s_table%02d.%s", base, i+1, format))
		if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		log.Debug().Str("path", path).Msg("wrote table file")
	}
	return written, nil
}

func (w *Writer) printTables(tables []convert.Table, format string, opts Options) error {
	out := w.Stdout
	if out == nil {
		out = os.Stdout
	}
	for i, tbl := range tables {
		payload, err := serialize(tbl, format, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "===== table %02d (%s) =====\n", i+1, format)
		fmt.Fprintln(out, payload)
		if i != len(tables)-1 {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func serialize(tbl convert.Table, format string, opts Options) (string, error) {
	switch format {
	case FormatCSV:
		return tbl.CSV(), nil
	case FormatJSON:
		return tbl.JSON(convert.JSONOptions{EnsureASCII: opts.EnsureASCII, Indent: opts.Indent})
	}
	// Unreachable after normalizeFormat; kept for callers of serialize.
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func normalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (expected csv or json)", ErrUnsupportedFormat, format)
}

var (
	unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]+`)
	spaceRun        = regexp.MustCompile(`\s+`)
	underscoreRun   = regexp.MustCompile(`_+`)
)

// SanitizeBaseName makes a safe file name stem: unsafe characters and
// whitespace become underscores, leading and trailing dots or spaces are
// dropped, and an empty result falls back to DefaultBaseName.
func SanitizeBaseName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultBaseName
	}
	s = unsafeFileChars.ReplaceAllString(s, "_")
	s = spaceRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, " .")
	s = underscoreRun.ReplaceAllString(s, "_")
	if s == "" {
		return DefaultBaseName
	}
	return s
}
