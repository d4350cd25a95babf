// Package convert turns the <table> elements of an HTML document into flat
// tabular data ready for CSV or row-object JSON serialization. It is a pure
// computation over an in-memory string: no I/O, no shared state, safe to call
// from concurrent goroutines.
package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrNoTableFound is returned when the document contains zero <table>
	// elements.
	ErrNoTableFound = errors.New("no <table> elements found in document")
	// ErrTableConversion is returned when a <table> exists but yields no
	// usable rows or columns. The whole call fails; tables are never
	// silently dropped.
	ErrTableConversion = errors.New("table conversion failed")
)

// Table holds one converted <table>. Every row in Rows has exactly
// len(Header) cells; Records pairs each row with the header names.
type Table struct {
	// Header lists column names left to right. Names are not necessarily
	// unique; stacked header rows are joined with the join separator and
	// missing names fall back to synthesized colN entries.
	Header []string
	// Rows holds the body cells, padded to the header width.
	Rows [][]string
	// Records mirrors Rows as ordered name->value mappings. Duplicate
	// header names collapse with the last column winning; Rows stays the
	// source of truth.
	Records []Record
}

// Options controls naming during conversion. Zero fields take the package
// defaults from DefaultOptions.
type Options struct {
	// ColumnPrefix names synthesized columns: prefix + 1-based index.
	ColumnPrefix string
	// HeaderJoin separates stacked header fragments in a merged name.
	HeaderJoin string
}

// DefaultOptions returns the standard naming scheme (col1, col2, ... and
// underscore-joined multi-row headers).
func DefaultOptions() Options {
	return Options{ColumnPrefix: "col", HeaderJoin: "_"}
}

// Tables extracts and converts every <table> in markup using DefaultOptions.
func Tables(markup string) ([]Table, error) {
	return TablesWith(markup, DefaultOptions())
}

// TablesWith extracts every <table> in document order, at any nesting depth,
// and converts each one. It returns ErrNoTableFound when the document has no
// tables and an error wrapping ErrTableConversion when any table cannot be
// converted; there is no partial success.
func TablesWith(markup string, opts Options) ([]Table, error) {
	if opts.ColumnPrefix == "" {
		opts.ColumnPrefix = DefaultOptions().ColumnPrefix
	}
	if opts.HeaderJoin == "" {
		opts.HeaderJoin = DefaultOptions().HeaderJoin
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil || doc == nil {
		// x/net/html recovers from malformed markup, so a failure here
		// means nothing parseable exists at all.
		return nil, ErrNoTableFound
	}

	elems := findAll(doc, "table")
	if len(elems) == 0 {
		return nil, ErrNoTableFound
	}

	tables := make([]Table, 0, len(elems))
	for i, el := range elems {
		t, err := convertTable(el, opts)
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i+1, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// convertTable flattens one <table> element into header, rows and records.
func convertTable(tbl *html.Node, opts Options) (Table, error) {
	// Collect rows in document order. thead/tbody/tfoot wrappers are
	// irrelevant; only row order matters.
	var raw [][]string
	var isHeader []bool
	for _, tr := range findAll(tbl, "tr") {
		cells := findCells(tr)
		if len(cells) == 0 {
			// A row without cells is dropped entirely.
			continue
		}
		row := make([]string, 0, len(cells))
		header := false
		for _, c := range cells {
			row = append(row, cleanCell(c))
			if strings.EqualFold(c.Data, "th") {
				header = true
			}
		}
		raw = append(raw, row)
		isHeader = append(isHeader, header)
	}
	if len(raw) == 0 {
		return Table{}, fmt.Errorf("%w: table contains no readable rows", ErrTableConversion)
	}

	// The header block is the maximal all-header prefix.
	headerEnd := 0
	for headerEnd < len(raw) && isHeader[headerEnd] {
		headerEnd++
	}
	headerRows, bodyRows := raw[:headerEnd], raw[headerEnd:]

	maxCols := 0
	for _, r := range raw {
		if len(r) > maxCols {
			maxCols = len(r)
		}
	}
	if maxCols == 0 {
		// Unreachable while empty rows are dropped above; kept as a guard.
		return Table{}, fmt.Errorf("%w: could not determine column count", ErrTableConversion)
	}

	header := buildHeader(headerRows, maxCols, opts)
	rows := make([][]string, len(bodyRows))
	for i, r := range bodyRows {
		rows[i] = padRow(r, maxCols)
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = newRecord(header, r)
	}
	return Table{Header: header, Rows: rows, Records: records}, nil
}

// buildHeader merges the header-block rows into one name per column. Stacked
// non-empty fragments are joined top to bottom; blank columns and an empty
// header block fall back to synthesized names. A body row wider than every
// header row therefore yields merged names mixed with colN entries, which is
// intentional.
func buildHeader(headerRows [][]string, maxCols int, opts Options) []string {
	header := make([]string, 0, maxCols)
	if len(headerRows) == 0 {
		for i := 1; i <= maxCols; i++ {
			header = append(header, fmt.Sprintf("%s%d", opts.ColumnPrefix, i))
		}
		return header
	}

	padded := make([][]string, len(headerRows))
	for i, r := range headerRows {
		padded[i] = padRow(r, maxCols)
	}
	for col := 0; col < maxCols; col++ {
		var parts []string
		for _, row := range padded {
			if v := strings.TrimSpace(row[col]); v != "" {
				parts = append(parts, v)
			}
		}
		name := strings.Join(parts, opts.HeaderJoin)
		if name == "" {
			name = fmt.Sprintf("%s%d", opts.ColumnPrefix, col+1)
		}
		header = append(header, name)
	}
	return header
}

// padRow right-pads row with empty strings up to width. Rows longer than
// width are truncated, which cannot happen when width is the table maximum.
func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	if len(row) > width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

var (
	bracketNote   = regexp.MustCompile(`\[\s*[0-9]+\s*\]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// cleanCell flattens one <th>/<td> to a single string: <img> and <sup>
// subtrees contribute nothing, <a> is unwrapped to its inner text, and text
// fragments are joined with single spaces so that <br> acts as a separator.
func cleanCell(cell *html.Node) string {
	var b strings.Builder
	collectCellText(&b, cell)
	return cleanText(b.String())
}

// cleanText strips bracketed numeric annotations like [1] or [ 12 ],
// collapses whitespace runs to single spaces and trims the ends. It is
// idempotent on already-clean strings.
func cleanText(s string) string {
	s = bracketNote.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func collectCellText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "img", "sup":
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		// Fragment boundary; runs collapse during cleanText.
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectCellText(b, c)
	}
}

// findAll returns every element named tag under n in document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(n)
	return out
}

// findCells returns the <th> and <td> descendants of a row, left to right.
func findCells(tr *html.Node) []*html.Node {
	var out []*html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			switch strings.ToLower(cur.Data) {
			case "th", "td":
				out = append(out, cur)
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		dfs(c)
	}
	return out
}
