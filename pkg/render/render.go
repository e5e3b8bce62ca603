// Package render serializes a RecordSet into one of the five output formats:
// an aligned plain-text table, CSV, TSV, a JSON array of row objects, and
// Geoff graph notation.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/nordgraph/graphtool/pkg/record"
	"github.com/nordgraph/graphtool/pkg/value"
)

// Func writes one record set to w in a fixed format. The record set is
// consumed by the call.
type Func func(w io.Writer, rs *record.RecordSet) error

// UnknownFormatError reports a request for a format name nothing is
// registered under.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown format %q", e.Format)
}

// registry maps format names to serializers with their configuration
// already bound.
var registry = map[string]Func{
	"csv":   Delimited(","),
	"tsv":   Delimited("\t"),
	"text":  Text,
	"json":  JSON,
	"geoff": Geoff,
}

// Formats lists the registered format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write serializes rs to w in the named format.
func Write(w io.Writer, format string, rs *record.RecordSet) error {
	fn, ok := registry[format]
	if !ok {
		return &UnknownFormatError{Format: format}
	}
	return fn(w, rs)
}

// Delimited returns a serializer for delimiter-separated text. The header
// line carries the JSON-encoded column names; every cell is rendered with
// value.Quote so the delimiter can never leak out of a field.
func Delimited(delimiter string) Func {
	return func(w io.Writer, rs *record.RecordSet) error {
		header := make([]string, len(rs.Columns))
		for i, column := range rs.Columns {
			header[i] = value.EncodeJSON(column)
		}
		if _, err := io.WriteString(w, strings.Join(header, delimiter)+"\n"); err != nil {
			return err
		}
		for {
			row, err := rs.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			fields := make([]string, len(row))
			for i, v := range row {
				fields[i] = value.Quote(v)
			}
			if _, err := io.WriteString(w, strings.Join(fields, delimiter)+"\n"); err != nil {
				return err
			}
		}
	}
}

// Text writes an aligned table. Every row is buffered first so each column
// can be sized to its widest cell.
func Text(w io.Writer, rs *record.RecordSet) error {
	widths := make([]int, len(rs.Columns))
	for i, column := range rs.Columns {
		widths[i] = runewidth.StringWidth(column)
	}
	var data [][]string
	for {
		row, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = value.Stringify(v)
			if width := runewidth.StringWidth(cells[i]); width > widths[i] {
				widths[i] = width
			}
		}
		data = append(data, cells)
	}

	pad := func(s string, width int) string {
		return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
	}

	header := make([]string, len(rs.Columns))
	for i, column := range rs.Columns {
		header[i] = pad(column, widths[i])
	}
	if _, err := io.WriteString(w, " "+strings.Join(header, " | ")+" \n"); err != nil {
		return err
	}
	rules := make([]string, len(widths))
	for i, width := range widths {
		rules[i] = strings.Repeat("-", width)
	}
	if _, err := io.WriteString(w, "-"+strings.Join(rules, "-+-")+"-\n"); err != nil {
		return err
	}
	for _, cells := range data {
		for i, cell := range cells {
			cells[i] = pad(cell, widths[i])
		}
		if _, err := io.WriteString(w, " "+strings.Join(cells, " | ")+" \n"); err != nil {
			return err
		}
	}
	footer := fmt.Sprintf("(%d rows)\n\n", len(data))
	if len(data) == 1 {
		footer = "(1 row)\n\n"
	}
	_, err := io.WriteString(w, footer)
	return err
}

// JSON writes a single JSON array with one object per row. Column names are
// encoded once and reused for every row. Values go through value.JSONify,
// which keeps lists as arrays and expands entities into objects.
func JSON(w io.Writer, rs *record.RecordSet) error {
	columns := make([]string, len(rs.Columns))
	for i, column := range rs.Columns {
		columns[i] = value.EncodeJSON(column)
	}
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	count := 0
	for {
		row, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		count++
		if count > 1 {
			if _, err := io.WriteString(w, ", "); err != nil {
				return err
			}
		}
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = columns[i] + ": " + value.JSONify(v)
		}
		if _, err := io.WriteString(w, "{"+strings.Join(fields, ", ")+"}"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// Geoff discards the tabular shape entirely and reports the graph entities
// the result references: every cell of every row is scanned (recursing into
// lists), nodes and relationships are deduplicated by URI, then nodes are
// written first and relationships second, each group sorted by URI.
func Geoff(w io.Writer, rs *record.RecordSet) error {
	nodes := map[string]*value.Node{}
	rels := map[string]*value.Relationship{}

	var collect func(v any)
	collect = func(v any) {
		switch v := v.(type) {
		case []any:
			for _, item := range v {
				collect(item)
			}
		case *value.Node:
			nodes[v.URI] = v
		case *value.Relationship:
			rels[v.URI] = v
		}
	}

	for {
		row, err := rs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, v := range row {
			collect(v)
		}
	}

	for _, uri := range sortedKeys(nodes) {
		if _, err := io.WriteString(w, nodes[uri].String()+"\n"); err != nil {
			return err
		}
	}
	for _, uri := range sortedKeys(rels) {
		if _, err := io.WriteString(w, rels[uri].String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
