package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML}

// printer renders command results as a table, JSON or YAML.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	format = strings.ToLower(format)
	switch format {
	case "":
		format = formatTable
	case formatTable, formatJSON, formatYAML:
	default:
		return nil, usagef("output format %q: want one of %s", format, strings.Join(outputFormats, ", "))
	}
	return &printer{w: w, format: format}, nil
}

// print writes v as JSON or YAML, or calls rows to fill a table.
func (p *printer) print(v any, header table.Row, rows func(t table.Writer)) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		doc, err := document(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	rows(t)
	t.Render()
	return nil
}

// document converts v to plain maps and slices through its JSON form so
// YAML output uses the same field names as JSON.
func document(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return doc, nil
}
