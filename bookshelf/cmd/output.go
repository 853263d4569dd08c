package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// writeStructured encodes v as JSON or YAML
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

// table lines cells up in columns two spaces apart. Widths are counted in
// terminal cells, so wide characters and styled headers stay aligned.
type table struct {
	w    io.Writer
	rows [][]string
}

func newTable(w io.Writer) *table { return &table{w: w} }

// Header adds a row rendered bold when colors are on
func (t *table) Header(cells ...string) {
	if !color.NoColor {
		bold := lipgloss.NewStyle().Bold(true)
		for i, c := range cells {
			cells[i] = bold.Render(c)
		}
	}
	t.Row(cells...)
}

func (t *table) Row(cells ...string) { t.rows = append(t.rows, cells) }

// Flush writes the buffered rows. Trailing empty cells are dropped.
func (t *table) Flush() error {
	var widths []int
	for _, row := range t.rows {
		for i, c := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	var b strings.Builder
	for _, row := range t.rows {
		last := len(row) - 1
		for last > 0 && row[last] == "" {
			last--
		}
		for i := 0; i <= last; i++ {
			b.WriteString(row[i])
			if i < last {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(row[i])+2))
			}
		}
		b.WriteByte('\n')
	}
	t.rows = nil
	_, err := io.WriteString(t.w, b.String())
	return err
}

// cell renders a value on one line
func cell(v any) string {
	return strings.ReplaceAll(field.ToString(v), "\n", ", ")
}

type groupOutput struct {
	Group any              `json:"group" yaml:"group"`
	Rows  []map[string]any `json:"rows" yaml:"rows"`
}

func rowMaps(columns []schema.Column, rows []store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]any, len(columns))
		for _, c := range columns {
			m[c.Name] = r[c.Name]
		}
		out = append(out, m)
	}
	return out
}

func writeListing(w io.Writer, format string, l *schema.Listing) error {
	groups := l.Groups()
	if format != "table" {
		if l.GroupBy == nil {
			return writeStructured(w, format, rowMaps(l.Columns, l.Rows))
		}
		out := make([]groupOutput, len(groups))
		for i, g := range groups {
			out[i] = groupOutput{Group: g.Value, Rows: rowMaps(l.Columns, g.Rows)}
		}
		return writeStructured(w, format, out)
	}

	if len(l.Rows) == 0 {
		fmt.Fprintf(w, "No %s found.\n", l.Table)
		return nil
	}
	for i, g := range groups {
		if l.GroupBy != nil {
			if i > 0 {
				fmt.Fprintln(w)
			}
			value := cell(g.Value)
			if value == "" {
				value = "(none)"
			}
			fmt.Fprintf(w, "%s: %s\n", l.GroupBy.Label, value)
		}
		tw := newTable(w)
		labels := make([]string, len(l.Columns))
		for j, c := range l.Columns {
			labels[j] = strings.ToUpper(c.Label)
		}
		tw.Header(labels...)
		for _, r := range g.Rows {
			cells := make([]string, len(l.Columns))
			for j, c := range l.Columns {
				cells[j] = cell(r[c.Name])
			}
			tw.Row(cells...)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

type referrerOutput struct {
	Table string   `json:"table" yaml:"table"`
	Field string   `json:"field" yaml:"field"`
	Keys  []string `json:"keys" yaml:"keys"`
}

type detailOutput struct {
	Table        string            `json:"table" yaml:"table"`
	ID           int64             `json:"id" yaml:"id"`
	Key          string            `json:"key" yaml:"key"`
	Fields       map[string]string `json:"fields" yaml:"fields"`
	ReferencedBy []referrerOutput  `json:"referenced_by,omitempty" yaml:"referenced_by,omitempty"`
}

func writeDetail(w io.Writer, format string, env schema.Env, d *schema.Detail) error {
	var refs []referrerOutput
	for _, ref := range d.ReferencedBy {
		out := referrerOutput{Table: ref.Reference.Origin, Field: ref.Reference.Field}
		for _, r := range ref.Records {
			out.Keys = append(out.Keys, r.Key())
		}
		refs = append(refs, out)
	}

	if format != "table" {
		out := detailOutput{Table: d.Table, ID: d.Record.ID(), Key: d.Record.Key(), Fields: map[string]string{}, ReferencedBy: refs}
		for _, v := range d.Values {
			if v.Name != "key" && v.Text != "" {
				out.Fields[v.Name] = v.Text
			}
		}
		return writeStructured(w, format, out)
	}

	tw := newTable(w)
	for _, v := range d.Values {
		lines := strings.Split(v.Text, "\n")
		tw.Row(v.Label, lines[0])
		for _, line := range lines[1:] {
			tw.Row("", line)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(d.ReferencedBy) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Referenced by:")
	titles := schema.Titles{Env: env}
	for _, ref := range d.ReferencedBy {
		for _, r := range ref.Records {
			title, _ := titles.Title(ref.Reference.Origin, r.ID())
			fmt.Fprintf(w, "  %s.%s  %s  %s\n", ref.Reference.Origin, ref.Reference.Field, r.Key(), title)
		}
	}
	return nil
}

func writeTables(w io.Writer, format string, names []string) error {
	if format != "table" {
		return writeStructured(w, format, names)
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

type describeOutput struct {
	Table       string                  `json:"table" yaml:"table"`
	Title       string                  `json:"title" yaml:"title"`
	Fields      []schema.FieldInfo      `json:"fields" yaml:"fields"`
	QueryFields []schema.QueryFieldInfo `json:"query_fields" yaml:"query_fields"`
	Filters     map[string][]string     `json:"filters" yaml:"filters"`
	References  []string                `json:"references,omitempty" yaml:"references,omitempty"`
}

func operatorNames(ops []schema.Operator) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = string(op)
	}
	return out
}

func referenceText(ref schema.Reference) string {
	arrow := "->"
	if ref.Multi {
		arrow = "->>"
	}
	return fmt.Sprintf("%s %s %s", ref.Field, arrow, ref.Target)
}

func writeDescription(w io.Writer, format string, d *schema.Description) error {
	if format != "table" {
		out := describeOutput{Table: d.Table, Title: d.Title, Fields: d.Fields, QueryFields: d.QueryFields, Filters: map[string][]string{}}
		for _, f := range d.Filters {
			out.Filters[f.Name] = operatorNames(f.Operators)
		}
		for _, ref := range d.References {
			out.References = append(out.References, referenceText(ref))
		}
		return writeStructured(w, format, out)
	}

	fmt.Fprintf(w, "%s (%s)\n\nFields:\n", d.Table, d.Title)
	tw := newTable(w)
	tw.Header("  #", "NAME", "LABEL", "KIND", "REQUIRED", "TARGET")
	tw.Row("  0", "key", "Key", "input", "yes")
	for i, f := range d.Fields {
		required := ""
		if f.Required {
			required = "yes"
		}
		tw.Row(fmt.Sprintf("  %d", i+1), f.Name, f.Label, f.Kind, required, f.Target)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nQuery fields:")
	tw = newTable(w)
	for _, qf := range d.QueryFields {
		tw.Row("  "+qf.Name, qf.Label, qf.Variant)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nFilters:")
	tw = newTable(w)
	for _, f := range d.Filters {
		tw.Row("  "+f.Name, strings.Join(operatorNames(f.Operators), " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.References) > 0 {
		fmt.Fprintln(w, "\nReferences:")
		for _, ref := range d.References {
			fmt.Fprintf(w, "  %s\n", referenceText(ref))
		}
	}
	return nil
}
