package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// Column is one output column of a listing
type Column struct {
	Name  string
	Label string
}

// ListOptions controls a listing
type ListOptions struct {
	Fields  []string
	OrderBy []string
	Filters []string
	GroupBy string
	Limit   int
}

// Listing is the result of List
type Listing struct {
	Table   string
	Columns []Column
	Rows    []store.Record
	GroupBy *Column
}

// Group is a run of rows sharing one group value
type Group struct {
	Value any
	Rows  []store.Record
}

// List runs a listing of a table. Unknown fields and unusable filters are
// reported before any query runs.
func List(env Env, table string, opts ListOptions) (*Listing, error) {
	s, err := env.Schema(table)
	if err != nil {
		return nil, err
	}
	exprs, err := ParseFilters(env, s, opts.Filters)
	if err != nil {
		return nil, err
	}

	names := opts.Fields
	if len(names) == 0 {
		names = s.ListFields()
	}
	orders := opts.OrderBy
	if len(orders) == 0 {
		orders = s.DefaultOrder()
	}

	fields := make(map[string]QueryField)
	var unknown []error
	resolve := func(name string) {
		if _, done := fields[name]; done {
			return
		}
		qf, err := s.QueryField(env, name)
		if err != nil {
			unknown = append(unknown, err)
			return
		}
		fields[name] = qf
	}
	for _, name := range names {
		resolve(name)
	}
	for _, o := range orders {
		resolve(strings.TrimPrefix(o, "-"))
	}
	if opts.GroupBy != "" {
		resolve(opts.GroupBy)
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}

	coll, err := env.Collection(table)
	if err != nil {
		return nil, err
	}
	q := coll.Query().Select("id")

	listing := &Listing{Table: table}
	for _, name := range names {
		if err := fields[name].Prepare(env, q, name); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		listing.Columns = append(listing.Columns, Column{Name: name, Label: fields[name].Label()})
	}

	var extra []string
	prepareExtra := func(name string) error {
		if q.HasCompute(name) {
			return nil
		}
		extra = append(extra, name)
		return fields[name].Prepare(env, q, name)
	}
	if opts.GroupBy != "" {
		if err := prepareExtra(opts.GroupBy); err != nil {
			return nil, err
		}
		listing.GroupBy = &Column{Name: opts.GroupBy, Label: fields[opts.GroupBy].Label()}
		q.OrderBy(store.Order{Field: opts.GroupBy})
	}
	for _, o := range orders {
		name := strings.TrimPrefix(o, "-")
		if err := prepareExtra(name); err != nil {
			return nil, err
		}
		q.OrderBy(store.Order{Field: name, Desc: strings.HasPrefix(o, "-")})
	}

	if err := ApplyFilters(env, s, q, exprs); err != nil {
		return nil, err
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	rows, err := q.Run()
	if err != nil {
		return nil, err
	}
	// group and sort columns that were not requested stay until grouping
	for _, r := range rows {
		for _, name := range extra {
			if name != opts.GroupBy {
				delete(r, name)
			}
		}
	}
	listing.Rows = rows
	return listing, nil
}

// Groups splits the rows by the group field, keeping order. Rows lose the
// group column unless it was also requested.
func (l *Listing) Groups() []Group {
	if l.GroupBy == nil {
		return []Group{{Rows: l.Rows}}
	}
	requested := false
	for _, c := range l.Columns {
		if c.Name == l.GroupBy.Name {
			requested = true
		}
	}
	var groups []Group
	for _, r := range l.Rows {
		v := r[l.GroupBy.Name]
		if !requested {
			r = r.Clone()
			delete(r, l.GroupBy.Name)
		}
		if n := len(groups); n > 0 && store.CompareOrder(groups[n-1].Value, v) == 0 {
			groups[n-1].Rows = append(groups[n-1].Rows, r)
			continue
		}
		groups = append(groups, Group{Value: v, Rows: []store.Record{r}})
	}
	return groups
}

// Titles resolves reference titles through the registry. Highlight, when
// set, decorates values that cannot be resolved.
type Titles struct {
	Env       Env
	Highlight func(string) string
}

// Title implements field.Resolver
func (t Titles) Title(collection string, id int64) (string, bool) {
	s, err := t.Env.Schema(collection)
	if err != nil {
		return "", false
	}
	return s.RecordTitle(t.Env, id)
}

// Invalid implements field.Resolver
func (t Titles) Invalid(raw string) string {
	if t.Highlight != nil {
		return t.Highlight(raw)
	}
	return "<" + raw + ">"
}

// Value is one labelled, formatted field of a record
type Value struct {
	Name  string
	Label string
	Text  string
}

// Referrer lists the records of one collection field pointing at targets
type Referrer struct {
	Reference Reference
	Records   []store.Record
}

// Detail is the result of Show
type Detail struct {
	Table        string
	Record       store.Record
	Values       []Value
	ReferencedBy []Referrer
}

// FindRecord resolves a key, or a numeric id, to a record
func FindRecord(coll *store.Collection, keyOrID string) (store.Record, error) {
	r, err := coll.FindByKey(keyOrID)
	if err == nil {
		return r, nil
	}
	if id, ok := store.AsInt(keyOrID); ok {
		if byID, idErr := coll.FindByID(id); idErr == nil {
			return byID, nil
		}
	}
	return nil, err
}

// Show loads one record with its formatted fields and the records that
// refer to it.
func Show(env Env, table, keyOrID string, r field.Resolver) (*Detail, error) {
	s, err := env.Schema(table)
	if err != nil {
		return nil, err
	}
	coll, err := env.Collection(table)
	if err != nil {
		return nil, err
	}
	rec, err := FindRecord(coll, keyOrID)
	if err != nil {
		return nil, err
	}

	d := &Detail{Table: table, Record: rec}
	d.Values = append(d.Values, Value{Name: "key", Label: "Key", Text: rec.Key()})
	for _, f := range s.Fields() {
		d.Values = append(d.Values, Value{Name: f.Name(), Label: f.Label(), Text: f.Format(r, rec[f.Name()])})
	}
	d.ReferencedBy, err = Referrers(env, table, []int64{rec.ID()})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Referrers finds, across every registered collection, the records whose
// declared references point at one of ids in table.
func Referrers(env Env, table string, ids []int64) ([]Referrer, error) {
	targets := make([]any, len(ids))
	for i, id := range ids {
		targets[i] = id
	}
	var out []Referrer
	for _, name := range env.Registry.Names() {
		s, err := env.Schema(name)
		if err != nil {
			return nil, err
		}
		for _, ref := range s.References() {
			if ref.Target != table {
				continue
			}
			coll, err := env.Collection(name)
			if err != nil {
				return nil, err
			}
			records, err := coll.Find(store.Cond(ref.Field, store.OpIn, targets))
			if err != nil {
				return nil, err
			}
			if len(records) > 0 {
				out = append(out, Referrer{Reference: ref, Records: records})
			}
		}
	}
	return out, nil
}

// FieldInfo describes one editable field
type FieldInfo struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label" yaml:"label"`
	Kind     string `json:"kind" yaml:"kind"`
	Required bool   `json:"required" yaml:"required"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
}

// QueryFieldInfo describes one query field
type QueryFieldInfo struct {
	Name    string `json:"name" yaml:"name"`
	Label   string `json:"label" yaml:"label"`
	Variant string `json:"variant" yaml:"variant"`
}

// FilterInfo describes the operators of one filter name
type FilterInfo struct {
	Name      string
	Operators []Operator
}

// Description is the result of Describe
type Description struct {
	Table       string
	Title       string
	Fields      []FieldInfo
	QueryFields []QueryFieldInfo
	Filters     []FilterInfo
	References  []Reference
}

// Describe lists the definition of a table
func Describe(env Env, table string) (*Description, error) {
	s, err := env.Schema(table)
	if err != nil {
		return nil, err
	}
	d := &Description{Table: table, Title: s.Title(), References: s.References()}
	for _, f := range s.Fields() {
		info := FieldInfo{Name: f.Name(), Label: f.Label(), Kind: f.Kind().String(), Required: f.Required()}
		if target, _, ok := referenceTarget(f); ok {
			info.Target = target
		}
		d.Fields = append(d.Fields, info)
	}
	for _, name := range s.QueryFieldNames() {
		qf := s.queryFields[name]
		d.QueryFields = append(d.QueryFields, QueryFieldInfo{Name: name, Label: qf.Label(), Variant: variantName(qf)})
	}
	for _, name := range s.FilterNames() {
		d.Filters = append(d.Filters, FilterInfo{Name: name, Operators: s.Operators(name)})
	}
	return d, nil
}

func variantName(qf QueryField) string {
	switch qf.(type) {
	case *Real:
		return "real"
	case *Virtual:
		return "virtual"
	case *Joined:
		return "joined"
	case *References:
		return "references"
	case *Alternatives:
		return "alternatives"
	}
	return "custom"
}
