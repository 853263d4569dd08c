package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/keys"
)

// Reference declares that a field of one collection points at records of
// another.
type Reference struct {
	Origin string
	Field  string
	Target string
	Multi  bool
}

// KeyFunc derives the default key of a record
type KeyFunc func(env Env, r store.Record) (string, error)

// LabelFunc returns the autocomplete labels of a record
type LabelFunc func(r store.Record) []string

// DefaultsFunc derives initial values for a new record from text typed
// into a reference selector.
type DefaultsFunc func(input string) store.Record

// Schema is the declarative definition of one record type
type Schema struct {
	name  string
	title string

	fields      []field.Field
	queryFields map[string]QueryField
	queryOrder  []string
	filters     map[string]map[Operator]Filter
	references  []Reference

	keyFields    []string
	keyFunc      KeyFunc
	displayField string
	listFields   []string
	defaultOrder []string
	labels       LabelFunc
	defaults     DefaultsFunc
}

func newSchema(name string) *Schema {
	s := &Schema{
		name:        name,
		title:       field.DefaultLabel(strings.TrimSuffix(name, "s")),
		queryFields: make(map[string]QueryField),
		filters:     make(map[string]map[Operator]Filter),
	}
	s.AddQueryField("id", &Real{Path: "id", Title: "ID"})
	s.AddQueryField("key", &Real{Path: "key", Title: "Key"})
	s.AddFieldFilter("id", Operators...)
	s.AddFieldFilter("key", Operators...)
	s.displayField = "key"
	return s
}

// Name returns the collection name
func (s *Schema) Name() string { return s.name }

// Title returns the singular display name of the record type
func (s *Schema) Title() string { return s.title }

// SetTitle sets the singular display name
func (s *Schema) SetTitle(title string) { s.title = title }

// AddField registers an editable field together with its default query
// field. Reference fields and lists of references also declare a
// reference and a joined query field showing the target's display field.
func (s *Schema) AddField(f field.Field) {
	s.fields = append(s.fields, f)
	name := f.Name()

	if target, multi, ok := referenceTarget(f); ok {
		s.references = append(s.references, Reference{Origin: s.name, Field: name, Target: target, Multi: multi})
		s.AddQueryField(name, &Joined{Field: name, Collection: target, Multi: multi, Title: f.Label()})
		return
	}
	s.AddQueryField(name, &Real{Path: name, Title: f.Label(), Format: displayFormat(f)})
}

func referenceTarget(f field.Field) (target string, multi bool, ok bool) {
	switch t := f.(type) {
	case *field.Reference:
		return t.Collection(), false, true
	case *field.List:
		if ref, isRef := t.Of().(*field.Reference); isRef {
			return ref.Collection(), true, true
		}
	}
	return "", false, false
}

func displayFormat(f field.Field) func(any) any {
	switch f.Kind() {
	case field.KindSelect, field.KindStruct:
		return func(v any) any {
			if v == nil {
				return nil
			}
			return f.Format(plainResolver{}, v)
		}
	}
	return nil
}

// AddQueryField registers or replaces a query field
func (s *Schema) AddQueryField(name string, qf QueryField) {
	if _, ok := s.queryFields[name]; !ok {
		s.queryOrder = append(s.queryOrder, name)
	}
	s.queryFields[name] = qf
}

// AddFilter registers a filter for each operator
func (s *Schema) AddFilter(name string, f Filter, ops ...Operator) {
	byOp, ok := s.filters[name]
	if !ok {
		byOp = make(map[Operator]Filter)
		s.filters[name] = byOp
	}
	for _, op := range ops {
		byOp[op] = f
	}
}

// AddFieldFilter registers direct comparisons on a query field
func (s *Schema) AddFieldFilter(name string, ops ...Operator) {
	s.AddFilter(name, FieldFilter{}, ops...)
}

// AddReferenceFilter registers id matching and sub-filters on a declared
// reference field.
func (s *Schema) AddReferenceFilter(name string) {
	s.AddFilter(name, ReferenceFilter{}, OpEqual, OpNotEqual, OpIn)
}

// SetKeyFields sets the source fields of the default key
func (s *Schema) SetKeyFields(names ...string) { s.keyFields = names }

// SetKeyFunc replaces key generation entirely
func (s *Schema) SetKeyFunc(fn KeyFunc) { s.keyFunc = fn }

// SetDisplayField names the query field used as a record's title
func (s *Schema) SetDisplayField(name string) { s.displayField = name }

// SetListFields sets the fields shown by default in listings
func (s *Schema) SetListFields(names ...string) { s.listFields = names }

// SetDefaultOrder sets the default ordering ("-field" sorts descending)
func (s *Schema) SetDefaultOrder(names ...string) { s.defaultOrder = names }

// SetLabels sets the autocomplete label generator
func (s *Schema) SetLabels(fn LabelFunc) { s.labels = fn }

// SetDefaults sets the creation defaults parser
func (s *Schema) SetDefaults(fn DefaultsFunc) { s.defaults = fn }

// Fields returns the editable fields in registration order
func (s *Schema) Fields() []field.Field { return s.fields }

// Field returns an editable field by name
func (s *Schema) Field(name string) (field.Field, bool) {
	for _, f := range s.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// References returns the declared outgoing references
func (s *Schema) References() []Reference { return s.references }

func (s *Schema) reference(name string) (Reference, bool) {
	for _, ref := range s.references {
		if ref.Field == name {
			return ref, true
		}
	}
	return Reference{}, false
}

// QueryFieldNames returns the directly registered query field names
func (s *Schema) QueryFieldNames() []string { return append([]string(nil), s.queryOrder...) }

// DisplayField returns the query field used for titles
func (s *Schema) DisplayField() string { return s.displayField }

// ListFields returns the default listing fields
func (s *Schema) ListFields() []string {
	if len(s.listFields) == 0 {
		return []string{"key", s.displayField}
	}
	return s.listFields
}

// DefaultOrder returns the default ordering
func (s *Schema) DefaultOrder() []string {
	if len(s.defaultOrder) == 0 {
		return []string{s.displayField}
	}
	return s.defaultOrder
}

// QueryField resolves a query field name. Dotted paths step through a
// declared reference into the target schema, so "author.lastname" yields
// a joined field labelled "Author | Last name".
func (s *Schema) QueryField(env Env, path string) (QueryField, error) {
	if qf, ok := s.queryFields[path]; ok {
		return qf, nil
	}
	head, rest, dotted := strings.Cut(path, ".")
	if !dotted {
		return nil, &UnknownFieldError{Table: s.name, Field: path}
	}
	ref, ok := s.reference(head)
	if !ok {
		return nil, &UnknownFieldError{Table: s.name, Field: path}
	}
	target, err := env.Schema(ref.Target)
	if err != nil {
		return nil, err
	}
	sub, err := target.QueryField(env, rest)
	if err != nil {
		return nil, &UnknownFieldError{Table: s.name, Field: path}
	}
	title := head
	if qf, ok := s.queryFields[head]; ok {
		title = qf.Label()
	}
	return &Joined{
		Field:      head,
		Collection: ref.Target,
		Target:     rest,
		Multi:      ref.Multi,
		Title:      title + " | " + sub.Label(),
	}, nil
}

// Operators returns the operators registered for a filter name, sorted
func (s *Schema) Operators(name string) []Operator {
	byOp := s.filters[name]
	ops := make([]Operator, 0, len(byOp))
	for op := range byOp {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// FilterNames returns the names that have filters, sorted
func (s *Schema) FilterNames() []string {
	names := make([]string, 0, len(s.filters))
	for name := range s.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateKey derives the default key of r
func (s *Schema) CreateKey(env Env, r store.Record) (string, error) {
	if s.keyFunc != nil {
		return s.keyFunc(env, r)
	}
	parts := make([]string, 0, len(s.keyFields))
	for _, name := range s.keyFields {
		parts = append(parts, field.ToString(r[name]))
	}
	return keys.Create(parts...), nil
}

// Defaults returns the creation defaults for a new record typed as input
func (s *Schema) Defaults(input string) store.Record {
	if s.defaults != nil {
		return s.defaults(input)
	}
	r := store.Record{}
	if len(s.fields) > 0 && input != "" {
		r[s.fields[0].Name()] = input
	}
	return r
}

// RecordTitle resolves the display title of one record
func (s *Schema) RecordTitle(env Env, id int64) (string, bool) {
	coll, err := env.Collection(s.name)
	if err != nil {
		return "", false
	}
	qf, err := s.QueryField(env, s.displayField)
	if err != nil {
		return "", false
	}
	q := coll.Query().Where(store.Cond("id", store.OpEqual, id))
	if err := qf.Prepare(env, q, "title"); err != nil {
		return "", false
	}
	r, err := q.First()
	if err != nil {
		return "", false
	}
	title := field.ToString(r["title"])
	if title == "" {
		title = r.Key()
	}
	return title, true
}

// Labels maps every autocomplete label of the collection to a record id.
// Keys always serve as labels.
func (s *Schema) Labels(env Env) (map[string]int64, error) {
	coll, err := env.Collection(s.name)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]int64)
	for _, r := range coll.All() {
		if key := r.Key(); key != "" {
			labels[key] = r.ID()
		}
		if s.labels == nil {
			continue
		}
		for _, label := range s.labels(r) {
			if label = strings.TrimSpace(label); label != "" {
				labels[label] = r.ID()
			}
		}
	}
	if s.labels == nil {
		qf, err := s.QueryField(env, s.displayField)
		if err != nil {
			return nil, err
		}
		q := coll.Query()
		if err := qf.Prepare(env, q, "title"); err != nil {
			return nil, err
		}
		records, err := q.Run()
		if err != nil {
			return nil, fmt.Errorf("labels of %s: %w", s.name, err)
		}
		for _, r := range records {
			if title := field.ToString(r["title"]); title != "" {
				labels[title] = r.ID()
			}
		}
	}
	return labels, nil
}

type plainResolver struct{}

func (plainResolver) Title(collection string, id int64) (string, bool) {
	return fmt.Sprintf("%s #%d", collection, id), true
}

func (plainResolver) Invalid(raw string) string { return raw }
