package field

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/validation"
)

// Input is a free-text field with a validator chain
type Input struct {
	base
	validator validation.Validator
}

// NewInput creates an Input field. A nil validator accepts any text.
func NewInput(name string, v validation.Validator, opts ...Option) *Input {
	f := &Input{base: newBase(name, opts)}
	switch {
	case f.required:
		f.validator = validation.Required(v)
	case v == nil:
		f.validator = validation.Func(func(v any) (any, error) { return v, nil })
	default:
		f.validator = v
	}
	return f
}

func (f *Input) Kind() Kind { return KindInput }

// Validator returns the field's validator chain
func (f *Input) Validator() validation.Validator { return f.validator }

func (f *Input) Empty() any { return nil }

func (f *Input) Format(_ Resolver, v any) string { return ToString(v) }

func (f *Input) Validate(v any) error {
	_, err := f.validator.Validate(v)
	return err
}

// Ask prompts for text. Empty answers are stored as nil.
func (f *Input) Ask(p Prompter, def any) (any, error) {
	v, err := p.Text(f.label, ToString(def), f.validator)
	if err != nil {
		return nil, err
	}
	if validation.IsEmpty(v) {
		return nil, nil
	}
	return v, nil
}

// Choice is one option of a Select field
type Choice struct {
	Value string
	Label string
}

// Select stores one value out of a fixed option list
type Select struct {
	base
	choices []Choice
}

// NewSelect creates a Select field
func NewSelect(name string, choices []Choice, opts ...Option) *Select {
	return &Select{base: newBase(name, opts), choices: choices}
}

func (f *Select) Kind() Kind { return KindSelect }

// Choices returns the options in display order
func (f *Select) Choices() []Choice { return f.choices }

func (f *Select) Empty() any { return nil }

func (f *Select) index(v any) int {
	s := ToString(v)
	for i, c := range f.choices {
		if c.Value == s {
			return i
		}
	}
	return -1
}

// Format shows the option label. Stored values that are not options are
// rendered through r.Invalid.
func (f *Select) Format(r Resolver, v any) string {
	if validation.IsEmpty(v) {
		return ""
	}
	if i := f.index(v); i >= 0 {
		return f.choices[i].Label
	}
	return r.Invalid(ToString(v))
}

func (f *Select) Validate(v any) error {
	if empty, err := f.checkEmpty(v); empty {
		return err
	}
	if f.index(v) < 0 {
		return validation.Invalid("%q is not a valid %s", ToString(v), f.label)
	}
	return nil
}

func (f *Select) Ask(p Prompter, def any) (any, error) {
	labels := make([]string, len(f.choices))
	for i, c := range f.choices {
		labels[i] = c.Label
	}
	for {
		i, err := p.Choose(f.label, labels, f.index(def))
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(f.choices) {
			if f.required {
				continue
			}
			return nil, nil
		}
		return f.choices[i].Value, nil
	}
}

// Reference points at a record of another collection by its id
type Reference struct {
	base
	collection string
}

// NewReference creates a Reference field targeting collection
func NewReference(name, collection string, opts ...Option) *Reference {
	return &Reference{base: newBase(name, opts), collection: collection}
}

func (f *Reference) Kind() Kind { return KindReference }

// Collection returns the referenced collection
func (f *Reference) Collection() string { return f.collection }

func (f *Reference) Empty() any { return nil }

// Format shows the referenced record's title
func (f *Reference) Format(r Resolver, v any) string {
	if validation.IsEmpty(v) {
		return ""
	}
	id, ok := store.AsInt(v)
	if !ok {
		return r.Invalid(ToString(v))
	}
	title, ok := r.Title(f.collection, id)
	if !ok {
		return r.Invalid(fmt.Sprintf("%s #%d", f.collection, id))
	}
	return title
}

func (f *Reference) Validate(v any) error {
	if empty, err := f.checkEmpty(v); empty {
		return err
	}
	if id, ok := store.AsInt(v); !ok || id <= 0 {
		return validation.Invalid("%v is not a %s id", v, f.collection)
	}
	return nil
}

func (f *Reference) Ask(p Prompter, def any) (any, error) {
	for {
		v, err := p.SelectRecord(f.label, f.collection, def)
		if err != nil {
			return nil, err
		}
		if v == nil && f.required {
			continue
		}
		return v, nil
	}
}

// List stores an ordered sequence of values of one element field
type List struct {
	base
	of       Field
	sortable bool
}

// NewList creates a List of the element field of
func NewList(name string, of Field, sortable bool, opts ...Option) *List {
	return &List{base: newBase(name, opts), of: of, sortable: sortable}
}

func (f *List) Kind() Kind { return KindList }

// Of returns the element field
func (f *List) Of() Field { return f.of }

// Sortable reports whether elements can be reordered
func (f *List) Sortable() bool { return f.sortable }

func (f *List) Empty() any { return []any{} }

func (f *List) Format(r Resolver, v any) string {
	items := store.AsList(v)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, f.of.Format(r, item))
	}
	return strings.Join(parts, "\n")
}

func (f *List) Validate(v any) error {
	if empty, err := f.checkEmpty(v); empty {
		return err
	}
	for i, item := range store.AsList(v) {
		if validation.IsEmpty(item) {
			return validation.Invalid("%s element %d is empty", f.label, i+1)
		}
		if err := f.of.Validate(item); err != nil {
			return err
		}
	}
	return nil
}

func (f *List) Ask(p Prompter, def any) (any, error) {
	values, err := p.EditList(f.label, f, store.AsList(def))
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []any{}
	}
	return values, nil
}

// StructFormatter renders a struct value on one line
type StructFormatter func(r Resolver, v map[string]any) string

// Struct stores a nested mapping of named sub-fields
type Struct struct {
	base
	fields    []Field
	formatter StructFormatter
}

// NewStruct creates a Struct. A nil formatter renders "Label: value" lines.
func NewStruct(name string, fields []Field, formatter StructFormatter, opts ...Option) *Struct {
	return &Struct{base: newBase(name, opts), fields: fields, formatter: formatter}
}

func (f *Struct) Kind() Kind { return KindStruct }

// Fields returns the sub-fields in display order
func (f *Struct) Fields() []Field { return f.fields }

func (f *Struct) Empty() any { return nil }

func asMap(v any) map[string]any {
	m, _ := store.Normalize(v).(map[string]any)
	return m
}

func (f *Struct) Format(r Resolver, v any) string {
	m := asMap(v)
	if len(m) == 0 {
		return ""
	}
	if f.formatter != nil {
		return f.formatter(r, m)
	}
	var lines []string
	for _, sub := range f.fields {
		value := m[sub.Name()]
		if validation.IsEmpty(value) {
			continue
		}
		lines = append(lines, sub.Label()+": "+sub.Format(r, value))
	}
	return strings.Join(lines, "\n")
}

func (f *Struct) Validate(v any) error {
	m := asMap(v)
	if empty, err := f.checkEmpty(m); empty {
		return err
	}
	for _, sub := range f.fields {
		if err := sub.Validate(m[sub.Name()]); err != nil {
			return err
		}
	}
	return nil
}

// Ask runs the struct editor. A struct whose sub-values are all empty is
// stored as nil.
func (f *Struct) Ask(p Prompter, def any) (any, error) {
	values, err := p.EditStruct(f.label, f, asMap(def))
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if !validation.IsEmpty(v) {
			return values, nil
		}
	}
	return nil, nil
}
