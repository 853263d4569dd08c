// Package field describes the editable attributes of a record. The set of
// field kinds is closed: Input, Select, Reference, List and Struct.
package field

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/validation"
)

// Kind identifies a field variant
type Kind int

const (
	KindInput Kind = iota
	KindSelect
	KindReference
	KindList
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSelect:
		return "select"
	case KindReference:
		return "reference"
	case KindList:
		return "list"
	case KindStruct:
		return "struct"
	}
	return "unknown"
}

// Resolver supplies what formatting needs from outside the record: titles
// of referenced records and the rendering of values that cannot be shown.
type Resolver interface {
	// Title returns the display title of a record, false if it does not exist.
	Title(collection string, id int64) (string, bool)
	// Invalid renders a raw value that failed to resolve.
	Invalid(raw string) string
}

// Prompter is the interactive side a field asks through. The dialog
// package implements it.
type Prompter interface {
	// Text reads a line, re-asking until v accepts it.
	Text(label, def string, v validation.Validator) (any, error)
	// Choose asks for one of options and returns its index, -1 for none.
	Choose(label string, options []string, def int) (int, error)
	// SelectRecord picks a record of collection, returning its id or nil.
	SelectRecord(label, collection string, def any) (any, error)
	// EditList runs the list editor over values.
	EditList(label string, f *List, values []any) ([]any, error)
	// EditStruct runs the struct editor over values.
	EditStruct(label string, f *Struct, values map[string]any) (map[string]any, error)
}

// Field is one editable attribute of a record
type Field interface {
	Name() string
	Label() string
	Kind() Kind
	// Required reports whether the empty value is rejected.
	Required() bool
	Format(r Resolver, v any) string
	Validate(v any) error
	Empty() any
	Ask(p Prompter, def any) (any, error)

	sealed()
}

// Option configures a field at construction
type Option func(*base)

// WithLabel overrides the default label derived from the name
func WithLabel(label string) Option {
	return func(b *base) { b.label = label }
}

// Required rejects empty values
func Required() Option {
	return func(b *base) { b.required = true }
}

type base struct {
	name     string
	label    string
	required bool
}

func newBase(name string, opts []Option) base {
	b := base{name: name}
	for _, opt := range opts {
		opt(&b)
	}
	if b.label == "" {
		b.label = DefaultLabel(name)
	}
	return b
}

func (b base) Name() string   { return b.name }
func (b base) Label() string  { return b.label }
func (b base) Required() bool { return b.required }
func (base) sealed()          {}

func (b base) checkEmpty(v any) (empty bool, err error) {
	if !validation.IsEmpty(v) {
		return false, nil
	}
	if b.required {
		return true, validation.Invalid("%s must not be empty", b.label)
	}
	return true, nil
}

// DefaultLabel turns a field name into a label: "origlanguage" becomes
// "Origlanguage", "first_name" becomes "First name".
func DefaultLabel(name string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	if len(words) == 0 {
		return ""
	}
	words[0] = cases.Title(language.Und).String(words[0])
	return strings.Join(words, " ")
}

// ToString renders a stored value as plain text: booleans as true/false,
// nil as "", lists one element per line and maps as sorted "key: value"
// lines.
func ToString(v any) string {
	switch t := store.Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = k + ": " + ToString(t[k])
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(t)
	}
}
