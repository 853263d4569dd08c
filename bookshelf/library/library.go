// Package library defines the record types of a personal library:
// persons, publishers and books.
package library

import (
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/validation"
)

// Table names
const (
	Persons    = "persons"
	Publishers = "publishers"
	Books      = "books"
)

// Register adds the library schemas to reg
func Register(reg *schema.Registry) {
	reg.Register(Persons, buildPersons)
	reg.Register(Publishers, buildPublishers)
	reg.Register(Books, buildBooks)
}

// NewRegistry returns a registry holding the library schemas
func NewRegistry() *schema.Registry {
	reg := schema.NewRegistry()
	Register(reg)
	return reg
}

func buildPersons(s *schema.Schema) {
	s.SetTitle("Person")
	s.AddField(field.NewInput("firstname", nil, field.WithLabel("First name")))
	s.AddField(field.NewInput("lastname", nil, field.WithLabel("Last name")))
	s.AddField(field.NewInput("nationality", nil))

	s.AddQueryField("name", &schema.Virtual{Fields: []string{"firstname", "lastname"}, Separator: " ", Title: "Name"})
	s.AddQueryField("sortname", &schema.Virtual{Fields: []string{"lastname", "firstname"}, Separator: ", ", Title: "Name"})
	bookRefs := schema.Reverse(Books, "author", "editor", "translator")
	s.AddQueryField("books", &schema.References{Fetch: bookRefs, Reduce: schema.Count, Title: "Books"})

	s.AddFieldFilter("firstname", schema.Text...)
	s.AddFieldFilter("lastname", schema.Text...)
	s.AddFieldFilter("nationality", schema.Text...)
	s.AddFieldFilter("name", schema.Text...)
	s.AddFilter("books", schema.ReduceFilter{Fetch: bookRefs, Reduce: schema.Count}, schema.Comparisons...)

	s.SetKeyFields("firstname", "lastname")
	s.SetDisplayField("name")
	s.SetListFields("key", "sortname", "nationality", "books")
	s.SetDefaultOrder("sortname")
	s.SetLabels(personLabels)
	s.SetDefaults(ParsePersonName)
}

func personLabels(r store.Record) []string {
	first := strings.TrimSpace(field.ToString(r["firstname"]))
	last := strings.TrimSpace(field.ToString(r["lastname"]))
	switch {
	case first == "":
		return []string{last}
	case last == "":
		return []string{first}
	}
	return []string{first + " " + last, last + ", " + first}
}

// ParsePersonName splits "Last, First" or "First Last" into name fields.
// A single word is taken as the last name.
func ParsePersonName(input string) store.Record {
	input = strings.Join(strings.Fields(input), " ")
	if input == "" {
		return store.Record{}
	}
	if last, first, ok := strings.Cut(input, ","); ok {
		return nameRecord(strings.TrimSpace(first), strings.TrimSpace(last))
	}
	i := strings.LastIndexByte(input, ' ')
	if i < 0 {
		return nameRecord("", input)
	}
	return nameRecord(input[:i], input[i+1:])
}

func nameRecord(first, last string) store.Record {
	r := store.Record{}
	if first != "" {
		r["firstname"] = first
	}
	if last != "" {
		r["lastname"] = last
	}
	return r
}

func buildPublishers(s *schema.Schema) {
	s.SetTitle("Publisher")
	s.AddField(field.NewInput("name", nil, field.Required()))
	s.AddField(field.NewInput("city", validation.Pattern(`^\p{L}[\p{L} .'-]*$`, "is not a city name")))

	bookRefs := schema.Reverse(Books, "publisher")
	s.AddQueryField("books", &schema.References{Fetch: bookRefs, Reduce: schema.Count, Title: "Books"})

	s.AddFieldFilter("name", schema.Text...)
	s.AddFieldFilter("city", schema.Text...)
	s.AddFilter("books", schema.ReduceFilter{Fetch: bookRefs, Reduce: schema.Count}, schema.Comparisons...)

	s.SetKeyFields("name")
	s.SetDisplayField("name")
	s.SetListFields("key", "name", "city", "books")
	s.SetDefaultOrder("name")
}
