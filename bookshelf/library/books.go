package library

import (
	"errors"
	"fmt"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/keys"
	"github.com/arthur-debert/bookshelf/internal/validation"
)

// Languages offered by the language fields of a book
var Languages = []field.Choice{
	{Value: "en", Label: "English"},
	{Value: "de", Label: "German"},
	{Value: "fr", Label: "French"},
	{Value: "es", Label: "Spanish"},
	{Value: "it", Label: "Italian"},
	{Value: "nl", Label: "Dutch"},
	{Value: "pt", Label: "Portuguese"},
	{Value: "ru", Label: "Russian"},
	{Value: "ja", Label: "Japanese"},
	{Value: "la", Label: "Latin"},
	{Value: "el", Label: "Greek"},
}

func persons(name, label string) *field.List {
	return field.NewList(name, field.NewReference(name, Persons, field.WithLabel(label)), true, field.WithLabel(label))
}

func buildBooks(s *schema.Schema) {
	s.SetTitle("Book")
	s.AddField(field.NewInput("title", nil, field.Required()))
	s.AddField(field.NewInput("subtitle", nil))
	s.AddField(persons("author", "Author"))
	s.AddField(persons("editor", "Editor"))
	s.AddField(persons("translator", "Translator"))
	s.AddField(field.NewReference("publisher", Publishers))
	s.AddField(field.NewInput("published", validation.Integer().Between(0, 9999)))
	s.AddField(field.NewInput("acquired", validation.LooseDate()))
	s.AddField(field.NewSelect("language", Languages))
	s.AddField(field.NewSelect("origlanguage", Languages, field.WithLabel("Original language")))
	s.AddField(field.NewInput("isbn", validation.Isbn(), field.WithLabel("ISBN")))
	s.AddField(field.NewInput("pages", validation.Integer().AtLeast(1)))
	s.AddField(field.NewStruct("series", []field.Field{
		field.NewInput("name", nil),
		field.NewInput("volume", validation.Integer().AtLeast(0)),
	}, formatSeries))
	s.AddField(field.NewList("tags", field.NewInput("tag", validation.NotEmpty()), false))

	s.AddAlternatives("sourcelanguage", "Source language", "origlanguage", "language")
	s.AddQueryField("series.name", &schema.Real{Path: "series.name", Title: "Series | Name"})

	s.AddFieldFilter("title", schema.Text...)
	s.AddFieldFilter("subtitle", schema.Text...)
	s.AddFieldFilter("published", schema.Comparisons...)
	s.AddFieldFilter("acquired", schema.OpEqual, schema.OpNotEqual, schema.OpGreater, schema.OpLess,
		schema.OpGreaterEq, schema.OpLessEq, schema.OpLike)
	s.AddFieldFilter("pages", schema.Comparisons...)
	s.AddFieldFilter("language", schema.OpEqual, schema.OpNotEqual, schema.OpIn)
	s.AddFieldFilter("origlanguage", schema.OpEqual, schema.OpNotEqual, schema.OpIn)
	s.AddFieldFilter("isbn", schema.OpEqual, schema.OpLike)
	s.AddFieldFilter("tags", schema.Text...)
	s.AddFieldFilter("series.name", schema.Text...)
	s.AddReferenceFilter("author")
	s.AddReferenceFilter("editor")
	s.AddReferenceFilter("translator")
	s.AddReferenceFilter("publisher")
	s.AddFilter("city", schema.JoinFilter{Fetch: schema.Forward("publisher", Publishers), Field: "city"}, schema.Text...)

	s.SetKeyFunc(bookKey)
	s.SetDisplayField("title")
	s.SetListFields("key", "title", "author", "published", "publisher")
	s.SetDefaultOrder("author.sortname", "published", "title")
}

func formatSeries(_ field.Resolver, v map[string]any) string {
	name := field.ToString(v["name"])
	volume := field.ToString(v["volume"])
	switch {
	case volume == "":
		return name
	case name == "":
		return "#" + volume
	}
	return name + " #" + volume
}

// bookKey uses the last name of the first author, else of the first
// editor, else the publisher name, followed by title and year.
func bookKey(env schema.Env, r store.Record) (string, error) {
	prefix, err := bookKeyPrefix(env, r)
	if err != nil {
		return "", err
	}
	return keys.Create(prefix, field.ToString(r["title"]), field.ToString(r["published"])), nil
}

func bookKeyPrefix(env schema.Env, r store.Record) (string, error) {
	for _, name := range []string{"author", "editor"} {
		ids := store.AsList(r[name])
		if len(ids) == 0 {
			continue
		}
		id, ok := store.AsInt(ids[0])
		if !ok {
			continue
		}
		person, err := lookup(env, Persons, id)
		if err != nil {
			return "", err
		}
		if person != nil {
			if last := field.ToString(person["lastname"]); last != "" {
				return last, nil
			}
			return field.ToString(person["firstname"]), nil
		}
	}
	if id, ok := store.AsInt(r["publisher"]); ok {
		publisher, err := lookup(env, Publishers, id)
		if err != nil {
			return "", err
		}
		if publisher != nil {
			return field.ToString(publisher["name"]), nil
		}
	}
	return "", nil
}

func lookup(env schema.Env, table string, id int64) (store.Record, error) {
	coll, err := env.Collection(table)
	if err != nil {
		return nil, err
	}
	r, err := coll.FindByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("book key: %w", err)
	}
	return r, nil
}
