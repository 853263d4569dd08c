package library_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/bookshelf/bookshelf/library"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/testutil"
)

func keysOf(rows []store.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Key()
	}
	return out
}

func TestParsePersonName(t *testing.T) {
	tests := []struct {
		input string
		want  store.Record
	}{
		{"Ada Lovelace", store.Record{"firstname": "Ada", "lastname": "Lovelace"}},
		{"Lovelace, Ada", store.Record{"firstname": "Ada", "lastname": "Lovelace"}},
		{"Augusta Ada  King", store.Record{"firstname": "Augusta Ada", "lastname": "King"}},
		{"Homer", store.Record{"lastname": "Homer"}},
		{"  ", store.Record{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, library.ParsePersonName(tt.input)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPublishedFilter(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	listing, err := schema.List(lib.Env, library.Books, schema.ListOptions{
		Fields:  []string{"key", "published"},
		OrderBy: []string{"published"},
		Filters: []string{"published>2000"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"lovelace-collected-papers-2001", "hopper-compilers-2010"}
	if diff := cmp.Diff(want, keysOf(listing.Rows)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	for _, r := range listing.Rows {
		if n, _ := store.AsInt(r["published"]); n <= 2000 {
			t.Errorf("%s published %d", r.Key(), n)
		}
	}
}

func TestBookQueries(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{"translated books", []string{"translator.lastname=Weaver"}, []string{"eco-the-name-of-the-rose-1983"}},
		{"source language", []string{"origlanguage#it,fr"}, []string{"eco-the-name-of-the-rose-1983", "zola-germinal-1885"}},
		{"publisher city", []string{"city=Milan"}, []string{"eco-il-nome-della-rosa-1980"}},
		{"tags", []string{"tags=history"}, []string{"lovelace-collected-papers-2001"}},
		{"series name", []string{"series.name~pion"}, []string{"lovelace-collected-papers-2001"}},
		{"acquired partial date", []string{"acquired>=2015"}, []string{"hopper-compilers-2010"}},
		{"editor", []string{"editor=grace-hopper"}, []string{"lovelace-collected-papers-2001"}},
		{"folded author name", []string{"author.lastname=Zola", "published<1900"}, []string{"zola-germinal-1885"}},
		{"without translator", []string{"translator="}, []string{
			"lovelace-notes-1843", "turing-computing-machinery-and-intelligence-1950", "lovelace-collected-papers-2001",
			"eco-il-nome-della-rosa-1980", "hopper-compilers-2010", "zola-germinal-1885",
		}},
		{"with editor", []string{"editor!="}, []string{"lovelace-collected-papers-2001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := schema.List(lib.Env, library.Books, schema.ListOptions{
				Fields:  []string{"key"},
				OrderBy: []string{"id"},
				Filters: tt.filters,
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, keysOf(listing.Rows)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("default listing", func(t *testing.T) {
		listing, err := schema.List(lib.Env, library.Books, schema.ListOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if len(listing.Rows) != 7 {
			t.Fatalf("expected 7 books, got %d", len(listing.Rows))
		}
		// ordered by author sort name: Eco, Eco, Hopper, Lovelace...
		if listing.Rows[0]["author"] != "Umberto Eco" || listing.Rows[2]["author"] != "Grace Hopper" {
			t.Errorf("unexpected order: %v, %v", listing.Rows[0]["author"], listing.Rows[2]["author"])
		}
		if listing.Rows[0]["publisher"] != "Bompiani" {
			t.Errorf("earlier Eco book must come first, got %v", listing.Rows[0]["publisher"])
		}
	})

	t.Run("source language and series", func(t *testing.T) {
		listing, err := schema.List(lib.Env, library.Books, schema.ListOptions{
			Fields:  []string{"sourcelanguage", "series"},
			OrderBy: []string{"id"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if listing.Rows[3]["sourcelanguage"] != "Italian" || listing.Rows[0]["sourcelanguage"] != "English" {
			t.Errorf("unexpected source languages %v, %v", listing.Rows[3]["sourcelanguage"], listing.Rows[0]["sourcelanguage"])
		}
		if listing.Rows[2]["series"] != "Pioneers #2" {
			t.Errorf("got series %v", listing.Rows[2]["series"])
		}
	})
}

func TestNestedColumns(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	tests := []struct {
		name   string
		fields []string
		want   store.Record
	}{
		{
			"struct and its member",
			[]string{"series", "series.name"},
			store.Record{"series": "Pioneers #2", "series.name": "Pioneers"},
		},
		{
			"reference and a joined field",
			[]string{"author", "author.name"},
			store.Record{"author": "Ada Lovelace; Alan Turing", "author.name": "Ada Lovelace; Alan Turing"},
		},
		{
			"joined field before its reference",
			[]string{"editor.lastname", "editor"},
			store.Record{"editor.lastname": "Hopper", "editor": "Grace Hopper"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing, err := schema.List(lib.Env, library.Books, schema.ListOptions{
				Fields:  tt.fields,
				Filters: []string{"key=lovelace-collected-papers-2001"},
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(listing.Rows) != 1 {
				t.Fatalf("expected one row, got %d", len(listing.Rows))
			}
			got := store.Record{}
			for _, name := range tt.fields {
				got[name] = listing.Rows[0][name]
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPersonQueries(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	listing, err := schema.List(lib.Env, library.Persons, schema.ListOptions{Filters: []string{"books>1"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"umberto-eco", "grace-hopper", "ada-lovelace", "alan-turing"}
	if diff := cmp.Diff(want, keysOf(listing.Rows)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if listing.Columns[1].Label != "Name" || listing.Rows[0]["sortname"] != "Eco, Umberto" {
		t.Errorf("unexpected sort name column %+v %v", listing.Columns[1], listing.Rows[0]["sortname"])
	}

	persons, _ := lib.Env.Schema(library.Persons)
	labels, err := persons.Labels(lib.Env)
	if err != nil {
		t.Fatal(err)
	}
	if labels["Ada Lovelace"] != 1 || labels["Lovelace, Ada"] != 1 {
		t.Errorf("both name orders must be labels: %v", labels)
	}
}

func TestBookKey(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	books, err := lib.Env.Schema(library.Books)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		record store.Record
		want   string
	}{
		{"first author", store.Record{"title": "On Numbers", "author": []any{int64(2), int64(1)}, "published": int64(1936)}, "turing-on-numbers-1936"},
		{"editor when no author", store.Record{"title": "Anthology", "editor": []any{int64(3)}, "publisher": int64(1)}, "hopper-anthology"},
		{"publisher last", store.Record{"title": "Catalogue", "publisher": int64(3), "published": int64(1999)}, "bompiani-catalogue-1999"},
		{"title only", store.Record{"title": "Über Alles"}, "uber-alles"},
		{"folded author", store.Record{"title": "Nana", "author": []any{int64(6)}}, "zola-nana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := books.CreateKey(lib.Env, tt.record)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	persons, _ := lib.Env.Schema(library.Persons)
	key, _ := persons.CreateKey(lib.Env, store.Record{"firstname": "Ada", "lastname": "Lovelace"})
	if key != "ada-lovelace" {
		t.Errorf("got person key %q", key)
	}
}

func TestDeleteReferencedPerson(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	refs, err := schema.Referrers(lib.Env, library.Persons, []int64{lib.ID(t, library.Persons, "grace-hopper")})
	if err != nil {
		t.Fatal(err)
	}
	fields := map[string]int{}
	for _, ref := range refs {
		fields[ref.Reference.Field] = len(ref.Records)
	}
	if diff := cmp.Diff(map[string]int{"author": 1, "editor": 1}, fields); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = schema.List(lib.Env, "magazines", schema.ListOptions{})
	if !errors.Is(err, schema.ErrUnknownTable) {
		t.Errorf("expected ErrUnknownTable, got %v", err)
	}
}

func TestPublisherCity(t *testing.T) {
	s, err := library.NewRegistry().Get(library.Publishers)
	if err != nil {
		t.Fatal(err)
	}
	city, ok := s.Field("city")
	if !ok {
		t.Fatal("publishers must have a city field")
	}
	for _, valid := range []string{"Milan", "New York", "Saint-Étienne", "St. Gallen", ""} {
		if err := city.Validate(valid); err != nil {
			t.Errorf("%q should be a valid city: %v", valid, err)
		}
	}
	for _, invalid := range []string{"10115", "-Berlin"} {
		if err := city.Validate(invalid); err == nil {
			t.Errorf("%q should be rejected", invalid)
		}
	}
}
