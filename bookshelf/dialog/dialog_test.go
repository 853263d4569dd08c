package dialog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/bookshelf/bookshelf/library"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/testutil"
)

func emptyEnv(t *testing.T) schema.Env {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return schema.Env{DB: db, Registry: library.NewRegistry()}
}

func scripted(env schema.Env, lines ...string) (*Context, *bytes.Buffer) {
	out := &bytes.Buffer{}
	input := strings.Join(lines, "\n")
	if len(lines) > 0 {
		input += "\n"
	}
	return NewContext(strings.NewReader(input), out, env, WithPlainOutput(true)), out
}

func TestCreatePerson(t *testing.T) {
	env := emptyEnv(t)
	c, _ := scripted(env, "Ada", "Lovelace", "", "", "wq")

	rec, err := Create(c, library.Persons, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, int64(1), rec.ID())
	assert.Equal(t, "ada-lovelace", rec.Key())
	assert.Equal(t, "Ada", rec["firstname"])
	assert.Equal(t, "Lovelace", rec["lastname"])
	assert.Nil(t, rec["nationality"])
	assert.Equal(t, 0, c.Depth())

	coll, err := env.Collection(library.Persons)
	require.NoError(t, err)
	stored, err := coll.FindByKey("ada-lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", stored["lastname"])
}

func TestCreateDiscarded(t *testing.T) {
	env := emptyEnv(t)
	c, _ := scripted(env, "Ada", "Lovelace", "", "", "q", "d")

	rec, err := Create(c, library.Persons, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	coll, _ := env.Collection(library.Persons)
	assert.Empty(t, coll.All())
}

func TestInputClosed(t *testing.T) {
	env := emptyEnv(t)
	c, _ := scripted(env, "Ada")

	_, err := Create(c, library.Persons, nil)
	require.ErrorIs(t, err, ErrInputClosed)
	assert.Equal(t, 0, c.Depth(), "layers are popped on error")
}

func TestEditRecord(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	t.Run("edits and saves a field", func(t *testing.T) {
		c, out := scripted(lib.Env, "3", "English", "w", "q")
		rec, err := Edit(c, library.Persons, "alan-turing")
		require.NoError(t, err)
		assert.Equal(t, "English", rec["nationality"])
		assert.Equal(t, "English", lib.Current(t, library.Persons, "alan-turing")["nationality"])
		assert.Contains(t, out.String(), "Person alan-turing")
		assert.Contains(t, out.String(), "saved Person alan-turing")
	})

	t.Run("changes are lost on q!", func(t *testing.T) {
		c, _ := scripted(lib.Env, "3", "Martian", "q!")
		rec, err := Edit(c, library.Persons, "grace-hopper")
		require.NoError(t, err)
		assert.Equal(t, "American", rec["nationality"])
		assert.Equal(t, "American", lib.Current(t, library.Persons, "grace-hopper")["nationality"])
	})

	t.Run("required fields cannot be cleared", func(t *testing.T) {
		c, out := scripted(lib.Env, "d1", "q")
		rec, err := Edit(c, library.Publishers, "penguin")
		require.NoError(t, err)
		assert.Equal(t, "Penguin", rec["name"])
		assert.Contains(t, out.String(), "Error: Name cannot be cleared")
	})

	t.Run("failed save keeps the editor open", func(t *testing.T) {
		c, out := scripted(lib.Env, "wq", "1", "Faber", "wq")
		rec, err := EditRecord(c, library.Publishers, store.Record{"key": "faber"})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Faber", rec["name"])
		assert.Contains(t, out.String(), "Error: Name")
		assert.Equal(t, 4, lib.Count(t, library.Publishers))
	})

	t.Run("unknown records", func(t *testing.T) {
		c, _ := scripted(lib.Env)
		_, err := Edit(c, library.Persons, "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSelectRecord(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	tests := []struct {
		name  string
		input []string
		def   any
		want  any
	}{
		{"display name", []string{"Ada Lovelace"}, nil, int64(1)},
		{"sort name ignoring case", []string{"turing, alan"}, nil, int64(2)},
		{"key", []string{"grace-hopper"}, nil, int64(3)},
		{"listing first", []string{"Um?", "Umberto Eco"}, nil, int64(4)},
		{"empty keeps default", []string{""}, int64(5), int64(5)},
		{"empty without default", []string{""}, nil, nil},
		{"unknown declined", []string{"Nobody", "n"}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := scripted(lib.Env, tt.input...)
			got, err := c.SelectRecord("Author", library.Persons, tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown text creates a record", func(t *testing.T) {
		c, out := scripted(lib.Env, "Mary Shelley", "", "", "", "", "", "wq")
		got, err := c.SelectRecord("Author", library.Persons, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
		assert.Contains(t, out.String(), `Create new Person "Mary Shelley"?`)

		mary := lib.Current(t, library.Persons, "mary-shelley")
		assert.Equal(t, "Mary", mary["firstname"])
		assert.Equal(t, "Shelley", mary["lastname"])
	})
}

func TestEditBookAuthors(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	// field 3 is the author list
	c, out := scripted(lib.Env, "3", "a", "Grace Hopper", "w", "wq")
	rec, err := Edit(c, library.Books, "hopper-compilers-2010")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, rec["author"])
	assert.Contains(t, out.String(), "Warning: Grace Hopper is already in the list")

	// add Alan Turing and move him first
	c, out = scripted(lib.Env, "3", "a", "Alan Turing", "s2", "1", "w", "wq")
	rec, err = Edit(c, library.Books, "hopper-compilers-2010")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(3)}, rec["author"])
	assert.Contains(t, out.String(), "Book hopper-compilers-2010 > Author")
}

func TestEditListSessions(t *testing.T) {
	const book = "lovelace-collected-papers-2001"
	unsaved := "Unsaved changes: [s]ave, [d]iscard or [c]ancel?"

	tests := []struct {
		name    string
		script  []string
		want    []any
		shown   []string
		prompts bool
	}{
		{
			name:   "d! deletes every element",
			script: []string{"3", "d!", "w", "wq"},
			want:   []any{},
			shown:  []string{"-   1  Ada Lovelace", "-   2  Alan Turing"},
		},
		{
			name:   "r! restores the originals",
			script: []string{"3", "d2", "a", "Grace Hopper", "r!", "w", "wq"},
			want:   []any{int64(1), int64(2)},
			shown:  []string{"-   2  Alan Turing", "+   3  Grace Hopper"},
		},
		{
			name:    "q on a changed list can discard",
			script:  []string{"3", "d1", "q", "d", "wq"},
			want:    []any{int64(1), int64(2)},
			prompts: true,
		},
		{
			name:    "q on a changed list can save",
			script:  []string{"3", "d1", "q", "s", "wq"},
			want:    []any{int64(2)},
			prompts: true,
		},
		{
			name:    "cancelling keeps the list open",
			script:  []string{"3", "d1", "q", "c", "a", "Grace Hopper", "w", "wq"},
			want:    []any{int64(2), int64(3)},
			prompts: true,
		},
		{
			name:   "q on an unchanged list returns at once",
			script: []string{"3", "q", "wq"},
			want:   []any{int64(1), int64(2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := testutil.LoadLibrary(t)
			c, out := scripted(lib.Env, tt.script...)
			_, err := Edit(c, library.Books, book)
			require.NoError(t, err)

			assert.Equal(t, tt.want, lib.Current(t, library.Books, book)["author"])
			text := out.String()
			for _, line := range tt.shown {
				assert.Contains(t, text, line)
			}
			if tt.prompts {
				assert.Contains(t, text, unsaved)
			} else {
				assert.NotContains(t, text, unsaved)
			}
		})
	}
}

func TestAutocompleteCase(t *testing.T) {
	labels := map[string]int64{"Eco": 4, "eco": 9, "ECO": 9, "Zola": 6}

	t.Run("exact label wins", func(t *testing.T) {
		c, _ := scripted(emptyEnv(t), "eco")
		_, id, matched, err := c.Autocomplete("Author", "", labels)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, int64(9), id)
	})

	t.Run("case folding", func(t *testing.T) {
		c, _ := scripted(emptyEnv(t), "zOLA")
		_, id, matched, err := c.Autocomplete("Author", "", labels)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, int64(6), id)
	})

	t.Run("several records up to case asks again", func(t *testing.T) {
		c, out := scripted(emptyEnv(t), "eCo", "Eco")
		_, id, matched, err := c.Autocomplete("Author", "", labels)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, int64(4), id)
		assert.Contains(t, out.String(), `"eCo" matches several entries:`+"\n  ECO\n  Eco\n  eco\n")
	})

	t.Run("labels of one record are not ambiguous", func(t *testing.T) {
		id, ambiguous := resolveLabel(map[string]int64{"Eco": 4, "ECO": 4}, "eco")
		assert.Empty(t, ambiguous)
		assert.Equal(t, int64(4), id)
	})
}

func TestListState(t *testing.T) {
	originals := []any{"a", "b", "c"}
	s := newListState(originals)
	assert.False(t, s.dirty(originals))

	require.NoError(t, s.add("d"))
	var dup errDuplicate
	require.ErrorAs(t, s.add("a"), &dup)

	s.remove(1)
	assert.Equal(t, []any{"a", "c", "d"}, s.result())
	assert.Equal(t, "-", itemMarker(s.items[1]))
	assert.Equal(t, "+", itemMarker(s.items[3]))

	// re-adding a deleted original restores it in place
	require.NoError(t, s.add("b"))
	assert.Equal(t, []any{"a", "b", "c", "d"}, s.result())

	require.NoError(t, s.set(0, "z"))
	assert.Equal(t, "~", itemMarker(s.items[0]))
	require.ErrorAs(t, s.set(1, "z"), &dup)

	s.move(3, 0)
	assert.Equal(t, []any{"d", "z", "b", "c"}, s.result())

	// restoring an addition drops it
	require.NoError(t, s.restore(0))
	require.NoError(t, s.restore(0))
	assert.Equal(t, []any{"a", "b", "c"}, s.result())
	assert.False(t, s.dirty(originals))

	s.clear()
	assert.Equal(t, []any{}, s.result())
	assert.Len(t, s.items, 3)
	assert.True(t, s.dirty(originals))

	s.resetTo(originals)
	assert.Equal(t, originals, s.result())
}

func TestLayers(t *testing.T) {
	c, out := scripted(emptyEnv(t))

	outer := c.AddLayer("Book lovelace-notes-1843", nil)
	inner := c.AddLayer("Author", func() { c.Printf("  1  Ada Lovelace\n") })
	assert.Equal(t, "Book lovelace-notes-1843 > Author", c.Breadcrumb())

	assert.ErrorIs(t, outer.Update(""), ErrLayerOrder)
	assert.ErrorIs(t, outer.Finish(), ErrLayerOrder)

	c.Error("first")
	c.Note("second")
	require.Len(t, c.Pending(), 2)
	assert.NotContains(t, out.String(), "first")

	require.NoError(t, inner.Update(""))
	assert.Empty(t, c.Pending())
	text := out.String()
	assert.Contains(t, text, "Book lovelace-notes-1843 > Author\n")
	assert.Less(t, strings.Index(text, "Ada Lovelace"), strings.Index(text, "Error: first"))
	assert.Less(t, strings.Index(text, "Error: first"), strings.Index(text, "Note: second"))

	require.NoError(t, inner.Finish())
	require.NoError(t, outer.Finish())
	assert.Equal(t, 0, c.Depth())

	out.Reset()
	c.Success("direct")
	assert.Equal(t, "direct\n", out.String(), "messages without layers are written at once")

	assert.Panics(t, func() {
		_ = c.WithLayer("outer", nil, func(*Layer) error {
			c.AddLayer("leaked", nil)
			return nil
		})
	})
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"3", command{"#", 3}},
		{" 0 ", command{"#", 0}},
		{"d12", command{"d#", 12}},
		{"s2", command{"s#", 2}},
		{"r1", command{"r#", 1}},
		{"wq", command{"wq", -1}},
		{"", command{"", -1}},
		{"x3", command{"x3", -1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommand(tt.line), tt.line)
	}
}

func TestDelete(t *testing.T) {
	t.Run("referenced records abort", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, out := scripted(lib.Env)
		n, err := Delete(c, library.Persons, []string{"william-weaver"}, DeleteOptions{AssumeYes: true})
		require.ErrorIs(t, err, ErrReferenced)
		assert.Equal(t, 0, n)
		assert.Contains(t, out.String(), "Warning: books.translator still refers to persons: eco-the-name-of-the-rose-1983")
		assert.Equal(t, 6, lib.Count(t, library.Persons))
	})

	t.Run("dereference strips the ids", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, _ := scripted(lib.Env, "y")
		n, err := Delete(c, library.Persons, []string{"alan-turing"}, DeleteOptions{Policy: PolicyDereference})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []any{int64(1)}, lib.Current(t, library.Books, "lovelace-collected-papers-2001")["author"])
		assert.Equal(t, []any{}, lib.Current(t, library.Books, "turing-computing-machinery-and-intelligence-1950")["author"])
		assert.Equal(t, 5, lib.Count(t, library.Persons))
	})

	t.Run("dereference clears single references", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, _ := scripted(lib.Env)
		n, err := Delete(c, library.Publishers, []string{"bompiani"}, DeleteOptions{Policy: PolicyDereference, AssumeYes: true})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Nil(t, lib.Current(t, library.Books, "eco-il-nome-della-rosa-1980")["publisher"])
	})

	t.Run("cascade deletes the referring records", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, out := scripted(lib.Env)
		n, err := Delete(c, library.Persons, []string{"umberto-eco", "5"}, DeleteOptions{Policy: PolicyCascade, AssumeYes: true})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 5, lib.Count(t, library.Books))
		assert.Equal(t, 4, lib.Count(t, library.Persons))
		assert.Contains(t, out.String(), "also deleting books")
	})

	t.Run("declining deletes nothing", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, _ := scripted(lib.Env, "")
		n, err := Delete(c, library.Books, []string{"zola-germinal-1885"}, DeleteOptions{NoSummary: true})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, 7, lib.Count(t, library.Books))
	})

	t.Run("unresolved inputs fail the whole batch", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, _ := scripted(lib.Env)
		_, err := Delete(c, library.Books, []string{"zola-germinal-1885", "nothing", "99"}, DeleteOptions{AssumeYes: true})
		var unresolved *UnresolvedError
		require.True(t, errors.As(err, &unresolved))
		assert.Equal(t, []string{"nothing", "99"}, unresolved.Inputs)
		assert.Equal(t, 7, lib.Count(t, library.Books))
	})

	t.Run("deleting from the record editor", func(t *testing.T) {
		lib := testutil.LoadLibrary(t)
		c, _ := scripted(lib.Env, "d!", "y")
		rec, err := Edit(c, library.Books, "zola-germinal-1885")
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.Equal(t, 6, lib.Count(t, library.Books))
	})
}

func TestEditSeriesAndLanguage(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	// 13 is the series struct, 9 the language select
	c, out := scripted(lib.Env, "13", "1", "Annals", "2", "3", "w", "9", "1", "wq")

	rec, err := Edit(c, library.Books, "lovelace-notes-1843")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Annals", "volume": int64(3)}, rec["series"])
	assert.Equal(t, "de", rec["language"])
	assert.Contains(t, out.String(), "Book lovelace-notes-1843 > Series")

	c, _ = scripted(lib.Env, "13", "2", "many", "", "q!", "q")
	rec, err = Edit(c, library.Books, "lovelace-notes-1843")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec["series"].(map[string]any)["volume"])
}
