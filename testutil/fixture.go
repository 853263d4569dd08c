// Package testutil loads a small, fully cross-referenced library into a
// temporary store for tests.
package testutil

import (
	_ "embed"
	"encoding/json"
	"testing"

	"github.com/arthur-debert/bookshelf/bookshelf/library"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

//go:embed testdata/library.json
var libraryJSON []byte

// Library gives typed access to the loaded fixture
type Library struct {
	Env schema.Env
	Dir string

	// fixture records by table and key, as loaded
	ByKey map[string]map[string]store.Record
}

// Tables lists the fixture tables in load order
var Tables = []string{library.Persons, library.Publishers, library.Books}

// LoadLibrary opens a store in a temp dir, fills it with the fixture and
// returns it wired to the library schemas.
func LoadLibrary(t *testing.T) *Library {
	t.Helper()

	dir := t.TempDir()
	db, err := store.Open(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var fixture map[string][]store.Record
	if err := json.Unmarshal(libraryJSON, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	lib := &Library{
		Env:   schema.Env{DB: db, Registry: library.NewRegistry()},
		Dir:   dir,
		ByKey: make(map[string]map[string]store.Record),
	}
	for _, table := range Tables {
		coll, err := lib.Env.Collection(table)
		if err != nil {
			t.Fatalf("failed to open %s: %v", table, err)
		}
		lib.ByKey[table] = make(map[string]store.Record)
		for _, r := range fixture[table] {
			stored, err := coll.Insert(r)
			if err != nil {
				t.Fatalf("failed to load %s %s: %v", table, r.Key(), err)
			}
			lib.ByKey[table][stored.Key()] = stored
		}
	}
	return lib
}

// Collection opens a table or fails the test
func (l *Library) Collection(t *testing.T, table string) *store.Collection {
	t.Helper()
	coll, err := l.Env.Collection(table)
	if err != nil {
		t.Fatalf("failed to open %s: %v", table, err)
	}
	return coll
}

// ID returns the id of a fixture record or fails the test
func (l *Library) ID(t *testing.T, table, key string) int64 {
	t.Helper()
	r, ok := l.ByKey[table][key]
	if !ok {
		t.Fatalf("no fixture record %s in %s", key, table)
	}
	return r.ID()
}

// Current reloads a record from the store by key
func (l *Library) Current(t *testing.T, table, key string) store.Record {
	t.Helper()
	r, err := l.Collection(t, table).FindByKey(key)
	if err != nil {
		t.Fatalf("failed to load %s %s: %v", table, key, err)
	}
	return r
}

// Count returns the number of records currently in a table
func (l *Library) Count(t *testing.T, table string) int {
	t.Helper()
	return len(l.Collection(t, table).All())
}
