package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/bookshelf/bookshelf/library"
	"github.com/arthur-debert/bookshelf/testutil"
)

func TestCreateTableSQL(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	s, err := lib.Env.Schema(library.Publishers)
	if err != nil {
		t.Fatal(err)
	}

	got := CreateTableSQL(s)
	want := `CREATE TABLE "publishers" ("id" INTEGER PRIMARY KEY, "key" TEXT NOT NULL UNIQUE, "name" TEXT, "city" TEXT, "document" TEXT NOT NULL)`
	if got != want {
		t.Errorf("unexpected DDL:\n got %s\nwant %s", got, want)
	}
	if diff := cmp.Diff([]string{"id", "key", "name", "city", "document"}, Columns(s)); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestToSQLite(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	path := filepath.Join(t.TempDir(), "library.sqlite")
	exp := New(lib.Env, nil)

	counts, err := exp.ToSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	want := []TableCount{{"persons", 6}, {"publishers", 3}, {"books", 7}}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	var author, publisher, doc string
	var subtitle sql.NullString
	row := db.QueryRow(`SELECT "author", "publisher", "subtitle", "document" FROM "books" WHERE "key" = ?`, "lovelace-collected-papers-2001")
	if err := row.Scan(&author, &publisher, &subtitle, &doc); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if author != "Ada Lovelace\nAlan Turing" {
		t.Errorf("author = %q", author)
	}
	if publisher != "Penguin" {
		t.Errorf("publisher = %q", publisher)
	}
	if subtitle.Valid {
		t.Errorf("expected NULL subtitle, got %q", subtitle.String)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	if parsed["title"] != "Collected Papers" {
		t.Errorf("unexpected document %s", doc)
	}

	t.Run("exporting again replaces the tables", func(t *testing.T) {
		if _, err := lib.Collection(t, library.Books).DeleteByID(7); err != nil {
			t.Fatal(err)
		}
		counts, err := exp.ToSQLite(context.Background(), path, library.Books)
		if err != nil {
			t.Fatal(err)
		}
		if len(counts) != 1 || counts[0].Rows != 6 {
			t.Errorf("unexpected counts %v", counts)
		}
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM "books"`).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 6 {
			t.Errorf("expected 6 rows, got %d", n)
		}
	})

	t.Run("unknown tables fail", func(t *testing.T) {
		_, err := exp.ToSQLite(context.Background(), path, "magazines")
		if err == nil || !strings.Contains(err.Error(), "magazines") {
			t.Errorf("expected an unknown table error, got %v", err)
		}
	})
}
