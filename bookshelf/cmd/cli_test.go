package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/bookshelf/bookshelf/dialog"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/testutil"
)

// run executes the CLI against dir with input as stdin
func run(t *testing.T, dir, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	out := &bytes.Buffer{}
	cli := NewCLI(strings.NewReader(input), out, io.Discard)
	cli.rootCmd.SetArgs(append([]string{"--data", dir, "--no-color"}, args...))
	err := cli.Execute()
	return out.String(), err
}

// reload opens a fresh store on dir, bypassing any cached collection
func reload(t *testing.T, dir, table string) *store.Collection {
	t.Helper()
	db, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	coll, err := db.Collection(table)
	if err != nil {
		t.Fatal(err)
	}
	return coll
}

func TestListCommand(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	t.Run("default fields and order", func(t *testing.T) {
		out, err := run(t, lib.Dir, "", "ls", "books")
		if err != nil {
			t.Fatalf("ls failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 8 {
			t.Fatalf("expected header and 7 rows, got:\n%s", out)
		}
		if !strings.HasPrefix(lines[0], "KEY") || !strings.Contains(lines[0], "TITLE") {
			t.Errorf("unexpected header %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "eco-il-nome-della-rosa-1980") {
			t.Errorf("expected Eco's earliest book first, got %q", lines[1])
		}
		if !strings.HasPrefix(lines[7], "zola-germinal-1885") {
			t.Errorf("expected Zola last, got %q", lines[7])
		}
	})

	t.Run("filters and json output", func(t *testing.T) {
		out, err := run(t, lib.Dir, "", "ls", "books", "--filter", "published<1900", "--fields", "key,published", "-f", "json")
		if err != nil {
			t.Fatalf("ls failed: %v", err)
		}
		var rows []map[string]any
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		want := []map[string]any{
			{"key": "lovelace-notes-1843", "published": float64(1843)},
			{"key": "zola-germinal-1885", "published": float64(1885)},
		}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("group by", func(t *testing.T) {
		out, err := run(t, lib.Dir, "", "ls", "books", "--groupby", "publisher", "--fields", "key")
		if err != nil {
			t.Fatalf("ls failed: %v", err)
		}
		for _, header := range []string{"Publisher: Bompiani", "Publisher: Penguin", "Publisher: Springer"} {
			if !strings.Contains(out, header) {
				t.Errorf("missing group %q in:\n%s", header, out)
			}
		}
		if strings.Index(out, "Publisher: Bompiani") > strings.Index(out, "Publisher: Penguin") {
			t.Errorf("groups should be ordered by publisher:\n%s", out)
		}
	})

	t.Run("invalid filters", func(t *testing.T) {
		_, err := run(t, lib.Dir, "", "ls", "books", "--filter", "nonsense", "--filter", "weight>3")
		var cliErr *CLIError
		if !errors.As(err, &cliErr) {
			t.Fatalf("expected CLIError, got %v", err)
		}
		var filterErr *schema.InvalidFilterError
		if !errors.As(err, &filterErr) {
			t.Fatalf("expected the filter error to be wrapped, got %v", err)
		}
		if !strings.Contains(err.Error(), "bookshelf desc books") || !strings.Contains(err.Error(), "nonsense, weight>3") {
			t.Errorf("expected a desc suggestion, got %v", err)
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := run(t, lib.Dir, "", "ls", "magazines")
		if !errors.Is(err, schema.ErrUnknownTable) {
			t.Errorf("expected ErrUnknownTable, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, lib.Dir, "", "ls", "books", "-f", "xml")
		if err == nil || !strings.Contains(err.Error(), "unknown output format") {
			t.Errorf("expected a format error, got %v", err)
		}
	})
}

func TestTableAlignment(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	t.Run("wide and accented cells", func(t *testing.T) {
		color.NoColor = true
		out := &bytes.Buffer{}
		tw := newTable(out)
		tw.Header("KEY", "NAME")
		tw.Row("emile-zola", "Émile Zola")
		tw.Row("x", "日本", "")
		if err := tw.Flush(); err != nil {
			t.Fatal(err)
		}
		want := "KEY         NAME\nemile-zola  Émile Zola\nx           日本\n"
		if diff := cmp.Diff(want, out.String()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("styled headers keep the columns", func(t *testing.T) {
		color.NoColor = false
		out := &bytes.Buffer{}
		tw := newTable(out)
		tw.Header("A", "B")
		tw.Row("long-key", "v")
		if err := tw.Flush(); err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
		if len(lines) != 2 || lines[0] == "A         B" {
			t.Fatalf("expected a styled header, got %q", out.String())
		}
		for _, line := range lines {
			if w := lipgloss.Width(line); w != 11 {
				t.Errorf("line %q is %d cells wide", line, w)
			}
		}
	})
}

func TestShowCommand(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	out, err := run(t, lib.Dir, "", "show", "persons", "umberto-eco")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"Last name", "Eco", "Referenced by:", "books.author  eco-the-name-of-the-rose-1983  The Name of the Rose"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	out, err = run(t, lib.Dir, "", "show", "books", "3", "-f", "yaml")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var detail detailOutput
	if err := yaml.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if detail.Key != "lovelace-collected-papers-2001" || detail.Fields["author"] != "Ada Lovelace\nAlan Turing" {
		t.Errorf("unexpected detail %+v", detail)
	}

	if _, err := run(t, lib.Dir, "", "show", "books", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDescribeCommand(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	out, err := run(t, lib.Dir, "", "desc")
	if err != nil {
		t.Fatal(err)
	}
	if out != "persons\npublishers\nbooks\n" {
		t.Errorf("unexpected table list %q", out)
	}

	out, err = run(t, lib.Dir, "", "desc", "books")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"books (Book)", "Fields:", "Query fields:", "Filters:", "author ->> persons", "publisher -> publishers"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInteractiveCommands(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	out, err := run(t, lib.Dir, "Mary\nShelley\n\n\nwq\n", "add", "persons")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "saved Person mary-shelley") {
		t.Errorf("expected a save message in:\n%s", out)
	}
	mary, err := reload(t, lib.Dir, "persons").FindByKey("mary-shelley")
	if err != nil {
		t.Fatalf("created person not stored: %v", err)
	}
	if mary.ID() != 7 {
		t.Errorf("expected id 7, got %d", mary.ID())
	}

	if _, err := run(t, lib.Dir, "3\nEnglish\nwq\n", "edit", "persons", "alan-turing"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	alan, _ := reload(t, lib.Dir, "persons").FindByKey("alan-turing")
	if alan["nationality"] != "English" {
		t.Errorf("expected the edit to be saved, got %v", alan)
	}

	_, err = run(t, lib.Dir, "3\n", "edit", "persons", "alan-turing")
	if !errors.Is(err, dialog.ErrInputClosed) {
		t.Errorf("expected ErrInputClosed, got %v", err)
	}
}

func TestRemoveCommand(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	_, err := run(t, lib.Dir, "", "rm", "persons", "william-weaver", "--yes")
	if !errors.Is(err, dialog.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	if !strings.Contains(err.Error(), "--derefer-records") {
		t.Errorf("expected policy suggestions, got %v", err)
	}

	if _, err := run(t, lib.Dir, "y\n", "rm", "persons", "william-weaver", "--derefer-records"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if _, err := reload(t, lib.Dir, "persons").FindByKey("william-weaver"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected the person to be gone, got %v", err)
	}
	rose, _ := reload(t, lib.Dir, "books").FindByKey("eco-the-name-of-the-rose-1983")
	if diff := cmp.Diff([]any{}, rose["translator"]); diff != "" {
		t.Errorf("translator mismatch (-want +got):\n%s", diff)
	}

	out, err := run(t, lib.Dir, "", "rm", "books", "--filter", "published<1900", "--yes", "--no-summary")
	if err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if !strings.Contains(out, "deleted 2 books") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if n := len(reload(t, lib.Dir, "books").All()); n != 5 {
		t.Errorf("expected 5 books left, got %d", n)
	}

	if _, err := run(t, lib.Dir, "", "rm", "persons", "ada-lovelace", "--delete-records", "--derefer-records"); err == nil {
		t.Error("expected the policy flags to be mutually exclusive")
	}
}

func TestExportCommand(t *testing.T) {
	lib := testutil.LoadLibrary(t)
	path := filepath.Join(t.TempDir(), "library.sqlite")

	out, err := run(t, lib.Dir, "", "export", path, "--table", "persons,books")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	want := "persons      6 rows\nbooks        7 rows\n"
	if out != want {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the database file: %v", err)
	}
}

func TestConfiguration(t *testing.T) {
	lib := testutil.LoadLibrary(t)

	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "bookshelf.yaml")
		content := "format: json\ndata: " + lib.Dir + "\n"
		if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("BOOKSHELF_CONFIG", cfg)
		t.Setenv("XDG_CACHE_HOME", t.TempDir())

		out := &bytes.Buffer{}
		cli := NewCLI(strings.NewReader(""), out, io.Discard)
		cli.rootCmd.SetArgs([]string{"ls", "publishers", "--fields", "key"})
		if err := cli.Execute(); err != nil {
			t.Fatal(err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
			t.Fatalf("expected JSON from the config file format: %v\n%s", err, out)
		}
		if len(rows) != 3 || rows[0]["key"] != "bompiani" {
			t.Errorf("unexpected rows %v", rows)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("BOOKSHELF_FORMAT", "yaml")
		out, err := run(t, lib.Dir, "", "desc")
		if err != nil {
			t.Fatal(err)
		}
		if out != "- persons\n- publishers\n- books\n" {
			t.Errorf("expected YAML from the environment, got %q", out)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Setenv("BOOKSHELF_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := run(t, lib.Dir, "", "desc")
		var cliErr *CLIError
		if !errors.As(err, &cliErr) || !strings.Contains(cliErr.Cause, "configuration error") {
			t.Errorf("expected a configuration error, got %v", err)
		}
	})
}

func TestCLIError(t *testing.T) {
	err := &CLIError{
		Operation:   "list books",
		Cause:       "invalid filter",
		Details:     "nonsense",
		Suggestions: []string{"Run 'bookshelf desc books'"},
	}
	want := "failed to list books: invalid filter (nonsense)\n\nSuggestions:\n  1. Run 'bookshelf desc books'"
	if err.Error() != want {
		t.Errorf("got %q", err.Error())
	}

	wrapped := WrapError("delete from persons", dialog.ErrReferenced)
	if !errors.Is(wrapped, dialog.ErrReferenced) {
		t.Error("wrapped errors must keep their chain")
	}
	if WrapError("x", nil) != nil {
		t.Error("nil stays nil")
	}
}
