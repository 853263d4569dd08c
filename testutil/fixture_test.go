package testutil

import (
	"testing"

	"github.com/arthur-debert/bookshelf/bookshelf/library"
)

func TestLoadLibrary(t *testing.T) {
	lib := LoadLibrary(t)

	counts := map[string]int{library.Persons: 6, library.Publishers: 3, library.Books: 7}
	for table, want := range counts {
		if got := lib.Count(t, table); got != want {
			t.Errorf("expected %d %s, got %d", want, table, got)
		}
	}

	if id := lib.ID(t, library.Persons, "ada-lovelace"); id != 1 {
		t.Errorf("fixture ids must be kept, got %d", id)
	}
	papers := lib.Current(t, library.Books, "lovelace-collected-papers-2001")
	if papers["published"] != int64(2001) {
		t.Errorf("numbers must load as int64, got %#v", papers["published"])
	}
}
