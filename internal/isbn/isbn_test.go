package isbn

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) (string, error)
		input   string
		want    string
		wantErr error
	}{
		{"isbn10 english", Format10, "0306406152", "0-306-40615-2", nil},
		{"isbn10 oxford", Format10, "0-19-853453-1", "0-19-853453-1", nil},
		{"isbn10 with X", Format10, "0-8044-2957-x", "0-8044-2957-X", nil},
		{"isbn10 rejects isbn13", Format10, "9780306406157", "", ErrLength},
		{"isbn10 bad checksum", Format10, "0306406153", "", ErrChecksum},
		{"isbn13 german", Format13, "9783161484100", "978-3-16-148410-0", nil},
		{"isbn13 english", Format13, "978-0-306-40615-7", "978-0-306-40615-7", nil},
		{"isbn13 group 1", Format13, "9781402894626", "978-1-4028-9462-6", nil},
		{"isbn13 rejects isbn10", Format13, "0306406152", "", ErrLength},
		{"isbn13 bad checksum", Format13, "9783161484101", "", ErrChecksum},
		{"either accepts 10", Format, "0306406152", "0-306-40615-2", nil},
		{"either accepts 13", Format, "9783161484100", "978-3-16-148410-0", nil},
		{"either rejects 11 digits", Format, "03064061521", "", ErrLength},
		{"rejects letters", Format, "03064O6152", "", ErrCharacters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (%q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTo13(t *testing.T) {
	got, err := To13("0-306-40615-2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "978-0-306-40615-7" {
		t.Errorf("got %q", got)
	}
}
