package models

import (
	"errors"
	"testing"
)

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in      string
		want    SortKey
		wantErr bool
	}{
		{"", SortRecent, false},
		{"recent", SortRecent, false},
		{"Title", SortTitle, false},
		{" author ", SortAuthor, false},
		{"size", SortSize, false},
		{"rating", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSortKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
			var vErr *ValidationError
			if tt.wantErr && !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestParseView(t *testing.T) {
	if v, err := ParseView(""); err != nil || v != ViewAll {
		t.Errorf("empty view: %q %v", v, err)
	}
	if v, err := ParseView("Personal"); err != nil || v != ViewPersonal {
		t.Errorf("personal view: %q %v", v, err)
	}
	if _, err := ParseView("admin"); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestQueryParams_Normalize(t *testing.T) {
	p := QueryParams{}.Normalize()
	if p.Genre != AllGenres || p.Sort != SortRecent {
		t.Errorf("Normalize() = %+v", p)
	}
	p = QueryParams{Genre: "Drama", Sort: SortSize}.Normalize()
	if p.Genre != "Drama" || p.Sort != SortSize {
		t.Errorf("Normalize() changed explicit values: %+v", p)
	}
}
