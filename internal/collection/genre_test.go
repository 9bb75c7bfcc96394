package collection

import (
	"sort"
	"testing"

	"github.com/hyperjump/readora/internal/models"
)

func TestGroupByGenre_FirstOccurrenceOrder(t *testing.T) {
	books := []models.BookRecord{
		{ID: "1", Genre: "Poetry"},
		{ID: "2"},
		{ID: "3", Genre: "Drama"},
		{ID: "4", Genre: "Poetry"},
		{ID: "5", Genre: models.UncategorizedGenre},
	}
	groups := GroupByGenre(books)
	if len(groups) != 3 {
		t.Fatalf("got %d groups", len(groups))
	}
	wantOrder := []string{"Poetry", models.UncategorizedGenre, "Drama"}
	for i, g := range groups {
		if g.Genre != wantOrder[i] {
			t.Errorf("group %d = %q, want %q", i, g.Genre, wantOrder[i])
		}
	}
	if !equalIDs(ids(groups[0].Books), []models.BookID{"1", "4"}) {
		t.Errorf("Poetry = %v", ids(groups[0].Books))
	}
	if !equalIDs(ids(groups[1].Books), []models.BookID{"2", "5"}) {
		t.Errorf("Uncategorized = %v", ids(groups[1].Books))
	}
}

func TestAvailableGenres_Sorted(t *testing.T) {
	groups := GroupByGenre(mixedLibrary())
	got := AvailableGenres(groups)
	want := []string{"Drama", "Romance", "Science Fiction", models.UncategorizedGenre, "Work"}
	if len(got) != len(want) {
		t.Fatalf("AvailableGenres() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AvailableGenres()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFlatten_RoundTripKeepsMultiset(t *testing.T) {
	books := mixedLibrary()
	flat := Flatten(GroupByGenre(books))
	if len(flat) != len(books) {
		t.Fatalf("flatten has %d records, want %d", len(flat), len(books))
	}
	in, out := ids(books), ids(flat)
	sort.Slice(in, func(i, j int) bool { return in[i] < in[j] })
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if !equalIDs(in, out) {
		t.Errorf("multiset changed: %v vs %v", in, out)
	}
}

func TestFlatten_KeySortedThenInsertion(t *testing.T) {
	books := []models.BookRecord{
		{ID: "1", Genre: "b"},
		{ID: "2", Genre: "a"},
		{ID: "3", Genre: "b"},
	}
	got := Flatten(GroupByGenre(books))
	if !equalIDs(ids(got), []models.BookID{"2", "1", "3"}) {
		t.Errorf("Flatten() = %v", ids(got))
	}
}

func TestGroupByGenre_Empty(t *testing.T) {
	if groups := GroupByGenre(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groups)
	}
	if genres := AvailableGenres(nil); len(genres) != 0 {
		t.Errorf("expected no genres, got %v", genres)
	}
}
