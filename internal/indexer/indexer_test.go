package indexer

import (
	"context"
	"testing"

	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/storage"
)

func testIndexer(t *testing.T) (*Indexer, *storage.SQLiteStorage, *keyword.BookIndex) {
	t.Helper()
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	idx, err := keyword.NewBookIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return NewIndexer(st, idx, keyword.NewSpellChecker(idx)), st, idx
}

func books() []models.BookRecord {
	return []models.BookRecord{
		{ID: "1", Title: "The Old Man and the Sea", Author: "Ernest Hemingway", Genre: "Fiction"},
		{ID: "2", Title: "field_notes", Filename: "field_notes_2021.pdf"},
		{ID: "3", Title: "Moby Dick", Description: "A  whale\n of a tale"},
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"hyperjump_company_profile_2021.pptx": "hyperjump company profile 2021.pptx",
		"  two   spaces\tand tab ":            "two spaces and tab",
		"":                                    "",
	}
	for in, want := range tests {
		if got := normalizeText(in); got != want {
			t.Errorf("normalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	ix, st, idx := testIndexer(t)
	if err := ix.Sync(ctx, books()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	n, err := st.CountBooks(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountBooks = %d, %v", n, err)
	}
	stored, _ := st.GetBook(ctx, "2")
	if stored.Title != "field_notes" {
		t.Errorf("snapshot must keep the original title, got %q", stored.Title)
	}
	res, err := idx.Search(ctx, "field notes", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) == 0 || res[0].ID != "2" {
		t.Errorf("expected underscore title to be searchable, got %v", res)
	}

	if err := ix.Sync(ctx, books()[:1]); err != nil {
		t.Fatal(err)
	}
	if c, _ := idx.DocCount(); c != 1 {
		t.Errorf("DocCount after shrink = %d", c)
	}
}

func TestAddAndRemove(t *testing.T) {
	ctx := context.Background()
	ix, st, idx := testIndexer(t)
	if err := ix.Sync(ctx, books()); err != nil {
		t.Fatal(err)
	}
	extra := models.BookRecord{ID: "9", Title: "Walden"}
	if err := ix.Add(ctx, &extra); err != nil {
		t.Fatal(err)
	}
	if res, _ := idx.Search(ctx, "walden", 5, nil); len(res) != 1 {
		t.Errorf("added record not searchable: %v", res)
	}

	if err := ix.Remove(ctx, "3"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := st.GetBook(ctx, "3"); err == nil {
		t.Error("record still in snapshot")
	}
	if res, _ := idx.Search(ctx, "moby", 5, nil); len(res) != 0 {
		t.Errorf("record still indexed: %v", res)
	}
	// not in the snapshot
	if err := ix.Remove(ctx, "9"); err != nil {
		t.Errorf("Remove of unsynced record: %v", err)
	}
}

func TestRestore_rebuildsEmptyIndex(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.ReplaceBooks(ctx, books()); err != nil {
		t.Fatal(err)
	}
	idx, err := keyword.NewBookIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	got, err := NewIndexer(st, idx, nil).Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(got) != 3 || got[0].ID != "1" {
		t.Errorf("unexpected snapshot %v", got)
	}
	if c, _ := idx.DocCount(); c != 3 {
		t.Errorf("DocCount = %d, want 3", c)
	}
}

func TestNilDependencies(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(nil, nil, nil)
	if err := ix.Sync(ctx, books()); err != nil {
		t.Error(err)
	}
	if err := ix.Remove(ctx, "1"); err != nil {
		t.Error(err)
	}
	if got, err := ix.Restore(ctx); err != nil || got != nil {
		t.Errorf("Restore = %v, %v", got, err)
	}
}
