// Package integration exercises the fetch, snapshot and search pipeline
// against real storage and indices.
package integration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/readora/internal/client"
	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/indexer"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
	"github.com/hyperjump/readora/internal/storage"
)

const booksJSON = `[
	{"id": 1, "title": "The Old Man and the Sea", "author": "Ernest Hemingway", "genre": "Fiction",
	 "is_public": true, "featured": true, "created_at": "2024-05-01T10:00:00Z"},
	{"id": 2, "title": "Tax return", "filename": "tax_2023.pdf", "source": "user_upload", "file_size": 2048},
	{"id": "3", "title": "Walden", "author": "Henry David Thoreau", "genre": "Essays",
	 "library_type": "public", "filename": "walden.epub", "created_at": "2023-01-15"},
	{"id": 4, "title": "Moby Dick", "author": "Herman Melville", "genre": "Fiction", "is_public": true}
]`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, booksJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openSnapshot(t *testing.T, dir string) (*storage.SQLiteStorage, *keyword.BookIndex) {
	t.Helper()
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "readora.db"))
	if err != nil {
		t.Fatal(err)
	}
	index, err := keyword.NewBookIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		st.Close()
		t.Fatal(err)
	}
	return st, index
}

func TestIntegration_LoadQueryAndSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	c, err := client.New(backend.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	store := collection.NewStore()
	defer store.Close()
	books, err := store.Load(ctx, c.ListBooks)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(books) != 4 {
		t.Fatalf("loaded %d books, want 4", len(books))
	}

	parts := collection.Partition(store.Snapshot())
	if len(parts.Public) != 3 || len(parts.Personal) != 1 || parts.Personal[0].ID != "2" {
		t.Fatalf("partition = %d public, %d personal", len(parts.Public), len(parts.Personal))
	}

	byTitle := collection.NewEngineForLocale("en").Query(parts.Public, models.QueryParams{Sort: models.SortTitle})
	var titles []string
	for _, b := range byTitle {
		titles = append(titles, b.Title)
	}
	want := []string{"Moby Dick", "The Old Man and the Sea", "Walden"}
	for i := range want {
		if i >= len(titles) || titles[i] != want[i] {
			t.Fatalf("title order = %v, want %v", titles, want)
		}
	}

	groups := collection.GroupByGenre(parts.Public)
	if genres := collection.AvailableGenres(groups); len(genres) != 2 {
		t.Errorf("genres = %v, want Essays and Fiction", genres)
	}

	dir := t.TempDir()
	st, index := openSnapshot(t, dir)
	if err := indexer.NewIndexer(st, index, nil).Sync(ctx, books); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	st.Close()
	index.Close()

	// a fresh process restores from the snapshot without the backend
	st, index = openSnapshot(t, dir)
	defer st.Close()
	defer index.Close()
	restored, err := indexer.NewIndexer(st, index, nil).Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored) != 4 {
		t.Fatalf("restored %d books, want 4", len(restored))
	}
	byID := make(map[models.BookID]models.BookRecord, len(restored))
	for _, b := range restored {
		byID[b.ID] = b
	}

	results, err := index.Search(ctx, "walden", 10, &keyword.SearchOptions{TitleBoost: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	hits := make([]ranking.Hit, 0, len(results))
	for _, r := range results {
		if b, ok := byID[r.ID]; ok {
			hits = append(hits, ranking.Hit{Score: r.Score, Book: b})
		}
	}
	hits = ranking.NewRanker(nil).ReRank("walden", hits)
	if len(hits) == 0 || hits[0].Book.ID != "3" || hits[0].Match != ranking.MatchExact {
		t.Errorf("hits = %+v", hits)
	}
}

func TestIntegration_FailedLoadKeepsCollection(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	c, err := client.New(backend.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	store := collection.NewStore()
	defer store.Close()
	if _, err := store.Load(ctx, c.ListBooks); err != nil {
		t.Fatal(err)
	}

	backend.Close()
	_, err = store.Load(ctx, c.ListBooks)
	var fetchErr *models.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want *models.FetchError", err)
	}
	if got := len(store.Snapshot()); got != 4 {
		t.Errorf("collection after failed load = %d, want 4", got)
	}
	if s := store.Status(); s.State != collection.StateError || s.Error == "" {
		t.Errorf("status = %+v", s)
	}
}
