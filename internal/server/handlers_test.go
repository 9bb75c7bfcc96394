package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/indexer"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
	"github.com/hyperjump/readora/internal/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	books     []models.BookRecord
	listErr   error
	deleteErr error
	deleted   []models.BookID

	// when gate is set, ListBooks takes its answer, closes started and
	// blocks until gate is closed
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeBackend) ListBooks(context.Context) ([]models.BookRecord, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	books := append([]models.BookRecord(nil), f.books...)
	started, gate := f.started, f.gate
	f.started, f.gate = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}
	return books, nil
}

func (f *fakeBackend) DeleteBook(_ context.Context, id models.BookID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func library() []models.BookRecord {
	return []models.BookRecord{
		{ID: "1", Title: "The Old Man and the Sea", Author: "Ernest Hemingway", Genre: "Fiction",
			Filename: "oldman.pdf", IsPublic: models.Bool(true), Featured: models.Bool(true)},
		{ID: "2", Title: "Tax return", Filename: "tax.pdf"},
		{ID: "3", Title: "Walden", Author: "Henry David Thoreau", Genre: "Essays",
			Filename: "walden.pdf", LibraryType: models.PublicLibraryType},
		{ID: "4", Title: "Moby Dick", Author: "Herman Melville", Genre: "Fiction", IsPublic: models.Bool(true)},
	}
}

type testEnv struct {
	srv     *Server
	backend *fakeBackend
	store   *collection.Store
	storage *storage.SQLiteStorage
	handler http.Handler
}

func newTestServer(t *testing.T, token string) *testEnv {
	t.Helper()
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	index, err := keyword.NewBookIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = index.Close() })
	speller := keyword.NewSpellChecker(index)

	cfg := &config.Config{}
	cfg.Server.AdminToken = token
	cfg.Server.RefreshInterval = time.Minute

	backend := &fakeBackend{books: library()}
	store := collection.NewStore()
	srv := NewServer(backend, store, indexer.NewIndexer(st, index, speller), index, speller, cfg, zap.NewNop())
	if err := srv.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return &testEnv{srv: srv, backend: backend, store: store, storage: st, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func bookIDs(books []models.BookRecord) []models.BookID {
	out := make([]models.BookID, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func TestHandleListBooks(t *testing.T) {
	env := newTestServer(t, "")
	tests := []struct {
		target string
		want   []models.BookID
	}{
		{"/api/v1/books", []models.BookID{"1", "2", "3", "4"}},
		{"/api/v1/books?view=personal", []models.BookID{"2"}},
		{"/api/v1/books?view=public&sort=title", []models.BookID{"4", "1", "3"}},
		{"/api/v1/books?genre=Fiction&sort=author", []models.BookID{"1", "4"}},
		{"/api/v1/books?q=THOREAU", []models.BookID{"3"}},
		{"/api/v1/books?genre=Uncategorized", []models.BookID{"2"}},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodGet, tt.target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tt.target, w.Code)
		}
		resp := decode[booksResponse](t, w)
		got := bookIDs(resp.Books)
		if len(got) != len(tt.want) || resp.Count != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.target, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: got %v, want %v", tt.target, got, tt.want)
				break
			}
		}
	}
}

func TestHandleListBooks_badParams(t *testing.T) {
	env := newTestServer(t, "")
	for _, target := range []string{"/api/v1/books?view=secret", "/api/v1/books?sort=rating"} {
		if w := env.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, w.Code)
		}
	}
}

func TestHandleGetBook(t *testing.T) {
	env := newTestServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/books/3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if b := decode[models.BookRecord](t, w); b.Title != "Walden" {
		t.Errorf("title = %q", b.Title)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/books/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing book status %d", w.Code)
	}
}

func TestHandleGenres(t *testing.T) {
	env := newTestServer(t, "")
	resp := decode[genresResponse](t, env.do(t, http.MethodGet, "/api/v1/genres?view=public", nil))
	want := []string{"Essays", "Fiction"}
	if len(resp.Genres) != 2 || resp.Genres[0] != want[0] || resp.Genres[1] != want[1] {
		t.Errorf("genres = %v, want %v", resp.Genres, want)
	}
	if len(resp.Groups) != 2 || resp.Groups[0].Genre != "Fiction" || len(resp.Groups[0].Books) != 2 {
		t.Errorf("unexpected groups %+v", resp.Groups)
	}
}

func TestHandleFeatured(t *testing.T) {
	env := newTestServer(t, "")
	resp := decode[booksResponse](t, env.do(t, http.MethodGet, "/api/v1/featured", nil))
	if resp.Count != 1 || resp.Books[0].ID != "1" {
		t.Errorf("featured = %v", bookIDs(resp.Books))
	}
}

func TestHandleFind(t *testing.T) {
	env := newTestServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/find?q=walden", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	resp := decode[findResponse](t, w)
	if len(resp.Results) == 0 || resp.Results[0].Book.ID != "3" {
		t.Errorf("results = %+v", resp.Results)
	} else if resp.Results[0].Match != ranking.MatchExact {
		t.Errorf("match = %v, want exact", resp.Results[0].Match)
	}
	if resp.Suggestion != "" {
		t.Errorf("unexpected suggestion %q", resp.Suggestion)
	}

	resp = decode[findResponse](t, env.do(t, http.MethodGet, "/api/v1/find?q=hemingwya", nil))
	if resp.Suggestion != "hemingway" {
		t.Errorf("suggestion = %q, want hemingway", resp.Suggestion)
	}

	resp = decode[findResponse](t, env.do(t, http.MethodGet, "/api/v1/find?q=hemingwya&fuzzy=true", nil))
	if len(resp.Results) == 0 || resp.Results[0].Book.ID != "1" {
		t.Errorf("fuzzy results = %+v", resp.Results)
	}

	for _, target := range []string{"/api/v1/find", "/api/v1/find?q=x&limit=0", "/api/v1/find?q=x&limit=abc"} {
		if w := env.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, w.Code)
		}
	}
}

func TestHandleFind_noIndex(t *testing.T) {
	srv := NewServer(&fakeBackend{}, collection.NewStore(), nil, nil, nil, &config.Config{}, zap.NewNop())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/find?q=x", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", w.Code)
	}
}

func TestHandleDeleteBook_authorization(t *testing.T) {
	disabled := newTestServer(t, "")
	if w := disabled.do(t, http.MethodDelete, "/api/v1/books/2", map[string]string{AdminTokenHeader: "x"}); w.Code != http.StatusForbidden {
		t.Errorf("disabled: status %d, want 403", w.Code)
	}

	env := newTestServer(t, "s3cret")
	if w := env.do(t, http.MethodDelete, "/api/v1/books/2", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/books/2", map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d, want 401", w.Code)
	}
	if len(env.backend.deleted) != 0 {
		t.Error("backend must not be called without authorization")
	}
}

func TestHandleDeleteBook(t *testing.T) {
	env := newTestServer(t, "s3cret")
	w := env.do(t, http.MethodDelete, "/api/v1/books/3", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(env.backend.deleted) != 1 || env.backend.deleted[0] != "3" {
		t.Errorf("backend deletes = %v", env.backend.deleted)
	}
	if _, ok := env.store.Get("3"); ok {
		t.Error("record still in store")
	}
	resp := decode[findResponse](t, env.do(t, http.MethodGet, "/api/v1/find?q=walden", nil))
	if len(resp.Results) != 0 {
		t.Errorf("deleted record still found: %+v", resp.Results)
	}
}

func TestHandleDeleteBook_duringRefresh(t *testing.T) {
	env := newTestServer(t, "s3cret")
	started, gate := make(chan struct{}), make(chan struct{})
	env.backend.mu.Lock()
	env.backend.started, env.backend.gate = started, gate
	env.backend.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- env.srv.Refresh(context.Background()) }()
	<-started

	// the refresh response still lists record 4
	w := env.do(t, http.MethodDelete, "/api/v1/books/4", map[string]string{"X-Admin-Token": "s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	close(gate)
	if err := <-errCh; err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, ok := env.store.Get("4"); ok {
		t.Error("deleted record back in store")
	}
	snapshot, err := env.storage.ListBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range snapshot {
		if b.ID == "4" {
			t.Error("deleted record back in snapshot")
		}
	}
	if len(snapshot) != 3 {
		t.Errorf("snapshot = %v", bookIDs(snapshot))
	}
	results, err := env.srv.index.Search(context.Background(), "moby", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "4" {
			t.Error("deleted record back in keyword index")
		}
	}
}

func TestHandleDeleteBook_upstreamErrors(t *testing.T) {
	env := newTestServer(t, "s3cret")
	auth := map[string]string{AdminTokenHeader: "s3cret"}

	env.backend.deleteErr = &models.MutationError{Op: "delete", Status: 404, Message: "Book not found", Err: models.ErrNotFound}
	w := env.do(t, http.MethodDelete, "/api/v1/books/3", auth)
	if w.Code != http.StatusNotFound {
		t.Errorf("not found: status %d", w.Code)
	}

	env.backend.deleteErr = &models.MutationError{Op: "delete", Status: 500, Message: "Delete failed (500)"}
	w = env.do(t, http.MethodDelete, "/api/v1/books/3", auth)
	if w.Code != http.StatusBadGateway {
		t.Errorf("server error: status %d", w.Code)
	}
	if msg := decode[map[string]string](t, w)["error"]; msg != "Delete failed (500)" {
		t.Errorf("error = %q", msg)
	}
	if _, ok := env.store.Get("3"); !ok {
		t.Error("failed delete must keep the record")
	}
}

func TestHandleRefresh_keepsCollectionOnFailure(t *testing.T) {
	env := newTestServer(t, "")
	env.backend.mu.Lock()
	env.backend.listErr = errors.New("connection refused")
	env.backend.mu.Unlock()

	w := env.do(t, http.MethodPost, "/api/v1/refresh", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", w.Code)
	}
	if n := len(env.store.Snapshot()); n != 4 {
		t.Errorf("collection size after failed refresh = %d, want 4", n)
	}

	env.backend.mu.Lock()
	env.backend.listErr = nil
	env.backend.books = library()[:2]
	env.backend.mu.Unlock()
	w = env.do(t, http.MethodPost, "/api/v1/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if st := decode[collection.Status](t, w); st.State != collection.StateReady || st.Count != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestWarm_seedsFromSnapshot(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.ReplaceBooks(ctx, library()); err != nil {
		t.Fatal(err)
	}
	store := collection.NewStore()
	backend := &fakeBackend{listErr: errors.New("offline")}
	srv := NewServer(backend, store, indexer.NewIndexer(st, nil, nil), nil, nil, &config.Config{}, zap.NewNop())
	srv.Warm(ctx)
	if n := len(store.Snapshot()); n != 4 {
		t.Fatalf("seeded %d records, want 4", n)
	}
	if err := srv.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if n := len(store.Snapshot()); n != 4 {
		t.Errorf("snapshot dropped after failed refresh: %d", n)
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	env := newTestServer(t, "tok")
	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	resp := decode[map[string]interface{}](t, w)
	if resp["indexed_books"] != float64(4) {
		t.Errorf("indexed_books = %v", resp["indexed_books"])
	}
	cfg, _ := resp["config"].(map[string]interface{})
	if cfg["deletes_enabled"] != true {
		t.Errorf("config = %v", cfg)
	}

	w = env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != "ok" {
		t.Errorf("health: %d", w.Code)
	}
}
