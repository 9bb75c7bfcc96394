package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
	"github.com/hyperjump/readora/internal/storage"
)

const (
	defaultFindLimit = 20
	maxFindLimit     = 100
)

type booksResponse struct {
	View  models.View         `json:"view"`
	Count int                 `json:"count"`
	Books []models.BookRecord `json:"books"`
}

type genresResponse struct {
	View   models.View             `json:"view"`
	Genres []string                `json:"genres"`
	Groups []collection.GenreGroup `json:"groups"`
}

type findResponse struct {
	Query      string        `json:"query"`
	Results    []ranking.Hit `json:"results"`
	Suggestion string        `json:"suggestion,omitempty"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := models.ParseView(q.Get("view"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortKey := models.SortKey(s.config.Collection.DefaultSort)
	if v := q.Get("sort"); v != "" {
		if sortKey, err = models.ParseSortKey(v); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	params := models.QueryParams{Search: q.Get("q"), Genre: q.Get("genre"), Sort: sortKey}
	s.logger.Debug("list books request", zap.String("view", string(view)),
		zap.String("q", params.Search), zap.String("genre", params.Genre), zap.String("sort", string(params.Sort)))

	books := s.engine.Query(collection.Select(s.store.Snapshot(), view), params)
	s.respondJSON(w, http.StatusOK, booksResponse{View: view, Count: len(books), Books: books})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := models.BookID(chi.URLParam(r, "id"))
	book, ok := s.store.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	view, err := models.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	groups := collection.GroupByGenre(collection.Select(s.store.Snapshot(), view))
	s.respondJSON(w, http.StatusOK, genresResponse{
		View:   view,
		Genres: collection.AvailableGenres(groups),
		Groups: groups,
	})
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	books := collection.Featured(s.store.Snapshot())
	s.respondJSON(w, http.StatusOK, booksResponse{View: models.ViewAll, Count: len(books), Books: books})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusServiceUnavailable, "keyword index not configured")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultFindLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxFindLimit)
	}
	fuzzy, _ := strconv.ParseBool(q.Get("fuzzy"))
	s.logger.Debug("find request", zap.String("query", query), zap.Int("limit", limit), zap.Bool("fuzzy", fuzzy))

	results, err := s.index.Search(r.Context(), query, limit, &keyword.SearchOptions{TitleBoost: 2, Fuzzy: fuzzy})
	if err != nil {
		s.logger.Error("find failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits := make([]ranking.Hit, 0, len(results))
	for _, res := range results {
		// the index can briefly hold records the store already dropped
		if book, ok := s.store.Get(res.ID); ok {
			hits = append(hits, ranking.Hit{Score: res.Score, Book: book})
		}
	}
	resp := findResponse{Query: query, Results: s.ranker.ReRank(query, hits)}
	if s.speller != nil {
		if corrected, ok := s.speller.SuggestQuery(query); ok {
			resp.Suggestion = corrected
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := models.BookID(chi.URLParam(r, "id"))
	s.logger.Debug("delete book request", zap.String("id", id.String()))
	if err := s.backend.DeleteBook(r.Context(), id); err != nil {
		var mutErr *models.MutationError
		switch {
		case errors.Is(err, models.ErrNotFound):
			s.respondError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &mutErr):
			s.logger.Warn("upstream delete failed", zap.String("id", id.String()), zap.Error(err))
			s.respondError(w, http.StatusBadGateway, mutErr.Message)
		default:
			s.respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	s.removeLocal(r.Context(), id)
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": "deleted"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		var fetchErr *models.FetchError
		if errors.As(err, &fetchErr) {
			s.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.store.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"collection": s.store.Status(),
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_books"] = n
		}
	}
	cfg := s.config
	if diskBytes, err := storage.DiskUsageBytes(
		append(storage.SnapshotFiles(cfg.Storage.DatabasePath), cfg.Storage.BleveIndexPath)...,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"api_base_url":     cfg.API.BaseURL,
		"refresh_interval": cfg.Server.RefreshInterval.String(),
		"database_path":    cfg.Storage.DatabasePath,
		"bleve_index_path": cfg.Storage.BleveIndexPath,
		"deletes_enabled":  s.auth.Enabled(),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
