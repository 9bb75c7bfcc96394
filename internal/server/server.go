// Package server provides the local HTTP view API for Readora.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/indexer"
	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
)

// Backend is the part of the REST client the server needs.
type Backend interface {
	ListBooks(ctx context.Context) ([]models.BookRecord, error)
	DeleteBook(ctx context.Context, id models.BookID) error
}

// Server serves derived views of the collection held in a Store.
type Server struct {
	backend Backend
	store   *collection.Store
	engine  *collection.Engine
	indexer *indexer.Indexer
	index   *keyword.BookIndex
	speller *keyword.SpellChecker
	ranker  *ranking.Ranker
	auth    *Authorizer
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	// syncMu orders snapshot syncs against local removals.
	syncMu sync.Mutex
}

// NewServer creates a server with the given dependencies. index and speller
// may be nil, in which case /find is unavailable.
func NewServer(
	backend Backend,
	store *collection.Store,
	idx *indexer.Indexer,
	index *keyword.BookIndex,
	speller *keyword.SpellChecker,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		backend: backend,
		store:   store,
		engine:  collection.NewEngineForLocale(cfg.Collection.Locale),
		indexer: idx,
		index:   index,
		speller: speller,
		ranker:  ranking.NewRanker(nil),
		auth:    NewAuthorizer(cfg.Server.AdminToken),
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/books", s.handleListBooks)
		r.Get("/books/{id}", s.handleGetBook)
		r.With(s.auth.Middleware).Delete("/books/{id}", s.handleDeleteBook)
		r.Get("/genres", s.handleGenres)
		r.Get("/featured", s.handleFeatured)
		r.Get("/find", s.handleFind)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Refresh reloads the collection from the backend and, on success, syncs the
// snapshot and the keyword index. A load overtaken by a newer one is not an error.
func (s *Server) Refresh(ctx context.Context) error {
	books, err := s.store.Load(ctx, s.backend.ListBooks)
	if errors.Is(err, models.ErrSuperseded) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Debug("collection refreshed", zap.Int("count", len(books)))
	if s.indexer == nil {
		return nil
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	// the store may have dropped records deleted since the load returned
	if err := s.indexer.Sync(ctx, s.store.Snapshot()); err != nil {
		s.logger.Warn("failed to sync snapshot", zap.Error(err))
	}
	return nil
}

// removeLocal drops id from the store, the snapshot and the keyword index.
func (s *Server) removeLocal(ctx context.Context, id models.BookID) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.store.Remove(id)
	if s.indexer != nil {
		if err := s.indexer.Remove(ctx, id); err != nil {
			s.logger.Warn("failed to drop deleted book locally", zap.String("id", id.String()), zap.Error(err))
		}
	}
}

// Warm seeds the store from the offline snapshot so the API has data before
// the first refresh completes.
func (s *Server) Warm(ctx context.Context) {
	if s.indexer == nil {
		return
	}
	books, err := s.indexer.Restore(ctx)
	if err != nil {
		s.logger.Warn("failed to restore snapshot", zap.Error(err))
		return
	}
	if len(books) > 0 && s.store.Seed(books) {
		s.logger.Info("serving offline snapshot until first refresh", zap.Int("books", len(books)))
	}
}

// RunRefresher refreshes immediately and then every interval until ctx is done.
// Failed refreshes keep the previous collection.
func (s *Server) RunRefresher(ctx context.Context, interval time.Duration) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("initial refresh failed", zap.Error(err))
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("refresh failed", zap.Error(err))
			}
		}
	}
}

// Start restores the snapshot, starts the background refresher and serves
// until the server is stopped.
func (s *Server) Start(ctx context.Context) error {
	s.Warm(ctx)
	go s.RunRefresher(ctx, s.config.Server.RefreshInterval)

	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.store.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
