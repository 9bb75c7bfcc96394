package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/models"
)

// Source fetches the full collection, e.g. client.ListBooks.
type Source func(ctx context.Context) ([]models.BookRecord, error)

// State is the load state of a Store.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Status is a point-in-time view of a Store.
type Status struct {
	State    State     `json:"state"`
	Count    int       `json:"count"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Store holds the last successfully loaded collection. A failed load leaves
// the previous collection in place. Starting a load cancels the one in
// flight, and a response older than the latest started load is discarded.
type Store struct {
	mu       sync.Mutex
	books    []models.BookRecord
	state    State
	lastErr  error
	loadedAt time.Time
	seq      uint64
	// removed maps ids dropped by Remove to the latest load sequence at that
	// time; loads started no later than that cannot have seen the delete.
	removed  map[models.BookID]uint64
	cancel   context.CancelFunc
	closed   bool
	logger   *zap.Logger
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for load events.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty, idle Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:  StateIdle,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the collection from src and, if this is still the latest load,
// replaces the in-memory collection with it. Errors from src are returned as
// *models.FetchError; a load overtaken by a newer one returns models.ErrSuperseded.
func (s *Store) Load(ctx context.Context, src Source) ([]models.BookRecord, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, models.ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateLoading
	s.mu.Unlock()
	defer cancel()

	start := s.now()
	books, err := src(loadCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, models.ErrClosed
	}
	if seq != s.seq {
		s.logger.Debug("discarding superseded load", zap.Uint64("seq", seq), zap.Uint64("latest", s.seq))
		return nil, models.ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.state = StateError
		s.lastErr = asFetchError(err)
		s.logger.Warn("collection load failed; keeping previous collection",
			zap.Int("kept", len(s.books)), zap.Error(err))
		return nil, s.lastErr
	}
	books = s.dropRemovedLocked(books, seq)
	s.books = append([]models.BookRecord(nil), books...)
	s.state = StateReady
	s.lastErr = nil
	s.loadedAt = s.now()
	s.logger.Debug("collection loaded",
		zap.Int("count", len(books)), zap.Duration("took", s.loadedAt.Sub(start)))
	return append([]models.BookRecord(nil), books...), nil
}

// Seed installs books without a fetch, e.g. from an offline snapshot. It only
// applies while nothing has been loaded yet and returns whether it did.
func (s *Store) Seed(books []models.BookRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == StateReady || len(s.books) > 0 {
		return false
	}
	s.books = append([]models.BookRecord(nil), books...)
	if s.state == StateIdle {
		s.state = StateReady
	}
	return true
}

// Remove deletes the record with id from the in-memory collection. It is meant
// to be called after the backend confirmed the delete and reports whether a
// record was removed.
func (s *Store) Remove(id models.BookID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed == nil {
		s.removed = make(map[models.BookID]uint64)
	}
	s.removed[id] = s.seq
	for i := range s.books {
		if s.books[i].ID == id {
			s.books = append(s.books[:i:i], s.books[i+1:]...)
			return true
		}
	}
	return false
}

// dropRemovedLocked filters out records removed while load seq was in flight
// and forgets removals that load seq already reflects.
func (s *Store) dropRemovedLocked(books []models.BookRecord, seq uint64) []models.BookRecord {
	if len(s.removed) == 0 {
		return books
	}
	kept := make([]models.BookRecord, 0, len(books))
	for _, b := range books {
		if at, ok := s.removed[b.ID]; ok && at >= seq {
			s.logger.Debug("dropping record removed during load", zap.String("id", b.ID.String()))
			continue
		}
		kept = append(kept, b)
	}
	for id, at := range s.removed {
		if at < seq {
			delete(s.removed, id)
		}
	}
	return kept
}

// Get returns the record with id.
func (s *Store) Get(id models.BookID) (models.BookRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if b.ID == id {
			return b, true
		}
	}
	return models.BookRecord{}, false
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []models.BookRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BookRecord(nil), s.books...)
}

// Status returns the current load state.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Count: len(s.books), LoadedAt: s.loadedAt}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

// Close aborts any in-flight load. Later loads fail with models.ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func asFetchError(err error) error {
	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &models.FetchError{Op: "load collection", Err: err}
}
