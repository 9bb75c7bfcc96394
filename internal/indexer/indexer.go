// Package indexer keeps the offline snapshot and the keyword index in step
// with the collection loaded from the backend.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/readora/internal/keyword"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/storage"
)

// Indexer writes collection changes to the snapshot, the Bleve index and the
// spell checker vocabulary. Any of them may be nil.
type Indexer struct {
	storage storage.Storage
	index   *keyword.BookIndex
	speller *keyword.SpellChecker
	logger  *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(st storage.Storage, index *keyword.BookIndex, speller *keyword.SpellChecker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage: st,
		index:   index,
		speller: speller,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Sync replaces the snapshot with books and rebuilds the keyword index from them.
func (idx *Indexer) Sync(ctx context.Context, books []models.BookRecord) error {
	if idx.storage != nil {
		if err := idx.storage.ReplaceBooks(ctx, books); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
	}
	if idx.index != nil {
		docs := make([]models.BookRecord, len(books))
		for i := range books {
			docs[i] = forKeywordIndex(books[i])
		}
		if err := idx.index.Rebuild(ctx, docs); err != nil {
			return fmt.Errorf("failed to rebuild keyword index: %w", err)
		}
	}
	idx.invalidate()
	idx.logger.Debug("indexer synced", zap.Int("books", len(books)))
	return nil
}

// Add indexes a single new record, e.g. right after an upload. The snapshot
// picks it up on the next Sync.
func (idx *Indexer) Add(ctx context.Context, book *models.BookRecord) error {
	if idx.index == nil {
		return nil
	}
	doc := forKeywordIndex(*book)
	if err := idx.index.Index(ctx, &doc); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}
	idx.invalidate()
	return nil
}

// Remove deletes a record from the snapshot and the index. A record missing
// from either is not an error.
func (idx *Indexer) Remove(ctx context.Context, id models.BookID) error {
	idx.logger.Debug("indexer deleting book", zap.String("id", id.String()))
	if idx.storage != nil {
		if err := idx.storage.DeleteBook(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to delete from snapshot: %w", err)
		}
	}
	if idx.index != nil {
		if err := idx.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	idx.invalidate()
	return nil
}

// Restore returns the stored snapshot. When the keyword index is empty but the
// snapshot is not (e.g. an in-memory index after a restart), the index is
// rebuilt from it.
func (idx *Indexer) Restore(ctx context.Context) ([]models.BookRecord, error) {
	if idx.storage == nil {
		return nil, nil
	}
	books, err := idx.storage.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if idx.index == nil || len(books) == 0 {
		return books, nil
	}
	n, err := idx.index.DocCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		docs := make([]models.BookRecord, len(books))
		for i := range books {
			docs[i] = forKeywordIndex(books[i])
		}
		if err := idx.index.Rebuild(ctx, docs); err != nil {
			return nil, fmt.Errorf("failed to rebuild keyword index: %w", err)
		}
		idx.invalidate()
		idx.logger.Debug("keyword index rebuilt from snapshot", zap.Int("books", len(books)))
	}
	return books, nil
}

func (idx *Indexer) invalidate() {
	if idx.speller != nil {
		idx.speller.Invalidate()
	}
}

// forKeywordIndex prepares a copy of b for the standard analyzer, which keeps
// "old_man_and_the_sea" as one token: underscores become spaces and
// whitespace runs collapse.
func forKeywordIndex(b models.BookRecord) models.BookRecord {
	b.Title = normalizeText(b.Title)
	b.Filename = normalizeText(b.Filename)
	b.Description = normalizeText(b.Description)
	return b
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "_", " ")
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}
