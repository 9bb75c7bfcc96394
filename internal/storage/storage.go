// Package storage defines the persistence interface for the offline book
// snapshot and the drop-folder upload ledger.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/readora/internal/models"
)

// Storage defines snapshot and ledger persistence operations.
type Storage interface {
	// Snapshot operations
	ReplaceBooks(ctx context.Context, books []models.BookRecord) error
	ListBooks(ctx context.Context) ([]models.BookRecord, error)
	GetBook(ctx context.Context, id models.BookID) (*models.BookRecord, error)
	DeleteBook(ctx context.Context, id models.BookID) error
	CountBooks(ctx context.Context) (int64, error)
	LastSynced(ctx context.Context) (time.Time, bool, error)

	// Upload ledger
	RecordUpload(ctx context.Context, rec *models.UploadRecord) error
	LookupUpload(ctx context.Context, fileID string) (*models.UploadRecord, error)

	Close() error
}
