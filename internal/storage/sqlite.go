package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/readora/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		title TEXT,
		genre TEXT,
		payload TEXT NOT NULL,
		synced_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_id ON books(id);

	CREATE TABLE IF NOT EXISTS sync_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		synced_at TIMESTAMP NOT NULL,
		book_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS uploads (
		file_id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		book_id TEXT NOT NULL,
		digest TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		mod_time TIMESTAMP NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceBooks swaps the whole snapshot for books in one transaction.
// Input order is kept; duplicate ids are stored as given.
func (s *SQLiteStorage) ReplaceBooks(ctx context.Context, books []models.BookRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO books (position, id, title, genre, payload, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := s.now()
	for i := range books {
		payload, err := json.Marshal(&books[i])
		if err != nil {
			return fmt.Errorf("failed to marshal book %s: %w", books[i].ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, string(books[i].ID), books[i].Title, books[i].Genre, string(payload), now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_state (id, synced_at, book_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET synced_at = excluded.synced_at, book_count = excluded.book_count`,
		now, len(books),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListBooks returns the snapshot in the order it was stored.
func (s *SQLiteStorage) ListBooks(ctx context.Context) ([]models.BookRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM books ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []models.BookRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var book models.BookRecord
		if err := json.Unmarshal([]byte(payload), &book); err != nil {
			return nil, fmt.Errorf("failed to unmarshal book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// GetBook returns the first snapshot record with the given id.
func (s *SQLiteStorage) GetBook(ctx context.Context, id models.BookID) (*models.BookRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM books WHERE id = ? ORDER BY position LIMIT 1`, string(id),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var book models.BookRecord
	if err := json.Unmarshal([]byte(payload), &book); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book: %w", err)
	}
	return &book, nil
}

// DeleteBook removes every snapshot record with the given id.
func (s *SQLiteStorage) DeleteBook(ctx context.Context, id models.BookID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("book %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CountBooks returns the number of records in the snapshot.
func (s *SQLiteStorage) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// LastSynced returns when the snapshot was last replaced. ok is false before the first sync.
func (s *SQLiteStorage) LastSynced(ctx context.Context) (t time.Time, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT synced_at FROM sync_state WHERE id = 1`).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// RecordUpload inserts or replaces the ledger entry of rec.FileID.
func (s *SQLiteStorage) RecordUpload(ctx context.Context, rec *models.UploadRecord) error {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (file_id, path, book_id, digest, size, mod_time, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET path = excluded.path, book_id = excluded.book_id,
		   digest = excluded.digest, size = excluded.size, mod_time = excluded.mod_time,
		   uploaded_at = excluded.uploaded_at`,
		rec.FileID, rec.Path, string(rec.BookID), rec.Digest, rec.Size, rec.ModTime.UTC(), rec.UploadedAt.UTC(),
	)
	return err
}

// LookupUpload returns the ledger entry of fileID, or an error wrapping models.ErrNotFound.
func (s *SQLiteStorage) LookupUpload(ctx context.Context, fileID string) (*models.UploadRecord, error) {
	var rec models.UploadRecord
	var bookID string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id, path, book_id, digest, size, mod_time, uploaded_at FROM uploads WHERE file_id = ?`, fileID,
	).Scan(&rec.FileID, &rec.Path, &bookID, &rec.Digest, &rec.Size, &rec.ModTime, &rec.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", fileID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.BookID = models.BookID(bookID)
	return &rec, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
