// Package models defines the book records, upload inputs and query parameters shared across Readora.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// SampleDataSource marks seed/demo records, which always belong to the public library.
	SampleDataSource = "Sample Data"
	// PublicLibraryType is the library_type value of public-library records.
	PublicLibraryType = "public"
	// PersonalLibraryType is the library_type sent for private uploads.
	PersonalLibraryType = "personal"
	// UncategorizedGenre is the label used for records without a genre.
	UncategorizedGenre = "Uncategorized"
	// UnknownAuthor is shown for public records without an author.
	UnknownAuthor = "Unknown Author"
	// PersonalAuthor is shown for personal documents without an author.
	PersonalAuthor = "Personal Document"
)

// BookID is an opaque record identifier. The backend sends it either as a
// JSON string or a number; both decode to the same string form.
type BookID string

// UnmarshalJSON accepts string, number and null ids.
func (id *BookID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("book id: %w", err)
		}
		*id = BookID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	*id = BookID(n.String())
	return nil
}

// String returns the id as a string.
func (id BookID) String() string {
	return string(id)
}

// Timestamp is an ISO-8601 instant as sent by the backend. Raw keeps the
// original text; Time is zero when Raw could not be parsed.
type Timestamp struct {
	Time time.Time
	Raw  string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the date and date-time forms the backend is known to emit.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// NewTimestamp returns a Timestamp for t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t, Raw: t.UTC().Format(time.RFC3339Nano)}
}

// UnmarshalJSON keeps unparsable strings instead of failing the whole payload.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, _ := ParseTimestamp(s)
	*t = Timestamp{Time: parsed, Raw: s}
	return nil
}

// MarshalJSON writes the original text when known.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Raw != "" {
		return json.Marshal(t.Raw)
	}
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// BookRecord is one stored document, public or personal, as returned by the backend.
type BookRecord struct {
	ID          BookID     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	FileSize    *int64     `json:"file_size,omitempty"`
	CreatedAt   *Timestamp `json:"created_at,omitempty"`
	IsPublic    *bool      `json:"is_public,omitempty"`
	Source      string     `json:"source,omitempty"`
	LibraryType string     `json:"library_type,omitempty"`
	IsFeatured  *bool      `json:"is_featured,omitempty"`
	Featured    *bool      `json:"featured,omitempty"`
}

// IsPersonal reports whether the record is a personal document: it has a
// stored file and carries none of the public markers (is_public, sample
// source, public library type). Every other record is public.
func (b *BookRecord) IsPersonal() bool {
	if b.IsPublic != nil && *b.IsPublic {
		return false
	}
	if b.Source == SampleDataSource || b.LibraryType == PublicLibraryType {
		return false
	}
	return b.Filename != ""
}

// FeaturedFlag reports whether either featured flag is set.
func (b *BookRecord) FeaturedFlag() bool {
	return (b.IsFeatured != nil && *b.IsFeatured) || (b.Featured != nil && *b.Featured)
}

// DisplayAuthor returns the author, or the partition-specific placeholder.
func (b *BookRecord) DisplayAuthor() string {
	if b.Author != "" {
		return b.Author
	}
	if b.IsPersonal() {
		return PersonalAuthor
	}
	return UnknownAuthor
}

// DisplayGenre returns the genre, or UncategorizedGenre when absent.
func (b *BookRecord) DisplayGenre() string {
	if b.Genre == "" {
		return UncategorizedGenre
	}
	return b.Genre
}

// CreatedTime returns the parsed creation time; ok is false when it is missing or unparsable.
func (b *BookRecord) CreatedTime() (t time.Time, ok bool) {
	if b.CreatedAt == nil || b.CreatedAt.Time.IsZero() {
		return time.Time{}, false
	}
	return b.CreatedAt.Time, true
}

// Size returns file_size, treating missing or negative values as 0.
func (b *BookRecord) Size() int64 {
	if b.FileSize == nil || *b.FileSize < 0 {
		return 0
	}
	return *b.FileSize
}

// Bool returns a pointer to v, for optional record flags.
func Bool(v bool) *bool {
	return &v
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
