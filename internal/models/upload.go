package models

import (
	"io"
	"strings"
	"time"
)

// UploadInput is the multipart payload of a create call.
type UploadInput struct {
	Title           string
	Author          string
	Description     string
	Genre           string
	CopyrightStatus string
	Language        string
	IsPublic        bool
	// LibraryType defaults to "public" for public uploads and "personal" otherwise.
	LibraryType string
	FileName    string
	File        io.Reader
}

// Validate checks the fields required before any network call is made.
func (in *UploadInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.File == nil || strings.TrimSpace(in.FileName) == "" {
		return &ValidationError{Field: "file", Message: "a file is required"}
	}
	return nil
}

// EffectiveLibraryType returns LibraryType or the default derived from IsPublic.
func (in *UploadInput) EffectiveLibraryType() string {
	if in.LibraryType != "" {
		return in.LibraryType
	}
	if in.IsPublic {
		return PublicLibraryType
	}
	return PersonalLibraryType
}

// UploadRecord is a ledger entry for a file the drop-folder watcher has
// already uploaded. FileID is derived from the file path.
type UploadRecord struct {
	FileID     string
	Path       string
	BookID     BookID
	Digest     string // content digest, see fileid.ContentDigest
	Size       int64
	ModTime    time.Time
	UploadedAt time.Time
}

// Unchanged reports whether a file with the given size and modification time
// is the one this record describes.
func (r *UploadRecord) Unchanged(size int64, modTime time.Time) bool {
	return r.Size == size && r.ModTime.Equal(modTime)
}
