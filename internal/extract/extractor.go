// Package extract pulls plain text out of uploaded documents so missing
// descriptions can be filled in and files validated before upload.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for extensions without a text extractor.
var ErrUnsupported = errors.New("unsupported document format")

// Extractor extracts plain text from document files.
type Extractor struct {
	// maxPages bounds how many PDF pages are read; 0 reads all.
	maxPages int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxPages stops PDF extraction after n pages.
func WithMaxPages(n int) ExtractorOption {
	return func(e *Extractor) { e.maxPages = n }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether ext (with leading dot, any case) has an extractor.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".txt", ".md":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return "", fmt.Errorf("%s: %w", ext, ErrUnsupported)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content, e.maxPages)
	case ".docx":
		return extractDOCX(content)
	case ".odt":
		return extractODT(content)
	case ".rtf":
		return extractRTF(content)
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%s: %w", ext, ErrUnsupported)
	}
}
