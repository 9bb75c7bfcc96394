// Package fileid derives stable identifiers for files in watched drop folders.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	prefix       = "file:"
	digestPrefix = "sha256:"
)

// FileDocID returns a stable ledger key for the given path. The path is made
// absolute and cleaned first, so the same file always yields the same ID.
func FileDocID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:])
}

// ContentDigest returns the SHA-256 of the file's bytes. A file that is
// touched or rewritten with the same content keeps its digest.
func ContentDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReaderDigest(f)
}

// ReaderDigest is ContentDigest over a stream.
func ReaderDigest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return digestPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
