package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "books.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "bleve")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "index_meta.json"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "store", "root.bolt"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"nested dir", []string{index}, 3},
		{"file and dir", []string{db, index}, 8},
		{"missing skipped", []string{db, filepath.Join(dir, "nonexistent"), index}, 8},
		{"empty and memory skipped", []string{"", ":memory:", db}, 5},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}

func TestSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "books.db")
	if got := SnapshotFiles(db); len(got) != 1 || got[0] != db {
		t.Errorf("SnapshotFiles without WAL = %v", got)
	}
	if err := os.WriteFile(db+"-wal", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := SnapshotFiles(db); len(got) != 2 || got[1] != db+"-wal" {
		t.Errorf("SnapshotFiles with WAL = %v", got)
	}
	if got := SnapshotFiles(":memory:"); got != nil {
		t.Errorf("SnapshotFiles(:memory:) = %v", got)
	}
}
