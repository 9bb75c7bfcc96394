package collection

import (
	"time"

	"github.com/hyperjump/readora/internal/models"
)

func ts(s string) *models.Timestamp {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return &models.Timestamp{Time: t, Raw: s}
}

func ids(books []models.BookRecord) []models.BookID {
	out := make([]models.BookID, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func equalIDs(a, b []models.BookID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mixedLibrary has public, sample, personal and file-less records interleaved.
func mixedLibrary() []models.BookRecord {
	return []models.BookRecord{
		{ID: "1", Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Filename: "dune.pdf",
			IsPublic: models.Bool(true), CreatedAt: ts("2021-05-01"), FileSize: models.Int64(5000)},
		{ID: "2", Title: "tax return 2023", Filename: "tax.pdf", IsPublic: models.Bool(false),
			CreatedAt: ts("2024-02-01T09:00:00Z"), FileSize: models.Int64(100)},
		{ID: "3", Title: "Pride and Prejudice", Author: "Jane Austen", Genre: "Romance",
			Source: models.SampleDataSource, Filename: "pp.pdf", Featured: models.Bool(true)},
		{ID: "4", Title: "Meeting notes", Description: "Quarterly planning", Filename: "notes.pdf",
			Genre: "Work", CreatedAt: ts("2023-11-11")},
		{ID: "5", Title: "Hamlet", Author: "William Shakespeare", Genre: "Drama", IsPublic: models.Bool(false),
			CreatedAt: ts("2019-01-01"), IsFeatured: models.Bool(true)},
		{ID: "6", Title: "Leaves of Grass", Author: "Walt Whitman", LibraryType: "public", Filename: "leaves.pdf",
			CreatedAt: &models.Timestamp{Raw: "not a date"}},
	}
}

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
