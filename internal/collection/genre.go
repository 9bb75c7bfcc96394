package collection

import (
	"sort"

	"github.com/hyperjump/readora/internal/models"
)

// GenreGroup is the set of records sharing one genre label.
type GenreGroup struct {
	Genre string              `json:"genre"`
	Books []models.BookRecord `json:"books"`
}

// GroupByGenre buckets books by DisplayGenre. Groups appear in order of first
// occurrence and keep input order inside each group.
func GroupByGenre(books []models.BookRecord) []GenreGroup {
	index := make(map[string]int)
	groups := make([]GenreGroup, 0)
	for _, b := range books {
		genre := b.DisplayGenre()
		i, ok := index[genre]
		if !ok {
			i = len(groups)
			index[genre] = i
			groups = append(groups, GenreGroup{Genre: genre})
		}
		groups[i].Books = append(groups[i].Books, b)
	}
	return groups
}

// AvailableGenres returns the group labels sorted alphabetically.
func AvailableGenres(groups []GenreGroup) []string {
	genres := make([]string, len(groups))
	for i, g := range groups {
		genres[i] = g.Genre
	}
	sort.Strings(genres)
	return genres
}

// Flatten concatenates the groups in label order, preserving the order inside each group.
func Flatten(groups []GenreGroup) []models.BookRecord {
	sorted := append([]GenreGroup(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Genre < sorted[j].Genre })
	out := make([]models.BookRecord, 0)
	for _, g := range sorted {
		out = append(out, g.Books...)
	}
	return out
}
