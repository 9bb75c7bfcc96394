// Package collection holds the in-memory book collection and the pure views derived from it:
// public/personal partitioning, search/genre/sort queries and genre grouping.
package collection

import (
	"sort"

	"github.com/hyperjump/readora/internal/models"
)

// Partitioned is a collection split into the public library and personal documents.
// Both sides keep the relative order of the input.
type Partitioned struct {
	Public   []models.BookRecord `json:"public"`
	Personal []models.BookRecord `json:"personal"`
}

// Partition classifies every record exactly once using BookRecord.IsPersonal.
func Partition(books []models.BookRecord) Partitioned {
	p := Partitioned{
		Public:   make([]models.BookRecord, 0, len(books)),
		Personal: make([]models.BookRecord, 0),
	}
	for _, b := range books {
		if b.IsPersonal() {
			p.Personal = append(p.Personal, b)
		} else {
			p.Public = append(p.Public, b)
		}
	}
	return p
}

// Select returns the records visible in view, in input order.
func Select(books []models.BookRecord, view models.View) []models.BookRecord {
	switch view {
	case models.ViewPublic:
		return Partition(books).Public
	case models.ViewPersonal:
		return Partition(books).Personal
	default:
		return append([]models.BookRecord(nil), books...)
	}
}

// Featured returns the records carrying either featured flag, in input order.
func Featured(books []models.BookRecord) []models.BookRecord {
	out := make([]models.BookRecord, 0)
	for _, b := range books {
		if b.FeaturedFlag() {
			out = append(out, b)
		}
	}
	return out
}

// Summarize computes the local equivalent of the backend's /stats payload.
func Summarize(books []models.BookRecord) models.Stats {
	stats := models.Stats{Genres: make(map[string]int), Local: true}
	for _, b := range books {
		stats.TotalBooks++
		if b.IsPersonal() {
			stats.PersonalBooks++
		} else {
			stats.PublicBooks++
		}
		if b.FeaturedFlag() {
			stats.FeaturedBooks++
		}
		stats.TotalSize += b.Size()
		stats.Genres[b.DisplayGenre()]++
	}
	for g := range stats.Genres {
		stats.AvailableGenres = append(stats.AvailableGenres, g)
	}
	sort.Strings(stats.AvailableGenres)
	return stats
}
