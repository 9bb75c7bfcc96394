// Package keyword provides ranked full-text search over book metadata.
package keyword

import "github.com/hyperjump/readora/internal/models"

// SearchOptions optional parameters for Search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Values > 1 make title matches rank higher (e.g. 3.0). Use 1.0 for no boost.
	TitleBoost float64
	// Fuzzy enables typo-tolerant matching.
	Fuzzy bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
}

// Result is a single search hit.
type Result struct {
	ID    models.BookID
	Score float64
}

// TermDictionary exposes indexed terms and their document frequencies.
type TermDictionary interface {
	Terms() (map[string]int, error)
}
