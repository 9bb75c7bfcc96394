package collection

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/readora/internal/models"
)

// DefaultLocale is used for title and author collation when none is configured.
var DefaultLocale = language.English

// Engine runs queries with a fixed collation locale. It holds no mutable state,
// so one Engine can serve concurrent callers.
type Engine struct {
	locale language.Tag
}

// NewEngine returns an Engine collating with locale.
func NewEngine(locale language.Tag) *Engine {
	return &Engine{locale: locale}
}

// NewEngineForLocale parses a BCP 47 tag such as "en" or "de-DE". An empty or
// invalid tag falls back to DefaultLocale.
func NewEngineForLocale(tag string) *Engine {
	if tag == "" {
		return NewEngine(DefaultLocale)
	}
	t, err := language.Parse(tag)
	if err != nil {
		return NewEngine(DefaultLocale)
	}
	return NewEngine(t)
}

var defaultEngine = NewEngine(DefaultLocale)

// Query filters books by search text and genre, then sorts them, using DefaultLocale.
func Query(books []models.BookRecord, params models.QueryParams) []models.BookRecord {
	return defaultEngine.Query(books, params)
}

// Query returns a new slice holding the records of books that match both the
// search text and the genre selector, stably ordered by params.Sort. The input
// is never modified.
func (e *Engine) Query(books []models.BookRecord, params models.QueryParams) []models.BookRecord {
	params = params.Normalize()
	needle := foldText(params.Search)

	out := make([]models.BookRecord, 0, len(books))
	for _, b := range books {
		if !matchesGenre(&b, params.Genre) {
			continue
		}
		if needle != "" && !matchesSearch(&b, needle) {
			continue
		}
		out = append(out, b)
	}
	e.sort(out, params.Sort)
	return out
}

func (e *Engine) sort(books []models.BookRecord, key models.SortKey) {
	switch key {
	case models.SortTitle:
		c := collate.New(e.locale)
		slices.SortStableFunc(books, func(a, b models.BookRecord) int {
			return c.CompareString(a.Title, b.Title)
		})
	case models.SortAuthor:
		c := collate.New(e.locale)
		slices.SortStableFunc(books, func(a, b models.BookRecord) int {
			return c.CompareString(a.Author, b.Author)
		})
	case models.SortSize:
		slices.SortStableFunc(books, func(a, b models.BookRecord) int {
			sa, sb := a.Size(), b.Size()
			switch {
			case sa > sb:
				return -1
			case sa < sb:
				return 1
			default:
				return 0
			}
		})
	default:
		slices.SortStableFunc(books, compareRecent)
	}
}

// compareRecent orders newest first; records without a usable created_at sort last.
func compareRecent(a, b models.BookRecord) int {
	ta, okA := a.CreatedTime()
	tb, okB := b.CreatedTime()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return tb.Compare(ta)
}

// matchesGenre compares against DisplayGenre rather than the raw genre field,
// so "Uncategorized" selects records without a genre, as listed by GroupByGenre.
func matchesGenre(b *models.BookRecord, genre string) bool {
	if genre == models.AllGenres {
		return true
	}
	return b.DisplayGenre() == genre
}

func matchesSearch(b *models.BookRecord, needle string) bool {
	for _, field := range [...]string{b.Title, b.Author, b.Description, b.Filename} {
		if field != "" && strings.Contains(foldText(field), needle) {
			return true
		}
	}
	return false
}

// foldText normalizes s to NFC and applies Unicode case folding.
func foldText(s string) string {
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}
