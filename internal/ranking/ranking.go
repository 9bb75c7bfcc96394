// Package ranking re-ranks keyword search hits by how well a book's title,
// author and file name match the query, with a small boost for recent records.
package ranking

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/hyperjump/readora/internal/models"
)

// MatchType represents the type of query match found.
type MatchType int

const (
	// MatchNone means only fields outside title, author and file name matched.
	MatchNone MatchType = iota
	// MatchPartial means some query terms matched.
	MatchPartial
	// MatchAllWords means every query term matched, not as a phrase.
	MatchAllWords
	// MatchPhrase means a quoted phrase or all terms in order matched the title or author.
	MatchPhrase
	// MatchExact means the title (or file name without extension) equals the query.
	MatchExact
)

// String returns a string representation of the match type.
func (m MatchType) String() string {
	switch m {
	case MatchPartial:
		return "partial"
	case MatchAllWords:
		return "all_words"
	case MatchPhrase:
		return "phrase"
	case MatchExact:
		return "exact"
	default:
		return "none"
	}
}

// MarshalText encodes the match type as its name.
func (m MatchType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a match type name. Unknown names decode as MatchNone.
func (m *MatchType) UnmarshalText(text []byte) error {
	*m = MatchNone
	for c := MatchPartial; c <= MatchExact; c++ {
		if c.String() == string(text) {
			*m = c
			break
		}
	}
	return nil
}

// Config holds the multipliers applied on top of the keyword score.
type Config struct {
	ExactMultiplier    float64
	PhraseMultiplier   float64
	AllWordsMultiplier float64
	PartialMultiplier  float64
	NoneMultiplier     float64

	RecencyEnabled         bool
	Recency24hMultiplier   float64
	RecencyWeekMultiplier  float64
	RecencyMonthMultiplier float64
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		ExactMultiplier:    1.5,
		PhraseMultiplier:   1.3,
		AllWordsMultiplier: 1.0,
		PartialMultiplier:  0.7,
		NoneMultiplier:     0.5,

		RecencyEnabled:         true,
		Recency24hMultiplier:   1.2,
		RecencyWeekMultiplier:  1.1,
		RecencyMonthMultiplier: 1.05,
	}
}

// Query is the analyzed form of a search string.
type Query struct {
	Original string
	// Terms are lowercased tokens outside quotes; negated terms ("-x") are dropped.
	Terms []string
	// Phrases are lowercased quoted strings.
	Phrases []string
}

var phraseRegex = regexp.MustCompile(`"([^"]+)"`)

// Analyze parses a query string.
func Analyze(query string) *Query {
	q := &Query{Original: query}
	for _, m := range phraseRegex.FindAllStringSubmatch(query, -1) {
		if p := strings.ToLower(strings.TrimSpace(m[1])); p != "" {
			q.Phrases = append(q.Phrases, p)
		}
	}
	for _, word := range strings.Fields(phraseRegex.ReplaceAllString(query, " ")) {
		if strings.HasPrefix(word, "-") || strings.EqualFold(word, "AND") || strings.EqualFold(word, "OR") {
			continue
		}
		if t := normalizeToken(word); t != "" {
			q.Terms = append(q.Terms, t)
		}
	}
	return q
}

// tokens returns the terms used for matching: terms plus the words of every phrase.
func (q *Query) tokens() []string {
	out := append([]string(nil), q.Terms...)
	for _, p := range q.Phrases {
		out = append(out, strings.Fields(p)...)
	}
	return out
}

func normalizeToken(token string) string {
	return strings.TrimFunc(strings.ToLower(token), func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '_'
	})
}

// NormalizeFilename lowercases a file name, drops its extension and replaces
// separators with spaces.
func NormalizeFilename(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	return normalizeText(filename)
}

func normalizeText(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

func allTermsMatch(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func anyTermMatches(terms []string, text string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func termsInOrder(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	last := 0
	for _, t := range terms {
		pos := strings.Index(text[last:], t)
		if pos == -1 {
			return false
		}
		last += pos + len(t)
	}
	return true
}

// Hit is a ranked search result.
type Hit struct {
	Score float64           `json:"score"`
	Match MatchType         `json:"match"`
	Book  models.BookRecord `json:"book"`
}

// Ranker applies Config to search hits.
type Ranker struct {
	config *Config
	now    func() time.Time
}

// NewRanker creates a Ranker. A nil config uses DefaultConfig.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Ranker{config: config, now: time.Now}
}

// Classify returns the best match of q against b's title, author and file name.
func (r *Ranker) Classify(q *Query, b *models.BookRecord) MatchType {
	title := normalizeText(b.Title)
	author := normalizeText(b.Author)
	filename := NormalizeFilename(b.Filename)
	whole := normalizeText(q.Original)

	if whole != "" && (title == whole || (filename != "" && filename == whole)) {
		return MatchExact
	}
	for _, p := range q.Phrases {
		p = normalizeText(p)
		if strings.Contains(title, p) || strings.Contains(author, p) {
			return MatchPhrase
		}
	}
	tokens := q.tokens()
	for i, t := range tokens {
		tokens[i] = normalizeText(t)
	}
	for _, field := range []string{title, author} {
		if allTermsMatch(tokens, field) {
			if len(tokens) > 1 && termsInOrder(tokens, field) {
				return MatchPhrase
			}
			return MatchAllWords
		}
	}
	combined := title + " " + author + " " + filename
	switch {
	case allTermsMatch(tokens, combined):
		return MatchAllWords
	case anyTermMatches(tokens, combined):
		return MatchPartial
	}
	return MatchNone
}

func (r *Ranker) matchMultiplier(m MatchType) float64 {
	switch m {
	case MatchExact:
		return r.config.ExactMultiplier
	case MatchPhrase:
		return r.config.PhraseMultiplier
	case MatchAllWords:
		return r.config.AllWordsMultiplier
	case MatchPartial:
		return r.config.PartialMultiplier
	default:
		return r.config.NoneMultiplier
	}
}

func (r *Ranker) recencyMultiplier(b *models.BookRecord) float64 {
	if !r.config.RecencyEnabled {
		return 1.0
	}
	created, ok := b.CreatedTime()
	if !ok {
		return 1.0
	}
	switch age := r.now().Sub(created); {
	case age < 0:
		return 1.0
	case age < 24*time.Hour:
		return r.config.Recency24hMultiplier
	case age < 7*24*time.Hour:
		return r.config.RecencyWeekMultiplier
	case age < 30*24*time.Hour:
		return r.config.RecencyMonthMultiplier
	}
	return 1.0
}

// ReRank scores every hit against query and returns them best first. Hits
// with equal scores keep their input order.
func (r *Ranker) ReRank(query string, hits []Hit) []Hit {
	q := Analyze(query)
	out := make([]Hit, len(hits))
	for i, h := range hits {
		h.Match = r.Classify(q, &h.Book)
		h.Score *= r.matchMultiplier(h.Match) * r.recencyMultiplier(&h.Book)
		out[i] = h
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
