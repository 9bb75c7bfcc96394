package keyword

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion is a candidate replacement for a term that is not in the index.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker proposes "did you mean" queries from the indexed vocabulary.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int

	mu    sync.RWMutex
	terms map[string]int
	valid bool
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores terms found in fewer documents than f.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions caps the suggestions returned per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker reading terms from dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached vocabulary; the next call reloads it.
// Call it after the index is rebuilt.
func (s *SpellChecker) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *SpellChecker) vocabulary() (map[string]int, error) {
	s.mu.RLock()
	if s.valid {
		terms := s.terms
		s.mu.RUnlock()
		return terms, nil
	}
	s.mu.RUnlock()

	terms, err := s.dictionary.Terms()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.terms, s.valid = terms, true
	s.mu.Unlock()
	return terms, nil
}

// Suggest returns known terms within the edit distance of term, best first.
// Closer and more frequent terms rank higher.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	terms, err := s.vocabulary()
	if err != nil {
		return nil
	}
	term = strings.ToLower(term)
	termLen := len([]rune(term))

	var out []Suggestion
	for candidate, freq := range terms {
		if candidate == term || freq < s.minFreq {
			continue
		}
		if abs(len([]rune(candidate))-termLen) > s.maxDistance {
			continue
		}
		d := editDistance(term, candidate)
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      candidate,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// SuggestQuery rewrites query with the best suggestion for every unknown
// term. ok is false when nothing was changed.
func (s *SpellChecker) SuggestQuery(query string) (corrected string, ok bool) {
	terms, err := s.vocabulary()
	if err != nil {
		return query, false
	}
	words := tokenizeQuery(query)
	for i, w := range words {
		if _, known := terms[w]; known {
			continue
		}
		if sugg := s.Suggest(w); len(sugg) > 0 {
			words[i] = sugg[0].Term
			ok = true
		}
	}
	if !ok {
		return query, false
	}
	return strings.Join(words, " "), true
}

// editDistance is the optimal string alignment distance: insertions,
// deletions, substitutions and adjacent transpositions each cost one.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
