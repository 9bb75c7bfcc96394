package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/readora/internal/models"
)

// textFields are the analyzed fields a query runs against.
var textFields = []string{"title", "author", "description", "filename"}

// bookDoc is what gets indexed for a record.
type bookDoc struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	Genre       string `json:"genre"`
	Library     string `json:"library"`
}

func newBookDoc(b *models.BookRecord) bookDoc {
	library := models.PublicLibraryType
	if b.IsPersonal() {
		library = models.PersonalLibraryType
	}
	return bookDoc{
		Title:       b.Title,
		Author:      b.DisplayAuthor(),
		Description: b.Description,
		Filename:    b.Filename,
		Genre:       b.DisplayGenre(),
		Library:     library,
	}
}

// BookIndex is a Bleve index of book metadata.
type BookIndex struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so author names and
	// title words match as typed.
	textFieldMapping.Analyzer = standard.Name
	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt("genre", exact)
	docMapping.AddFieldMappingsAt("library", exact)

	im.AddDocumentMapping("book", docMapping)
	im.DefaultType = "book"
	im.DefaultMapping = docMapping
	return im
}

// NewBookIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index. If the mapping changes, remove the index directory.
func NewBookIndex(path string) (*BookIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &BookIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BookIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BookIndex{index: index}, nil
}

// Index adds or replaces one record.
func (b *BookIndex) Index(ctx context.Context, book *models.BookRecord) error {
	if book.ID == "" {
		return fmt.Errorf("cannot index a book without id")
	}
	return b.index.Index(string(book.ID), newBookDoc(book))
}

// Rebuild replaces the index contents with books in a single batch.
// Records without an id are skipped; for duplicate ids the last one wins.
func (b *BookIndex) Rebuild(ctx context.Context, books []models.BookRecord) error {
	existing, err := b.allIDs()
	if err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range existing {
		batch.Delete(id)
	}
	for i := range books {
		if books[i].ID == "" {
			continue
		}
		if err := batch.Index(string(books[i].ID), newBookDoc(&books[i])); err != nil {
			return fmt.Errorf("failed to index book %s: %w", books[i].ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Batch(batch)
}

func (b *BookIndex) allIDs() ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search runs query over title, author, description and filename and returns up
// to limit results, best first. Documents matching only some of the query terms
// are penalized by the squared share of terms they match.
func (b *BookIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	titleBoost := 1.0
	fuzzy := false
	fuzziness := 2
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzy = opts.Fuzzy
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return []Result{}, nil
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	fieldQueries := make([]blevequery.Query, 0, len(textFields))
	for _, field := range textFields {
		boost := 1.0
		if field == "title" {
			boost = titleBoost
		}
		fieldQueries = append(fieldQueries, b.fieldQuery(query, terms, field, boost, fuzzy, fuzziness))
	}
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fieldQueries...))
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, terms, reqSize, fuzzy, fuzziness)
	}

	merged := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		score := hit.Score
		if len(terms) > 1 {
			matched := coverage[hit.ID]
			if matched == 0 {
				matched = 1
			}
			share := float64(matched) / float64(len(terms))
			score *= share * share
		}
		merged = append(merged, Result{ID: models.BookID(hit.ID), Score: score})
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (b *BookIndex) fieldQuery(query string, terms []string, field string, boost float64, fuzzy bool, fuzziness int) blevequery.Query {
	if !fuzzy {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many distinct query terms each document matches.
func (b *BookIndex) termCoverage(ctx context.Context, terms []string, reqSize int, fuzzy bool, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		perField := make([]blevequery.Query, 0, len(textFields))
		for _, field := range textFields {
			perField = append(perField, b.fieldQuery(term, []string{term}, field, 1, fuzzy, fuzziness))
		}
		req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(perField...))
		req.Size = reqSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// tokenizeQuery splits query into lowercase terms, dropping duplicates.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// Delete removes a record from the index.
func (b *BookIndex) Delete(ctx context.Context, id models.BookID) error {
	return b.index.Delete(string(id))
}

// DocCount returns the number of indexed records.
func (b *BookIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Terms returns every indexed term of the text fields with its document
// frequency summed across fields.
func (b *BookIndex) Terms() (map[string]int, error) {
	terms := make(map[string]int)
	for _, field := range textFields {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s terms: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			terms[entry.Term] += int(entry.Count)
		}
		_ = dict.Close()
	}
	return terms, nil
}

// Close closes the Bleve index.
func (b *BookIndex) Close() error {
	return b.index.Close()
}
