// Package cli renders collection views for the Readora command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/models"
	"github.com/hyperjump/readora/internal/ranking"
	"github.com/hyperjump/readora/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is a human-readable table (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per record.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates s. An empty string selects OutputText.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", &models.ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q (use text, compact or json)", s)}
	}
}

const titleWidth = 48

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func library(b *models.BookRecord) string {
	if b.IsPersonal() {
		return models.PersonalLibraryType
	}
	return models.PublicLibraryType
}

func added(b *models.BookRecord) string {
	if t, ok := b.CreatedTime(); ok {
		return t.Format("2006-01-02")
	}
	return "-"
}

func size(b *models.BookRecord) string {
	if b.FileSize == nil {
		return "-"
	}
	return utils.FormatBytes(*b.FileSize)
}

func bookRow(b *models.BookRecord) []string {
	featured := ""
	if b.FeaturedFlag() {
		featured = "*"
	}
	return []string{
		b.ID.String(),
		utils.Truncate(b.Title, titleWidth),
		b.DisplayAuthor(),
		b.DisplayGenre(),
		library(b),
		featured,
		size(b),
		added(b),
	}
}

var bookHeader = []string{"ID", "Title", "Author", "Genre", "Library", "Featured", "Size", "Added"}

func compactLine(b *models.BookRecord) string {
	line := fmt.Sprintf("%s\t%s by %s [%s] (%s)", b.ID, b.Title, b.DisplayAuthor(), b.DisplayGenre(), library(b))
	if b.FeaturedFlag() {
		line += " *"
	}
	return line
}

// WriteBooks writes books to w in the given format.
func WriteBooks(w io.Writer, books []models.BookRecord, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, struct {
			Count int                 `json:"count"`
			Books []models.BookRecord `json:"books"`
		}{len(books), books})
	case OutputCompact:
		for i := range books {
			fmt.Fprintln(w, compactLine(&books[i]))
		}
		return nil
	default:
		if len(books) == 0 {
			fmt.Fprintln(w, "No books.")
			return nil
		}
		table := newTable(w, bookHeader...)
		for i := range books {
			table.Append(bookRow(&books[i]))
		}
		table.Render()
		fmt.Fprintf(w, "\n%d book(s)\n", len(books))
		return nil
	}
}

// WriteGroups writes genre groups to w in the given format. Text output lists
// genres alphabetically with their records.
func WriteGroups(w io.Writer, groups []collection.GenreGroup, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, struct {
			Genres []string                `json:"genres"`
			Groups []collection.GenreGroup `json:"groups"`
		}{collection.AvailableGenres(groups), groups})
	case OutputCompact:
		for _, g := range sortedGroups(groups) {
			fmt.Fprintf(w, "%s\t%d\n", g.Genre, len(g.Books))
		}
		return nil
	default:
		if len(groups) == 0 {
			fmt.Fprintln(w, "No genres.")
			return nil
		}
		for _, g := range sortedGroups(groups) {
			fmt.Fprintf(w, "%s (%d)\n", g.Genre, len(g.Books))
			for i := range g.Books {
				b := &g.Books[i]
				fmt.Fprintf(w, "  %s  %s, %s\n", b.ID, utils.Truncate(b.Title, titleWidth), b.DisplayAuthor())
			}
		}
		return nil
	}
}

func sortedGroups(groups []collection.GenreGroup) []collection.GenreGroup {
	out := append([]collection.GenreGroup(nil), groups...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Genre < out[j].Genre })
	return out
}

// WriteStats writes aggregate counts to w in the given format.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, stats)
	case OutputCompact:
		fmt.Fprintf(w, "total=%d public=%d personal=%d featured=%d size=%d\n",
			stats.TotalBooks, stats.PublicBooks, stats.PersonalBooks, stats.FeaturedBooks, stats.TotalSize)
		return nil
	default:
		table := newTable(w, "Metric", "Value")
		table.Append([]string{"Total books", strconv.Itoa(stats.TotalBooks)})
		table.Append([]string{"Public books", strconv.Itoa(stats.PublicBooks)})
		table.Append([]string{"Personal documents", strconv.Itoa(stats.PersonalBooks)})
		table.Append([]string{"Featured", strconv.Itoa(stats.FeaturedBooks)})
		table.Append([]string{"Total size", utils.FormatBytes(stats.TotalSize)})
		table.Render()
		if len(stats.Genres) > 0 {
			genres := make([]string, 0, len(stats.Genres))
			for g := range stats.Genres {
				genres = append(genres, g)
			}
			sort.Strings(genres)
			fmt.Fprintln(w)
			gt := newTable(w, "Genre", "Books")
			for _, g := range genres {
				gt.Append([]string{g, strconv.Itoa(stats.Genres[g])})
			}
			gt.Render()
		}
		if stats.Local {
			fmt.Fprintln(w, "\n(computed locally; the backend stats endpoint was unavailable)")
		}
		return nil
	}
}

// WriteFindResults writes ranked search results to w in the given format.
// suggestion is shown when non-empty.
func WriteFindResults(w io.Writer, query string, hits []ranking.Hit, suggestion string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, struct {
			Query      string    `json:"query"`
			Results    []ranking.Hit `json:"results"`
			Suggestion string    `json:"suggestion,omitempty"`
		}{query, hits, suggestion})
	case OutputCompact:
		for i := range hits {
			fmt.Fprintf(w, "%.4f\t%s\n", hits[i].Score, compactLine(&hits[i].Book))
		}
		return nil
	default:
		fmt.Fprintf(w, "Found %d result(s) for %q\n", len(hits), query)
		if suggestion != "" {
			fmt.Fprintf(w, "Did you mean: %s\n", suggestion)
		}
		if len(hits) == 0 {
			return nil
		}
		fmt.Fprintln(w)
		table := newTable(w, "Rank", "Score", "Match", "ID", "Title", "Author", "Genre")
		for i := range hits {
			b := &hits[i].Book
			table.Append([]string{
				strconv.Itoa(i + 1),
				strconv.FormatFloat(hits[i].Score, 'f', 4, 64),
				hits[i].Match.String(),
				b.ID.String(),
				utils.Truncate(b.Title, titleWidth),
				b.DisplayAuthor(),
				b.DisplayGenre(),
			})
		}
		table.Render()
		return nil
	}
}
