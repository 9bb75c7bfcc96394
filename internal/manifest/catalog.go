package manifest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/readora/internal/collection"
	"github.com/hyperjump/readora/internal/models"
)

const (
	catalogSheet = "Books"
	genresSheet  = "Genres"
)

var catalogHeader = []interface{}{
	"ID", "Title", "Author", "Genre", "Library", "Featured", "Size", "Created", "Filename", "Description",
}

// WriteCatalog writes books, in the given order, as an .xlsx workbook with a
// "Books" sheet and a "Genres" sheet holding per-genre counts.
func WriteCatalog(w io.Writer, books []models.BookRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(catalogSheet, "A1", &catalogHeader); err != nil {
		return err
	}
	for i := range books {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := catalogRow(&books[i])
		if err := f.SetSheetRow(catalogSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := styleHeader(f, catalogSheet, len(catalogHeader)); err != nil {
		return err
	}
	if err := f.SetColWidth(catalogSheet, "B", "C", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(catalogSheet, "J", "J", 60); err != nil {
		return err
	}

	if _, err := f.NewSheet(genresSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(genresSheet, "A1", &[]interface{}{"Genre", "Books"}); err != nil {
		return err
	}
	for i, g := range collection.GroupByGenre(books) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(genresSheet, cell, &[]interface{}{g.Genre, len(g.Books)}); err != nil {
			return err
		}
	}
	if err := styleHeader(f, genresSheet, 2); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func catalogRow(b *models.BookRecord) []interface{} {
	library := models.PublicLibraryType
	if b.IsPersonal() {
		library = models.PersonalLibraryType
	}
	var size interface{} = ""
	if b.FileSize != nil {
		size = *b.FileSize
	}
	var created interface{} = ""
	if t, ok := b.CreatedTime(); ok {
		created = t.UTC().Format("2006-01-02 15:04:05")
	} else if b.CreatedAt != nil {
		created = b.CreatedAt.Raw
	}
	return []interface{}{
		b.ID.String(), b.Title, b.DisplayAuthor(), b.DisplayGenre(), library,
		b.FeaturedFlag(), size, created, b.Filename, b.Description,
	}
}

func styleHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
