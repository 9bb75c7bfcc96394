// Package manifest reads spreadsheet manifests for bulk uploads and writes
// collection views out as workbooks.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/readora/internal/models"
)

// Column names recognised in the header row, after lower-casing and
// replacing spaces with underscores.
const (
	ColTitle           = "title"
	ColAuthor          = "author"
	ColDescription     = "description"
	ColGenre           = "genre"
	ColLanguage        = "language"
	ColCopyrightStatus = "copyright_status"
	ColPublic          = "public"
	ColFile            = "file"
)

// Entry is one row of a manifest.
type Entry struct {
	Row             int // 1-based sheet row
	Title           string
	Author          string
	Description     string
	Genre           string
	Language        string
	CopyrightStatus string
	Public          bool
	// File is an absolute path, or relative to the working directory when the
	// manifest was read from a stream.
	File string
}

// UploadInput builds the create payload of the entry reading from file.
func (e *Entry) UploadInput(file io.Reader) *models.UploadInput {
	return &models.UploadInput{
		Title:           e.Title,
		Author:          e.Author,
		Description:     e.Description,
		Genre:           e.Genre,
		CopyrightStatus: e.CopyrightStatus,
		Language:        e.Language,
		IsPublic:        e.Public,
		FileName:        filepath.Base(e.File),
		File:            file,
	}
}

// RowError reports a row that was skipped.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Manifest is a parsed manifest: the usable entries and the rows that were rejected.
type Manifest struct {
	Sheet   string
	Entries []Entry
	Invalid []*RowError
}

// Read parses the .xlsx manifest at path. Relative file paths are resolved
// against the manifest's directory.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return ReadFrom(f, filepath.Dir(abs))
}

// ReadFrom parses a manifest workbook from r. The "Books" sheet is used when
// present, otherwise the first sheet. Relative file paths are joined to baseDir.
func ReadFrom(r io.Reader, baseDir string) (*Manifest, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer wb.Close()

	sheet := pickSheet(wb.GetSheetList())
	if sheet == "" {
		return nil, fmt.Errorf("manifest has no sheets")
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	cols := headerIndex(rows[0])
	for _, required := range []string{ColTitle, ColFile} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("sheet %q has no %q column", sheet, required)
		}
	}

	m := &Manifest{Sheet: sheet}
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if isBlank(row) {
			continue
		}
		e := Entry{
			Row:             rowNum,
			Title:           cell(ColTitle),
			Author:          cell(ColAuthor),
			Description:     cell(ColDescription),
			Genre:           cell(ColGenre),
			Language:        cell(ColLanguage),
			CopyrightStatus: cell(ColCopyrightStatus),
			Public:          parseBool(cell(ColPublic)),
			File:            cell(ColFile),
		}
		if e.Title == "" {
			m.Invalid = append(m.Invalid, &RowError{Row: rowNum, Err: &models.ValidationError{Field: ColTitle, Message: "title is required"}})
			continue
		}
		if e.File == "" {
			m.Invalid = append(m.Invalid, &RowError{Row: rowNum, Err: &models.ValidationError{Field: ColFile, Message: "a file is required"}})
			continue
		}
		if !filepath.IsAbs(e.File) && baseDir != "" {
			e.File = filepath.Join(baseDir, e.File)
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

func pickSheet(sheets []string) string {
	for _, s := range sheets {
		if strings.EqualFold(s, catalogSheet) {
			return s
		}
	}
	if len(sheets) == 0 {
		return ""
	}
	return sheets[0]
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "x", "public":
		return true
	}
	return false
}
