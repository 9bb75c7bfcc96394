package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func openPDF(content []byte) (*pdf.Reader, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return r, nil
}

// extractPDF returns the plain text of up to maxPages pages (0 for all), one
// page per line group.
func extractPDF(content []byte, maxPages int) (string, error) {
	r, err := openPDF(content)
	if err != nil {
		return "", err
	}
	numPages := r.NumPage()
	if maxPages > 0 && numPages > maxPages {
		numPages = maxPages
	}
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// PageCount returns the number of pages of a PDF document.
func PageCount(content []byte) (int, error) {
	r, err := openPDF(content)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}
