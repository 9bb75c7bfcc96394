package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// maxXMLPart bounds how much of a single zip entry is read.
const maxXMLPart = 64 << 20

var (
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipEntry returns the bytes of name, or nil when the entry does not exist.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxXMLPart))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// blockText turns the inner XML of a paragraph into a single line of text.
func blockText(inner string) string {
	text := html.UnescapeString(anyTag.ReplaceAllString(inner, ""))
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// joinBlocks extracts every block matched by re (submatch 1 is the inner XML)
// and joins the non-empty ones with newlines, in document order.
func joinBlocks(re *regexp.Regexp, xml string) string {
	var lines []string
	for _, m := range re.FindAllStringSubmatch(xml, -1) {
		if line := blockText(m[1]); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
