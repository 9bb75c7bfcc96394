package extract

import (
	"fmt"
	"regexp"
)

// odtContentPath is the path to the document body inside an OpenDocument zip.
const odtContentPath = "content.xml"

// odtBlock matches headings and paragraphs. They do not nest in body text,
// so the first closing tag ends the block.
var odtBlock = regexp.MustCompile(`(?s)<text:(?:p|h)(?:\s[^>]*[^/])?>(.*?)</text:(?:p|h)>`)

// extractODT returns one line per paragraph or heading of an .odt, in document order.
func extractODT(content []byte) (string, error) {
	zr, err := openZip(content, "ODT")
	if err != nil {
		return "", err
	}
	body, err := readZipEntry(zr, odtContentPath)
	if err != nil {
		return "", fmt.Errorf("extract ODT: %w", err)
	}
	if body == nil {
		return "", fmt.Errorf("extract ODT: %s not found", odtContentPath)
	}
	return joinBlocks(odtBlock, string(body)), nil
}
