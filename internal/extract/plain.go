package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// utf8BOM is stripped from plain text files saved by some Windows editors.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain returns content as string, validating it is valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
