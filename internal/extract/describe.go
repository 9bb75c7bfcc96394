package extract

import (
	"strings"
	"unicode"
)

// Describe turns extracted text into a short description: whitespace runs are
// collapsed to single spaces and the result is cut to at most maxChars runes,
// preferring a word boundary, with "..." appended when cut. maxChars <= 0
// returns "".
func Describe(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	const ellipsis = "..."
	if maxChars <= len(ellipsis) {
		return string(runes[:maxChars])
	}
	cut := maxChars - len(ellipsis)
	// back up to the last space if it keeps at least half of the allowance
	for i := cut; i > cut/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " ") + ellipsis
}
