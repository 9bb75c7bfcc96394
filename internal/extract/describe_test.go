package extract

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{"short text kept", "A short note.", 50, "A short note."},
		{"whitespace collapsed", "  Line one\n\n\tline   two ", 50, "Line one line two"},
		{"cut at word boundary", "hello world foo", 10, "hello..."},
		{"long word cut mid-word", "abcdefghijklmnop", 8, "abcde..."},
		{"runes not bytes", "ÅÄÖ åäö ÅÄÖ", 9, "ÅÄÖ åä..."},
		{"tiny limit", "hello world", 2, "he"},
		{"disabled", "hello", 0, ""},
		{"empty", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.text, tt.maxChars); got != tt.want {
				t.Errorf("Describe(%q, %d) = %q, want %q", tt.text, tt.maxChars, got, tt.want)
			}
		})
	}
}
