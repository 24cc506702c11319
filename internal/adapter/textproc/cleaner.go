// Package textproc normalizes extracted document text before chunking.
package textproc

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	controlChars   = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	punctuationRun = regexp.MustCompile(`([.!?]){2,}`)
	pageNumberLine = regexp.MustCompile(`\n\s*\d+\s*\n`)
	pageLabel      = regexp.MustCompile(`(?i)Page \d+`)
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// CleanText collapses whitespace, strips control characters,
// normalizes smart quotes and collapses repeated sentence punctuation.
// Chunk offsets are taken against the cleaned text, so cleaning must
// happen exactly once, before chunking.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = controlChars.ReplaceAllString(text, "")
	text = quoteReplacer.Replace(text)
	text = punctuationRun.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// RemovePageNumbers strips standalone page-number lines and "Page N"
// labels that OCR and PDF extraction commonly leave behind.
func RemovePageNumbers(text string) string {
	text = pageNumberLine.ReplaceAllString(text, "\n")
	return pageLabel.ReplaceAllString(text, "")
}

// MeaningfulText cleans text and reports whether enough content
// remains to be worth indexing: at least minLength runes and five
// words. Returns the cleaned text and false when the document is
// effectively empty.
func MeaningfulText(text string, minLength int) (string, bool) {
	cleaned := CleanText(text)
	if len([]rune(cleaned)) < minLength {
		return cleaned, false
	}
	if len(strings.Fields(cleaned)) < 5 {
		return cleaned, false
	}
	return cleaned, true
}
