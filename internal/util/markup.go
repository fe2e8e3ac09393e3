package util

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reBlockTag  = regexp.MustCompile(`(?i)</?(?:br|p|div|li|ul|ol|tr|td|th|table|h[1-6])\b[^>]*>`)
	reEntity    = regexp.MustCompile(`&(?:#\d+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)
	reTag       = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	reTagOrOpen = regexp.MustCompile(`<[a-zA-Z/!]`)
)

// StripMarkup removes HTML tags and entities while keeping inner text, then
// collapses whitespace. Block-level tags become spaces so adjacent cells or
// lines do not run together.
func StripMarkup(input string) string {
	if !reTagOrOpen.MatchString(input) && !reEntity.MatchString(input) {
		return NormalizeSpaces(input)
	}

	spaced := reBlockTag.ReplaceAllString(input, " ")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return NormalizeSpaces(reTag.ReplaceAllString(spaced, " "))
	}
	doc.Find("script,style").Remove()

	text := doc.Text()
	// Double-escaped markup survives one decode pass.
	text = reTag.ReplaceAllString(text, " ")
	text = reEntity.ReplaceAllString(text, " ")
	return NormalizeSpaces(text)
}

// HasMarkup reports whether a value still carries tags or entities.
func HasMarkup(input string) bool {
	return reTag.MatchString(input) || reEntity.MatchString(input)
}
