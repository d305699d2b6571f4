// Package sanitize strips markup from display names that arrive from bots,
// operators and provider payloads before they are stored.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every HTML element, decodes entities, drops control
// characters and collapses runs of whitespace.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
