package search

import (
	"net/url"
	"strings"
)

// uriComponentUnescaper restores the characters that url.QueryEscape
// escapes but a URI component leaves as is.
var uriComponentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent percent-encodes s the way the search endpoint expects
// its input field: spaces become %20 and the marks !'()*~-_. stay literal.
func encodeURIComponent(s string) string {
	return uriComponentUnescaper.Replace(url.QueryEscape(s))
}
