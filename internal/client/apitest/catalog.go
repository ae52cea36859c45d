package apitest

import (
	"slices"
	"strings"
)

// Catalog is the product set served by CatalogHandler, in the wire format
// of the search endpoint.
var Catalog = []map[string]any{
	{
		"id":                1,
		"name":              "Pixel 8 phone",
		"summary_text":      "Great camera, average battery life.",
		"reviews":           []string{"Camera is superb", "Battery drains fast", "Screen is bright", "Fast charging works"},
		"extracted_aspects": []string{"camera", "battery", "screen"},
		"image":             "https://img.example/pixel8.png",
		"price":             699.0,
	},
	{
		"id":                2,
		"name":              "Galaxy S24 phone",
		"summary_text":      "Solid build, excellent display.",
		"reviews":           []string{"Display is stunning"},
		"extracted_aspects": []string{"display", "build"},
		"price":             799.0,
	},
	{
		"id":                3,
		"name":              "Noise cancelling headphones",
		"reviews":           []string{"Comfortable", "Great ANC"},
		"extracted_aspects": []string{"comfort", "noise cancelling"},
	},
}

// CatalogHandler answers with the catalog products whose name contains
// every word of the query as a whole word, ignoring case. A single match is
// sent as a bare object, several as an array.
func CatalogHandler(query string) SearchResponse {
	var matches []map[string]any
	for _, p := range Catalog {
		if matchesWords(p["name"].(string), query) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return SearchResponse{Body: map[string]any{"products": []any{}, "total_count": 0}}
	case 1:
		return SearchResponse{Body: map[string]any{"products": matches[0], "total_count": 1}}
	default:
		return SearchResponse{Body: map[string]any{"products": matches, "total_count": len(matches)}}
	}
}

func matchesWords(name, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return false
	}
	nameWords := strings.Fields(strings.ToLower(name))
	for _, w := range words {
		if !slices.Contains(nameWords, w) {
			return false
		}
	}
	return true
}
