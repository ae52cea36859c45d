package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// CollapsedReviews is how many reviews a collapsed result shows.
const CollapsedReviews = 3

const unknownProduct = "Unknown Product"

// Result is one normalized product of a search response.
type Result struct {
	ID               string
	ProductName      string
	Summary          string
	Reviews          []string
	ExtractedAspects []string
	Image            string
	Price            *float64
}

func (r Result) clone() Result {
	r.Reviews = slices.Clone(r.Reviews)
	r.ExtractedAspects = slices.Clone(r.ExtractedAspects)
	if r.Price != nil {
		p := *r.Price
		r.Price = &p
	}
	return r
}

// Phase is the lifecycle position of the current query.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// State is a snapshot of the orchestrator. Err is nil unless Phase is
// PhaseFailed. Expanded holds only the results whose reviews are expanded.
type State struct {
	RawQuery       string
	CommittedQuery string
	Results        []Result
	Phase          Phase
	Err            *Error
	Expanded       map[string]bool
}

func (s State) clone() State {
	out := s
	if s.Results != nil {
		out.Results = make([]Result, len(s.Results))
		for i, r := range s.Results {
			out.Results[i] = r.clone()
		}
	}
	if s.Err != nil {
		e := *s.Err
		out.Err = &e
	}
	out.Expanded = maps.Clone(s.Expanded)
	return out
}

type searchRequest struct {
	Input string `json:"input"`
}

type searchResponse struct {
	Products productList `json:"products"`
	Message  string      `json:"message"`
}

// productList accepts either a single product object or an array of them.
type productList []product

func (l *productList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = nil
		return nil
	case b[0] == '[':
		var items []product
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	case b[0] == '{':
		var p product
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*l = productList{p}
		return nil
	default:
		return fmt.Errorf("products: unexpected JSON %.20q", b)
	}
}

type product struct {
	ID               json.RawMessage `json:"id"`
	Name             string          `json:"name"`
	SummaryText      string          `json:"summary_text"`
	Reviews          json.RawMessage `json:"reviews"`
	ExtractedAspects json.RawMessage `json:"extracted_aspects"`
	Image            string          `json:"image"`
	Price            json.RawMessage `json:"price"`
}

func (p product) result() Result {
	r := Result{
		ID:               rawString(p.ID),
		ProductName:      p.Name,
		Summary:          p.SummaryText,
		Reviews:          stringList(p.Reviews),
		ExtractedAspects: stringList(p.ExtractedAspects),
		Image:            p.Image,
		Price:            rawNumber(p.Price),
	}
	if r.ProductName == "" {
		r.ProductName = unknownProduct
	}
	return r
}

// rawString renders a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawNumber reads a price sent either as a number or as a decimal string.
func rawNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// stringList keeps the string elements of a JSON array; anything else
// yields an empty list.
func stringList(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
