package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/insightlens/internal/logging"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultTimeout  = 15 * time.Second
)

// maxBodySize bounds how much of a search response is read.
const maxBodySize = 8 << 20

// Doer sends HTTP requests. *http.Client implements it; the session
// manager's client adds credentials.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Orchestrator)

func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) { o.debounce = d }
}

// WithTimeout bounds each dispatched request. A request that hits it fails
// with KindNetworkError.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithOnChange registers fn to receive a snapshot after every state change.
// fn runs without any orchestrator lock held and may call back into it,
// Close included.
func WithOnChange(fn func(State)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// Orchestrator owns the search query state.
type Orchestrator struct {
	endpoint string
	client   Doer
	debounce time.Duration
	timeout  time.Duration
	log      logging.Logger
	onChange func(State)
	timer    *Debouncer

	mu    sync.Mutex
	state State
	// gen identifies the latest committed query; responses of older
	// generations are dropped.
	gen      uint64
	inflight context.CancelFunc
	closed   bool
}

// New creates an Orchestrator that posts queries to endpoint through client.
func New(endpoint string, client Doer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		endpoint: endpoint,
		client:   client,
		debounce: DefaultDebounce,
		timeout:  DefaultTimeout,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "search")
	o.timer = NewDebouncer(o.debounce)
	return o
}

// SetQuery records the text being typed without searching.
func (o *Orchestrator) SetQuery(text string) {
	o.update(func(s *State) { s.RawQuery = text })
}

// PerformSearch commits text and schedules its dispatch after the debounce
// interval. A blank query fails immediately with KindEmptyQuery and
// supersedes any pending search.
func (o *Orchestrator) PerformSearch(text string) {
	query := strings.TrimSpace(text)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}

	o.gen++
	gen := o.gen
	o.state.RawQuery = text

	// a blank query also supersedes the pending search and its results
	if query == "" {
		o.stopLocked()
		o.state.Results = nil
		o.state.Phase = PhaseFailed
		o.state.Err = &Error{Kind: KindEmptyQuery}
		snap := o.state.clone()
		o.mu.Unlock()

		o.notify(snap)
		return
	}

	o.state.RawQuery = query
	o.state.CommittedQuery = query
	o.state.Phase = PhasePending
	o.state.Err = nil
	o.timer.DebounceThen(func() func() { return o.dispatch(gen) })
	snap := o.state.clone()
	o.mu.Unlock()

	o.notify(snap)
}

// dispatch sends the committed query of generation gen, unless a newer
// query was committed meanwhile. It runs on the debounce timer's goroutine
// and returns the change notification, if any, to deliver after it.
func (o *Orchestrator) dispatch(gen uint64) func() {
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return nil
	}
	if o.inflight != nil {
		o.inflight()
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	o.inflight = cancel
	query := o.state.CommittedQuery
	o.mu.Unlock()

	defer cancel()

	o.log.Debug(ctx, "dispatching search", "query", query, "generation", gen)
	results, err := o.fetch(ctx, query)

	if errors.Is(err, context.Canceled) {
		o.log.Debug(ctx, "search cancelled", "query", query)
		return nil
	}
	snap, ok := o.apply(gen, results, err)
	if !ok {
		return nil
	}
	return func() { o.notify(snap) }
}

func (o *Orchestrator) fetch(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{Input: encodeURIComponent(query)})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, context.Canceled
		}
		o.log.Warn(ctx, "search request failed", "query", query, "error", err)
		return nil, &Error{Kind: KindNetworkError}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, context.Canceled
		}
		return nil, &Error{Kind: KindNetworkError}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		o.log.Warn(ctx, "search rejected", "query", query, "status", resp.StatusCode)
		return nil, errorForStatus(resp.StatusCode)
	}

	var payload searchResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		o.log.Warn(ctx, "malformed search response", "status", resp.StatusCode, "error", err)
		return nil, &Error{Kind: KindUnexpected, Status: resp.StatusCode}
	}
	if len(payload.Products) == 0 {
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode}
	}

	results := make([]Result, len(payload.Products))
	for i, p := range payload.Products {
		results[i] = p.result()
	}
	return results, nil
}

// apply publishes the outcome of generation gen if it is still current.
func (o *Orchestrator) apply(gen uint64, results []Result, err error) (State, bool) {
	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		o.log.Debug(context.Background(), "discarding superseded search response", "generation", gen)
		return State{}, false
	}
	o.inflight = nil

	if err != nil {
		var serr *Error
		if !errors.As(err, &serr) {
			serr = &Error{Kind: KindUnexpected}
		}
		o.state.Results = nil
		o.state.Phase = PhaseFailed
		o.state.Err = serr
	} else {
		o.state.Results = results
		o.state.Phase = PhaseSucceeded
		o.state.Err = nil
	}
	snap := o.state.clone()
	o.mu.Unlock()

	return snap, true
}

// ClearResults returns to Idle and forgets results, error and expansion.
// A request already in flight is not cancelled and may still complete.
func (o *Orchestrator) ClearResults() {
	o.update(func(s *State) {
		s.Results = nil
		s.Phase = PhaseIdle
		s.Err = nil
		s.Expanded = nil
	})
}

// Cancel drops the pending and in-flight search while keeping the current
// results. A pending search falls back to Succeeded when results are shown
// and to Idle otherwise.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.gen++
	o.stopLocked()
	changed := o.state.Phase == PhasePending
	if changed {
		if len(o.state.Results) > 0 {
			o.state.Phase = PhaseSucceeded
		} else {
			o.state.Phase = PhaseIdle
		}
	}
	snap := o.state.clone()
	o.mu.Unlock()

	if changed {
		o.notify(snap)
	}
}

// ToggleReviewExpansion flips whether all reviews of result id are shown.
func (o *Orchestrator) ToggleReviewExpansion(id string) {
	o.update(func(s *State) {
		switch {
		case s.Expanded[id]:
			delete(s.Expanded, id)
			if len(s.Expanded) == 0 {
				s.Expanded = nil
			}
		case s.Expanded == nil:
			s.Expanded = map[string]bool{id: true}
		default:
			s.Expanded[id] = true
		}
	})
}

// VisibleReviews returns the reviews of r to display: all of them when r is
// expanded, otherwise the first CollapsedReviews.
func (o *Orchestrator) VisibleReviews(r Result) []string {
	o.mu.Lock()
	expanded := o.state.Expanded[r.ID]
	o.mu.Unlock()

	return Visible(r, expanded)
}

// Visible returns the reviews of r shown in the given expansion state.
func Visible(r Result, expanded bool) []string {
	if expanded || len(r.Reviews) <= CollapsedReviews {
		return r.Reviews
	}
	return r.Reviews[:CollapsedReviews]
}

// State returns a deep copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Close cancels the pending timer and the in-flight request and waits until
// no search is running. A change notification already being delivered may
// finish after Close returns. Later calls are no-ops.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.gen++
	o.stopLocked()
	o.mu.Unlock()

	o.timer.Stop()
}

// stopLocked cancels the debounce timer and the in-flight request.
func (o *Orchestrator) stopLocked() {
	o.timer.Cancel()
	if o.inflight != nil {
		o.inflight()
		o.inflight = nil
	}
}

func (o *Orchestrator) update(fn func(*State)) {
	o.mu.Lock()
	fn(&o.state)
	snap := o.state.clone()
	o.mu.Unlock()

	o.notify(snap)
}

func (o *Orchestrator) notify(s State) {
	if o.onChange != nil {
		o.onChange(s)
	}
}
