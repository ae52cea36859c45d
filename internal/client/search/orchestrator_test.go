package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/insightlens/internal/client/apitest"
	"github.com/dmitrijs2005/insightlens/internal/client/credentials"
	"github.com/dmitrijs2005/insightlens/internal/client/session"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

// testClient returns a client whose idle connections are closed with the
// test, so no transport goroutine outlives it.
func testClient(t *testing.T) *http.Client {
	t.Helper()
	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)
	return &http.Client{Transport: tr}
}

func newTestOrchestrator(t *testing.T, srv *apitest.Server, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithDebounce(testDebounce)}, opts...)
	o := New(srv.SearchURL(), testClient(t), opts...)
	t.Cleanup(o.Close)
	return o
}

func waitPhase(t *testing.T, o *Orchestrator, phase Phase) State {
	t.Helper()
	require.Eventually(t, func() bool { return o.State().Phase == phase }, 2*time.Second, 5*time.Millisecond)
	return o.State()
}

func names(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ProductName
	}
	return out
}

func TestPerformSearch_CoalescesRapidCalls(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv, WithDebounce(100*time.Millisecond))

	for _, q := range []string{"p", "ph", "pho", "phon", "phone"} {
		o.PerformSearch(q)
	}
	require.Equal(t, PhasePending, o.State().Phase)

	st := waitPhase(t, o, PhaseSucceeded)
	require.Equal(t, 1, srv.SearchCalls())
	require.Equal(t, []string{"phone"}, srv.SearchQueries())
	require.Equal(t, []string{"Pixel 8 phone", "Galaxy S24 phone"}, names(st.Results))
	require.Equal(t, "phone", st.CommittedQuery)
	require.Nil(t, st.Err)
}

func TestPerformSearch_TrimsAndEncodesQuery(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("  noise cancelling  ")
	st := waitPhase(t, o, PhaseSucceeded)

	require.Equal(t, []string{"noise cancelling"}, srv.SearchQueries())
	require.Equal(t, "noise cancelling", st.RawQuery)
	require.Equal(t, "noise cancelling", st.CommittedQuery)
}

func TestPerformSearch_EmptyQuery(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("   ")

	st := o.State()
	require.Equal(t, PhaseFailed, st.Phase)
	require.ErrorIs(t, st.Err, ErrEmptyQuery)
	require.Empty(t, st.Results)

	time.Sleep(3 * testDebounce)
	require.Zero(t, srv.SearchCalls())
}

func TestPerformSearch_EmptyQuerySupersedesPending(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv, WithDebounce(50*time.Millisecond))

	o.PerformSearch("phone")
	o.PerformSearch(" ")

	time.Sleep(150 * time.Millisecond)
	require.Zero(t, srv.SearchCalls())
	require.ErrorIs(t, o.State().Err, ErrEmptyQuery)
}

func TestPerformSearch_NoProducts(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("phone")
	waitPhase(t, o, PhaseSucceeded)

	srv.SetSearchHandler(func(string) apitest.SearchResponse {
		return apitest.SearchResponse{Body: map[string]any{"products": []any{}}}
	})
	o.PerformSearch("phone")

	st := waitPhase(t, o, PhaseFailed)
	require.ErrorIs(t, st.Err, ErrNotFound)
	require.Empty(t, st.Results, "a failure must clear earlier results")
}

func TestPerformSearch_SingleProductObject(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("headphones")
	st := waitPhase(t, o, PhaseSucceeded)

	require.Len(t, st.Results, 1)
	r := st.Results[0]
	require.Equal(t, "3", r.ID)
	require.Equal(t, "Noise cancelling headphones", r.ProductName)
	require.Equal(t, "", r.Summary)
	require.Nil(t, r.Price)
	require.Equal(t, []string{"comfort", "noise cancelling"}, r.ExtractedAspects)
}

func TestPerformSearch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   *Error
	}{
		{"bad request", http.StatusBadRequest, map[string]string{"message": "bad"}, ErrBadRequest},
		{"not found", http.StatusNotFound, map[string]string{"message": "none"}, ErrNotFound},
		{"server error", http.StatusInternalServerError, nil, ErrServerError},
		{"teapot", http.StatusTeapot, nil, &Error{Kind: KindUnexpected, Status: http.StatusTeapot}},
		{"bad gateway", http.StatusBadGateway, nil, &Error{Kind: KindUnexpected, Status: http.StatusBadGateway}},
		{"undecodable body", http.StatusOK, "not an object", &Error{Kind: KindUnexpected, Status: http.StatusOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.NewServer(t)
			srv.SetSearchHandler(func(string) apitest.SearchResponse {
				return apitest.SearchResponse{Status: tt.status, Body: tt.body}
			})
			o := newTestOrchestrator(t, srv)

			o.PerformSearch("phone")
			st := waitPhase(t, o, PhaseFailed)
			require.ErrorIs(t, st.Err, tt.want)
			if tt.want.Kind == KindUnexpected {
				require.Equal(t, tt.want.Status, st.Err.Status)
			}
		})
	}
}

func TestPerformSearch_NetworkErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := apitest.NewServer(t)
		endpoint := srv.SearchURL()
		srv.Close()

		o := New(endpoint, testClient(t), WithDebounce(testDebounce))
		t.Cleanup(o.Close)

		o.PerformSearch("phone")
		st := waitPhase(t, o, PhaseFailed)
		require.ErrorIs(t, st.Err, ErrNetworkError)
	})

	t.Run("deadline", func(t *testing.T) {
		srv := apitest.NewServer(t)
		srv.SetSearchHandler(func(q string) apitest.SearchResponse {
			r := apitest.CatalogHandler(q)
			r.Delay = time.Second
			return r
		})
		o := newTestOrchestrator(t, srv, WithTimeout(30*time.Millisecond))

		o.PerformSearch("phone")
		st := waitPhase(t, o, PhaseFailed)
		require.ErrorIs(t, st.Err, ErrNetworkError)
	})
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func requestQuery(t *testing.T, r *http.Request) string {
	var in searchRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		t.Errorf("decode request: %v", err)
		return ""
	}
	q, err := url.PathUnescape(in.Input)
	if err != nil {
		t.Errorf("unescape input: %v", err)
	}
	return q
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// A response of a superseded query that arrives last must not win, even
// when the transport ignores cancellation.
func TestPerformSearch_OutOfOrderResponses(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	doer := doerFunc(func(r *http.Request) (*http.Response, error) {
		switch requestQuery(t, r) {
		case "first":
			close(slowStarted)
			<-releaseSlow
			return jsonResponse(200, `{"products":[{"id":1,"name":"First"}]}`), nil
		default:
			return jsonResponse(200, `{"products":[{"id":2,"name":"Second"}]}`), nil
		}
	})

	o := New("http://search.invalid/", doer, WithDebounce(time.Millisecond))

	o.PerformSearch("first")
	<-slowStarted
	o.PerformSearch("second")

	st := waitPhase(t, o, PhaseSucceeded)
	require.Equal(t, []string{"Second"}, names(st.Results))

	close(releaseSlow)
	o.Close()

	st = o.State()
	require.Equal(t, []string{"Second"}, names(st.Results))
	require.Equal(t, "second", st.CommittedQuery)
}

func TestPerformSearch_CancelledRequestIsNotAnError(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	srv := apitest.NewServer(t)
	srv.SetSearchHandler(func(q string) apitest.SearchResponse {
		r := apitest.CatalogHandler(q)
		if q == "pixel" {
			r.Block = block
		}
		return r
	})
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("pixel")
	require.Eventually(t, func() bool { return srv.SearchCalls() == 1 }, time.Second, 5*time.Millisecond)

	o.PerformSearch("galaxy")
	st := waitPhase(t, o, PhaseSucceeded)
	require.Equal(t, []string{"Galaxy S24 phone"}, names(st.Results))
	require.Nil(t, st.Err)
}

func TestCancel_KeepsResults(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("phone")
	waitPhase(t, o, PhaseSucceeded)

	srv.SetSearchHandler(func(q string) apitest.SearchResponse {
		r := apitest.CatalogHandler(q)
		r.Block = block
		return r
	})
	o.PerformSearch("pixel")
	require.Eventually(t, func() bool { return srv.SearchCalls() == 2 }, time.Second, 5*time.Millisecond)

	o.Cancel()
	st := o.State()
	require.Equal(t, PhaseSucceeded, st.Phase)
	require.Len(t, st.Results, 2)

	o.Close()
	require.Equal(t, st, o.State())
}

func TestClearResults_DoesNotCancelInFlight(t *testing.T) {
	release := make(chan struct{})

	srv := apitest.NewServer(t)
	srv.SetSearchHandler(func(q string) apitest.SearchResponse {
		r := apitest.CatalogHandler(q)
		r.Block = release
		return r
	})
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("phone")
	require.Eventually(t, func() bool { return srv.SearchCalls() == 1 }, time.Second, 5*time.Millisecond)

	o.ClearResults()
	require.Equal(t, PhaseIdle, o.State().Phase)

	close(release)
	st := waitPhase(t, o, PhaseSucceeded)
	require.Len(t, st.Results, 2)
}

func TestToggleReviewExpansion_RoundTrip(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("pixel")
	before := waitPhase(t, o, PhaseSucceeded)
	r := before.Results[0]
	require.Len(t, r.Reviews, 4)
	require.Equal(t, r.Reviews[:3], o.VisibleReviews(r))

	o.ToggleReviewExpansion(r.ID)
	require.True(t, o.State().Expanded[r.ID])
	require.Equal(t, r.Reviews, o.VisibleReviews(r))

	o.ToggleReviewExpansion(r.ID)
	if diff := cmp.Diff(before, o.State()); diff != "" {
		t.Errorf("state after double toggle (-want +got):\n%s", diff)
	}
	require.Equal(t, r.Reviews[:3], o.VisibleReviews(r))
}

func TestClearResults_ThenSearchEqualsFreshSearch(t *testing.T) {
	srv := apitest.NewServer(t)

	fresh := newTestOrchestrator(t, srv)
	fresh.PerformSearch("phone")
	want := waitPhase(t, fresh, PhaseSucceeded)

	used := newTestOrchestrator(t, srv)
	used.PerformSearch("pixel")
	st := waitPhase(t, used, PhaseSucceeded)
	used.ToggleReviewExpansion(st.Results[0].ID)
	used.ClearResults()
	used.PerformSearch("phone")
	got := waitPhase(t, used, PhaseSucceeded)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clear then search differs from a fresh search (-want +got):\n%s", diff)
	}
}

func TestState_IsDeepCopy(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.PerformSearch("pixel")
	st := waitPhase(t, o, PhaseSucceeded)
	st.Results[0].Reviews[0] = "tampered"
	st.Results = nil

	again := o.State()
	require.Equal(t, "Camera is superb", again.Results[0].Reviews[0])
}

func TestSetQuery_IsLocal(t *testing.T) {
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv)

	o.SetQuery("pho")
	time.Sleep(3 * testDebounce)

	st := o.State()
	require.Equal(t, "pho", st.RawQuery)
	require.Equal(t, PhaseIdle, st.Phase)
	require.Zero(t, srv.SearchCalls())
}

func TestOnChange_ReportsTransitions(t *testing.T) {
	var (
		mu     sync.Mutex
		phases []Phase
	)
	srv := apitest.NewServer(t)
	o := newTestOrchestrator(t, srv, WithOnChange(func(s State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	}))

	o.PerformSearch("phone")
	waitPhase(t, o, PhaseSucceeded)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Phase{PhasePending, PhaseSucceeded}, phases)
}

func TestOnChange_CloseFromCallback(t *testing.T) {
	srv := apitest.NewServer(t)
	closed := make(chan struct{})

	var o *Orchestrator
	o = newTestOrchestrator(t, srv, WithOnChange(func(s State) {
		if s.Phase == PhaseSucceeded {
			o.Close()
			close(closed)
		}
	}))

	o.PerformSearch("phone")

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close called from the change callback did not return")
	}

	o.PerformSearch("pixel")
	require.Equal(t, PhaseSucceeded, o.State().Phase, "a closed orchestrator ignores new searches")
	require.Equal(t, 1, srv.SearchCalls())
}

func TestClose(t *testing.T) {
	t.Run("pending timer never fires", func(t *testing.T) {
		srv := apitest.NewServer(t)
		o := newTestOrchestrator(t, srv, WithDebounce(50*time.Millisecond))

		o.PerformSearch("phone")
		o.Close()
		o.Close()

		time.Sleep(100 * time.Millisecond)
		require.Zero(t, srv.SearchCalls())
	})

	t.Run("in-flight request is abandoned", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)

		srv := apitest.NewServer(t)
		srv.SetSearchHandler(func(q string) apitest.SearchResponse {
			return apitest.SearchResponse{Body: map[string]any{"products": []any{}}, Block: block}
		})
		o := newTestOrchestrator(t, srv)

		o.PerformSearch("phone")
		require.Eventually(t, func() bool { return srv.SearchCalls() == 1 }, time.Second, 5*time.Millisecond)

		done := make(chan struct{})
		go func() {
			o.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not return")
		}

		require.Equal(t, PhasePending, o.State().Phase)
	})

	t.Run("search after close is ignored", func(t *testing.T) {
		srv := apitest.NewServer(t)
		o := newTestOrchestrator(t, srv)
		o.Close()

		o.PerformSearch("phone")
		require.Equal(t, State{}, o.State())
	})
}

func TestPerformSearch_ThroughSession(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.AddUser("alice", "secret")

	client := testClient(t)
	m := session.New(srv.APIBaseURL(), credentials.NewMemoryStore(), session.WithHTTPClient(client))
	_, err := m.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	o := New(srv.SearchURL(), m.Client(), WithDebounce(testDebounce))
	t.Cleanup(o.Close)

	o.PerformSearch("phone")
	waitPhase(t, o, PhaseSucceeded)

	auths := srv.SearchAuthorizations()
	require.Len(t, auths, 1)
	require.True(t, strings.HasPrefix(auths[0], "Bearer "))
	require.Nil(t, o.State().Err)
}
