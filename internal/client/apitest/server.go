// Package apitest runs an in-process fake of the insightlens backend: the
// JWT auth endpoints and the product search endpoint. Tests drive token
// expiry, refresh failures and search responses through its knobs.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SearchResponse is what a SearchHandler wants the search endpoint to send.
// Block, when set, holds the response until it is closed or the request is
// abandoned by the client.
type SearchResponse struct {
	Status int
	Body   any
	Delay  time.Duration
	Block  <-chan struct{}
}

// SearchHandler receives the decoded query text.
type SearchHandler func(query string) SearchResponse

type account struct {
	id       string
	password string
}

type claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
	Gen  int    `json:"gen"`
}

// Server is the fake backend. Its zero configuration accepts every
// registered user, issues both tokens on login and never rotates refresh
// tokens.
type Server struct {
	*httptest.Server

	secret []byte

	mu            sync.Mutex
	users         map[string]account
	accessGen     int
	refreshDelay  time.Duration
	refreshFails  bool
	omitRefresh   bool
	rotateRefresh bool
	rejectProfile bool
	searchHandler SearchHandler
	profileTokens []string
	searchQueries []string
	searchAuth    []string
	holdN         int
	holdWaiting   int
	holdRelease   chan struct{}
	profileHold   chan struct{}
	profileSeen   chan struct{}

	refreshCalls atomic.Int32
	searchCalls  atomic.Int32
}

// NewServer starts a fake backend that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		secret: []byte("apitest-secret"),
		users:  make(map[string]account),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login/", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register/", s.handleRegister)
	mux.HandleFunc("POST /api/auth/token/refresh/", s.handleRefresh)
	mux.HandleFunc("GET /api/auth/profile/", s.handleProfile)
	mux.HandleFunc("POST /api/product/", s.handleSearch)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIBaseURL is the base URL of the auth endpoints.
func (s *Server) APIBaseURL() string { return s.URL + "/api" }

// SearchURL is the product search endpoint.
func (s *Server) SearchURL() string { return s.URL + "/api/product/" }

// AddUser registers an account and returns its id.
func (s *Server) AddUser(username, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.users[username] = account{id: id, password: password}
	return id
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.accessGen++
	s.mu.Unlock()
}

func (s *Server) SetRefreshDelay(d time.Duration) { s.set(func() { s.refreshDelay = d }) }
func (s *Server) SetRefreshFails(v bool)          { s.set(func() { s.refreshFails = v }) }
func (s *Server) SetOmitRefreshOnLogin(v bool)    { s.set(func() { s.omitRefresh = v }) }
func (s *Server) SetRotateRefresh(v bool)         { s.set(func() { s.rotateRefresh = v }) }

// SetRejectProfile makes the profile endpoint answer 401 to every token,
// including freshly refreshed ones.
func (s *Server) SetRejectProfile(v bool) { s.set(func() { s.rejectProfile = v }) }
func (s *Server) SetSearchHandler(h SearchHandler) {
	s.set(func() { s.searchHandler = h })
}

// HoldUnauthorized delays 401 answers of the profile endpoint until n of
// them are pending, so that n clients observe the expiry simultaneously.
func (s *Server) HoldUnauthorized(n int) {
	s.set(func() {
		s.holdN = n
		s.holdWaiting = 0
		s.holdRelease = make(chan struct{})
	})
}

// HoldProfile keeps successful profile answers back until release is
// called. entered receives once for every held request.
func (s *Server) HoldProfile() (entered <-chan struct{}, release func()) {
	seen := make(chan struct{}, 16)
	hold := make(chan struct{})
	s.set(func() {
		s.profileSeen = seen
		s.profileHold = hold
	})
	var once sync.Once
	return seen, func() { once.Do(func() { close(hold) }) }
}

func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }
func (s *Server) SearchCalls() int  { return int(s.searchCalls.Load()) }

// ProfileTokens lists the bearer tokens of successful profile requests.
func (s *Server) ProfileTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.profileTokens...)
}

// SearchQueries lists the decoded query of every search request received.
func (s *Server) SearchQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searchQueries...)
}

// SearchAuthorizations lists the Authorization header of every search request.
func (s *Server) SearchAuthorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searchAuth...)
}

func (s *Server) set(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Server) issue(userID, typ string) string {
	s.mu.Lock()
	gen := s.accessGen
	s.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: typ,
		Gen:  gen,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// parse validates a token of the given type and returns the user id.
func (s *Server) parse(tokenString, typ string) (string, bool) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || c.Type != typ {
		return "", false
	}

	if typ == "access" {
		s.mu.Lock()
		stale := c.Gen < s.accessGen
		s.mu.Unlock()
		if stale {
			return "", false
		}
	}
	return c.Subject, true
}

func (s *Server) userByID(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, a := range s.users {
		if a.id == id {
			return name, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request"})
		return
	}

	s.mu.Lock()
	a, ok := s.users[in.Username]
	omit := s.omitRefresh
	s.mu.Unlock()

	if !ok || a.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}

	resp := map[string]any{
		"access": s.issue(a.id, "access"),
		"user":   map[string]string{"id": a.id, "username": in.Username},
	}
	if !omit {
		resp["refresh"] = s.issue(a.id, "refresh")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "username and password are required"})
		return
	}

	s.mu.Lock()
	_, exists := s.users[in.Username]
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "A user with that username already exists."})
		return
	}

	id := s.AddUser(in.Username, in.Password)
	writeJSON(w, http.StatusCreated, map[string]any{
		"access":  s.issue(id, "access"),
		"refresh": s.issue(id, "refresh"),
		"user":    map[string]string{"id": id, "username": in.Username},
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.mu.Lock()
	delay, fails, rotate := s.refreshDelay, s.refreshFails, s.rotateRefresh
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	var in struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	userID, ok := s.parse(in.Refresh, "refresh")
	if fails || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}

	resp := map[string]string{"access": s.issue(userID, "access")}
	if rotate {
		resp["refresh"] = s.issue(userID, "refresh")
	}
	writeJSON(w, http.StatusOK, resp)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	userID, ok := s.parse(token, "access")
	var username string
	if ok {
		username, ok = s.userByID(userID)
	}
	s.mu.Lock()
	reject := s.rejectProfile
	s.mu.Unlock()
	if !ok || reject {
		s.waitForPeers(r)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}

	s.mu.Lock()
	s.profileTokens = append(s.profileTokens, token)
	seen, hold := s.profileSeen, s.profileHold
	s.mu.Unlock()

	if hold != nil {
		seen <- struct{}{}
		select {
		case <-hold:
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": userID, "username": username})
}

func (s *Server) waitForPeers(r *http.Request) {
	s.mu.Lock()
	if s.holdN == 0 {
		s.mu.Unlock()
		return
	}
	release := s.holdRelease
	s.holdWaiting++
	if s.holdWaiting == s.holdN {
		s.holdN = 0
		close(release)
	}
	s.mu.Unlock()

	select {
	case <-release:
	case <-time.After(2 * time.Second):
	case <-r.Context().Done():
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.searchCalls.Add(1)

	var in struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed request"})
		return
	}
	query, err := url.PathUnescape(in.Input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed input"})
		return
	}

	s.mu.Lock()
	s.searchQueries = append(s.searchQueries, query)
	s.searchAuth = append(s.searchAuth, r.Header.Get("Authorization"))
	handler := s.searchHandler
	s.mu.Unlock()

	if handler == nil {
		handler = CatalogHandler
	}
	resp := handler(query)

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if resp.Block != nil {
		select {
		case <-resp.Block:
		case <-r.Context().Done():
			return
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp.Body)
}
