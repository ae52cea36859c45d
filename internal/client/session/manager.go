package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/insightlens/internal/client/credentials"
	"github.com/dmitrijs2005/insightlens/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	pathLogin    = "/auth/login/"
	pathRegister = "/auth/register/"
	pathRefresh  = "/auth/token/refresh/"
	pathProfile  = "/auth/profile/"
)

// maxBodySize bounds how much of an auth response is read.
const maxBodySize = 1 << 20

// Navigator receives the forced navigation to the login entry point that
// follows an irrecoverable authentication failure.
type Navigator interface {
	NavigateToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) NavigateToLogin(ctx context.Context) { f(ctx) }

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for unauthenticated calls; its
// transport also carries the authenticated ones.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.plain = c }
}

func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.navigator = n }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// Manager owns the credential pair and the derived session state.
type Manager struct {
	baseURL        string
	store          credentials.Store
	plain          *http.Client
	client         *http.Client
	navigator      Navigator
	log            logging.Logger
	refreshTimeout time.Duration
	refreshGroup   singleflight.Group

	mu    sync.Mutex
	state State
	user  *User
	// epoch changes on login, logout and expiry; a refresh that started in
	// an older epoch must not write credentials.
	epoch uint64
	// expired is set by the first terminal failure of an epoch so the
	// navigation fires once, not once per failed request.
	expired bool
}

// New creates a Manager for the auth API rooted at baseURL.
func New(baseURL string, store credentials.Store, opts ...Option) *Manager {
	m := &Manager{
		baseURL:        strings.TrimRight(baseURL, "/"),
		store:          store,
		plain:          &http.Client{Timeout: 30 * time.Second},
		navigator:      NavigatorFunc(func(context.Context) {}),
		log:            logging.Nop(),
		refreshTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "session")

	base := m.plain.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	m.client = &http.Client{
		Transport: &authTransport{m: m, base: base},
		Timeout:   m.plain.Timeout,
	}
	return m
}

// Client returns the HTTP client that injects and refreshes credentials.
func (m *Manager) Client() *http.Client {
	return m.client
}

// Login authenticates and stores the returned credentials. The access token
// is required; a missing refresh token is tolerated.
func (m *Manager) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	resp, err := m.postAuth(ctx, pathLogin, credentialsRequest{Username: username, Password: password})
	if err != nil {
		m.log.Warn(ctx, "login failed", "username", username, "error", err)
		return nil, err
	}
	if resp.Access == "" {
		return nil, &AuthError{Kind: ErrServerError, Status: http.StatusOK, Message: "invalid response format - missing access token"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storePair(ctx, resp.Access, resp.Refresh); err != nil {
		return nil, err
	}

	m.epoch++
	m.expired = false
	if resp.User != nil {
		u := *resp.User
		m.user = &u
		m.state = StateAuthenticated
	}

	m.log.Info(ctx, "logged in", "username", username, "refresh_token", resp.Refresh != "")
	return resp, nil
}

// storePair writes a fresh credential pair; an absent refresh clears any
// stale one. Callers hold m.mu.
func (m *Manager) storePair(ctx context.Context, access, refresh string) error {
	if err := credentials.SetPair(ctx, m.store, access, refresh); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// Register creates an account. It never stores credentials.
func (m *Manager) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	resp, err := m.postAuth(ctx, pathRegister, credentialsRequest{Username: username, Password: password})
	if err != nil {
		m.log.Warn(ctx, "registration failed", "username", username, "error", err)
		return nil, err
	}
	m.log.Info(ctx, "registered", "username", username)
	return resp, nil
}

// CurrentUser fetches the profile through the authenticated client.
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+pathProfile, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}

	epoch := m.currentEpoch()

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: ErrNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &AuthError{Kind: ErrNetworkError, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: serverMessage(body)}
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, &AuthError{Kind: ErrServerError, Status: resp.StatusCode, Err: err}
	}

	// a login or logout while the request was in flight owns the state now
	m.mu.Lock()
	if m.epoch == epoch && !m.expired {
		u := user
		m.user = &u
		m.state = StateAuthenticated
	}
	m.mu.Unlock()

	return &user, nil
}

// Logout clears both credentials and the cached user. It is purely local.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.user = nil
	m.state = StateAnonymous

	if err := m.store.ClearAll(ctx); err != nil {
		m.log.Error(ctx, "failed to clear credentials", "error", err)
		return fmt.Errorf("clear credentials: %w", err)
	}
	m.log.Info(ctx, "logged out")
	return nil
}

// IsAuthenticated reports whether an access token is stored. It is a hint
// for the presentation layer; the server stays authoritative.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.credential(ctx, credentials.KindAccess) != ""
}

// Initialize restores the session from stored credentials: with an access
// token the profile is fetched, and a failed fetch logs the user out.
func (m *Manager) Initialize(ctx context.Context) State {
	if !m.IsAuthenticated(ctx) {
		m.setState(StateAnonymous)
		return StateAnonymous
	}

	m.setState(StateInitializing)

	if _, err := m.CurrentUser(ctx); err != nil {
		m.log.Warn(ctx, "stored session rejected", "error", err)
		_ = m.Logout(ctx)
		return StateAnonymous
	}
	return StateAuthenticated
}

// State returns the derived session state and a copy of the cached user.
func (m *Manager) State() (State, *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return m.state, nil
	}
	u := *m.user
	return m.state, &u
}

// DebugInfo summarizes the stored credentials for diagnostics.
func (m *Manager) DebugInfo(ctx context.Context) TokenDebugInfo {
	access := m.credential(ctx, credentials.KindAccess)
	refresh := m.credential(ctx, credentials.KindRefresh)

	info := TokenDebugInfo{
		HasAccessToken:    access != "",
		HasRefreshToken:   refresh != "",
		AccessTokenStart:  tokenStart(access),
		RefreshTokenStart: tokenStart(refresh),
	}

	if access != "" {
		var claims jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err == nil && claims.ExpiresAt != nil {
			info.AccessExpiresAt = claims.ExpiresAt.Time
		}
	}
	return info
}

func tokenStart(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 10 {
		token = token[:10]
	}
	return token + "..."
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	if s != StateAuthenticated {
		m.user = nil
	}
	m.mu.Unlock()
}

// credential reads a slot, treating storage failures as absence.
func (m *Manager) credential(ctx context.Context, kind credentials.Kind) string {
	v, ok, err := m.store.Get(ctx, kind)
	if err != nil {
		m.log.Error(ctx, "failed to read credential", "kind", string(kind), "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// postAuth sends an unauthenticated JSON POST to an auth endpoint and
// decodes an AuthResponse, classifying every failure.
func (m *Manager) postAuth(ctx context.Context, path string, payload any) (*AuthResponse, error) {
	var out AuthResponse
	if err := m.postJSON(ctx, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Manager) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.plain.Do(req)
	if err != nil {
		return &AuthError{Kind: ErrNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &AuthError{Kind: ErrNetworkError, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthError{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: serverMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &AuthError{Kind: ErrServerError, Status: resp.StatusCode, Err: err}
	}
	return nil
}
