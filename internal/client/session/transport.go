package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/insightlens/internal/client/credentials"
	"github.com/google/uuid"
)

// RequestIDHeader correlates client log lines with server logs.
const RequestIDHeader = "X-Request-ID"

// authTransport injects the bearer token and recovers from expired access
// tokens. Each request is replayed at most once.
type authTransport struct {
	m    *Manager
	base http.RoundTripper
}

func isExempt(path string) bool {
	return strings.HasSuffix(path, pathLogin) ||
		strings.HasSuffix(path, pathRegister) ||
		strings.HasSuffix(path, pathRefresh)
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isExempt(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	epoch := t.m.currentEpoch()
	used := t.m.credential(ctx, credentials.KindAccess)

	resp, err := t.base.RoundTrip(withCredentials(req, used, req.Body))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// a body without GetBody cannot be replayed
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		t.m.log.Warn(ctx, "unauthorized request cannot be replayed", "path", req.URL.Path)
		return resp, nil
	}

	fresh, err := t.m.renew(ctx, used)
	if err != nil {
		t.m.log.Warn(ctx, "token refresh failed", "path", req.URL.Path, "error", err)
		t.m.expire(ctx, epoch)
		return resp, nil
	}

	body := req.Body
	if req.GetBody != nil {
		body, err = req.GetBody()
		if err != nil {
			return resp, nil
		}
	}
	drain(resp)

	retried, err := t.base.RoundTrip(withCredentials(req, fresh, body))
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		t.m.log.Warn(ctx, "request unauthorized after refresh", "path", req.URL.Path)
		t.m.expire(ctx, epoch)
	}
	return retried, nil
}

// withCredentials clones req with the bearer token and a request id.
func withCredentials(req *http.Request, access string, body io.ReadCloser) *http.Request {
	r := req.Clone(req.Context())
	r.Body = body
	if access != "" {
		r.Header.Set("Authorization", "Bearer "+access)
	}
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return r
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()
}

// renew returns an access token newer than used. If another request already
// rotated the token it is reused; otherwise one refresh is performed and
// shared by every concurrent caller.
func (m *Manager) renew(ctx context.Context, used string) (string, error) {
	if current := m.credential(ctx, credentials.KindAccess); current != "" && current != used {
		return current, nil
	}

	v, err, shared := m.refreshGroup.Do("refresh", func() (any, error) {
		if current := m.credential(ctx, credentials.KindAccess); current != "" && current != used {
			return current, nil
		}
		return m.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	m.log.Debug(ctx, "access token renewed", "shared", shared)
	return v.(string), nil
}

// refresh exchanges the refresh token for a new access token.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	token := m.credential(ctx, credentials.KindRefresh)
	if token == "" {
		return "", errNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	var out refreshResponse
	if err := m.postJSON(ctx, pathRefresh, refreshRequest{Refresh: token}, &out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", &AuthError{Kind: ErrServerError, Status: http.StatusOK, Message: "refresh response without access token"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return "", errSessionChanged
	}
	if err := m.store.Set(ctx, credentials.KindAccess, out.Access); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	if out.Refresh != "" {
		if err := m.store.Set(ctx, credentials.KindRefresh, out.Refresh); err != nil {
			return "", fmt.Errorf("store refresh token: %w", err)
		}
	}

	m.log.Info(ctx, "access token refreshed", "rotated_refresh", out.Refresh != "")
	return out.Access, nil
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// expire ends the session after an irrecoverable auth failure of a request
// sent in the given epoch. Only the first call clears state and navigates;
// failures from an epoch that a login or logout already closed are ignored.
func (m *Manager) expire(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if m.expired || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.expired = true
	m.epoch++
	m.user = nil
	m.state = StateAnonymous
	if err := m.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		m.log.Error(ctx, "failed to clear credentials", "error", err)
	}
	m.mu.Unlock()

	m.log.Warn(ctx, "session expired, redirecting to login")
	m.navigator.NavigateToLogin(ctx)
}
