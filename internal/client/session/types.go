package session

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the profile returned by the auth endpoints.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UnmarshalJSON accepts numeric as well as string ids.
func (u *User) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	u.ID = strings.Trim(string(raw.ID), `"`)
	if u.ID == "null" {
		u.ID = ""
	}
	u.Username = raw.Username
	return nil
}

// AuthResponse is the payload of the login and register endpoints.
type AuthResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
	User    *User  `json:"user,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// State is the derived session state.
type State int

const (
	StateAnonymous State = iota
	StateInitializing
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// TokenDebugInfo describes the stored credentials without exposing them.
// AccessExpiresAt is read from the token's exp claim without verifying the
// signature and is zero when the token is not a JWT.
type TokenDebugInfo struct {
	HasAccessToken    bool
	HasRefreshToken   bool
	AccessTokenStart  string
	RefreshTokenStart string
	AccessExpiresAt   time.Time
}
