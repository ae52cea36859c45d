package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServerError        = errors.New("server error")
	ErrNetworkError       = errors.New("network error")
)

// errNoRefreshToken ends a refresh attempt before any network call.
var errNoRefreshToken = errors.New("no refresh token")

// errSessionChanged discards a refresh result that raced with login/logout.
var errSessionChanged = errors.New("session changed during refresh")

// AuthError is returned by the account operations. Kind is one of the
// package sentinels; Status is the HTTP status when a response was received;
// Message carries the server's explanation when it sent one.
type AuthError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v: status %d", e.Kind, e.Status)
	default:
		return e.Kind.Error()
	}
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindForStatus maps a non-2xx status to an error kind.
func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidCredentials
	default:
		return ErrServerError
	}
}

// serverMessage extracts "message" or "detail" from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Detail
}
