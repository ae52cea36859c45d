// Package session manages the authenticated session of the insightlens
// client.
//
// # Overview
//
// Manager exposes the account operations (Login, Register, CurrentUser,
// Logout, IsAuthenticated) and an *http.Client (see Manager.Client) whose
// transport attaches the access token to every request. When a request comes
// back 401 the transport refreshes the access token once, shared by every
// request that failed concurrently, and replays the request exactly once
// with the new token. If refreshing is impossible the session ends: both
// credentials are cleared and the configured Navigator is sent to the login
// entry point, once per session.
//
// # Error Handling
//
// Account operations return *AuthError whose Kind is one of the sentinels
// ErrInvalidCredentials, ErrServerError or ErrNetworkError; match them with
// errors.Is. Raw transport errors are never returned unwrapped.
//
// # Concurrency and Contexts
//
// Manager is safe for concurrent use. Refresh calls are detached from the
// cancellation of the request that triggered them and bounded by their own
// timeout, so one caller giving up does not fail the others waiting on the
// same refresh.
package session
