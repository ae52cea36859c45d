package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/insightlens/internal/client/session"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) readCredentials() (string, string, error) {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return "", "", err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	defer clear(password)

	return username, string(password), nil
}

// Register prompts for credentials and creates an account. The new account
// is not logged in.
func (a *App) Register(ctx context.Context) error {
	username, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	if _, err := a.session.Register(ctx, username, password); err != nil {
		a.println("Registration failed:", authMessage(err))
		return err
	}

	a.println("Success! You can now log in.")
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	username, password, err := a.readCredentials()
	if err != nil {
		return err
	}

	resp, err := a.session.Login(ctx, username, password)
	if err != nil {
		a.println("Login unsuccessful:", authMessage(err))
		return err
	}

	if resp.User == nil {
		// the login payload carried no profile; fetch it
		if _, err := a.session.CurrentUser(ctx); err != nil {
			a.log.Warn(ctx, "profile fetch after login failed", "error", err)
		}
	}

	a.println("Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		a.println("Logout failed:", err)
		return err
	}
	a.search.ClearResults()
	a.println("Logged out")
	return nil
}

// WhoAmI fetches the profile of the logged in user.
func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.session.CurrentUser(ctx)
	if err != nil {
		a.println("Could not fetch profile:", authMessage(err))
		return err
	}
	a.printf("%s (id %s)\n", u.Username, u.ID)
	return nil
}

// Status prints the session state and a summary of the stored tokens.
func (a *App) Status(ctx context.Context) error {
	state, u := a.session.State()
	info := a.session.DebugInfo(ctx)

	a.printf("session: %s\n", state)
	if u != nil {
		a.printf("user: %s\n", u.Username)
	}
	a.printf("access token: %t %s\n", info.HasAccessToken, info.AccessTokenStart)
	a.printf("refresh token: %t %s\n", info.HasRefreshToken, info.RefreshTokenStart)
	if !info.AccessExpiresAt.IsZero() {
		a.printf("access token expires: %s\n", info.AccessExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

// authMessage returns the text shown to the user for an auth failure.
func authMessage(err error) string {
	var authErr *session.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, session.ErrNetworkError):
		return "Network error. Please check your connection."
	case errors.Is(err, session.ErrServerError):
		return "Server error. Please try again later."
	default:
		return err.Error()
	}
}
