// Package authsession owns the client-side session lifecycle: obtaining a
// bearer credential, persisting it in a single-slot store, probing whether it
// is still accepted, and invalidating it when the API reports UNAUTHENTICATED.
//
// The Manager never navigates. Each outcome carries the route the caller is
// expected to show next ("/" or "/login").
package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/crmdash/crmdash/internal/cli/auth"
	"github.com/crmdash/crmdash/internal/cli/client"
)

// Redirect targets reported to callers
const (
	RedirectHome  = "/"
	RedirectLogin = "/login"
)

// Login failure text used when the underlying error does not provide it
const (
	DefaultLoginErrorMessage = "Login failed"
	DefaultLoginErrorName    = "Invalid email or password"
)

var (
	// ErrSessionExpired is returned by Enforce after a forced logout
	ErrSessionExpired = errors.New("session expired, please log in again")

	errEmptyAccessToken = errors.New("login response did not include an access token")
	errEmptyEmail       = errors.New("email is required")
)

// Identity is a read-only snapshot of the authenticated user
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	JobTitle  string `json:"jobTitle"`
	Timezone  string `json:"timezone"`
	AvatarURL string `json:"avatarUrl"`
}

// LoginError describes a failed login
type LoginError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

func (e *LoginError) Error() string {
	return e.Name + ": " + e.Message
}

// AuthOutcome is the result of Login and Logout
type AuthOutcome struct {
	Success    bool        `json:"success"`
	RedirectTo string      `json:"redirectTo,omitempty"`
	Error      *LoginError `json:"error,omitempty"`
}

// CheckOutcome is the result of Check
type CheckOutcome struct {
	Authenticated bool   `json:"authenticated"`
	RedirectTo    string `json:"redirectTo"`
}

// ErrorDirective tells the caller how to react to a failed request.
// Exactly one of Logout or Error is set.
type ErrorDirective struct {
	Logout bool
	Error  error
}

// Manager orchestrates the session lifecycle over a token store and a
// GraphQL executor. It is safe for concurrent use; writes to the store are
// serialised, network calls are not.
type Manager struct {
	store   auth.TokenStore
	gateway client.Executor
	logger  zerolog.Logger

	mu sync.Mutex
}

// New creates a session manager
func New(store auth.TokenStore, gateway client.Executor, logger zerolog.Logger) *Manager {
	return &Manager{
		store:   store,
		gateway: gateway,
		logger:  logger,
	}
}

// Login exchanges an email for an access token and stores it. On failure the
// store is left untouched.
func (m *Manager) Login(ctx context.Context, email string) AuthOutcome {
	email = strings.TrimSpace(email)
	// A blank email never reaches the gateway; the outcome still goes
	// through loginFailure so its message and name fallbacks apply.
	if email == "" {
		return loginFailure(errEmptyEmail)
	}

	payload, err := m.gateway.Execute(ctx, loginRequest(email), "")
	if err != nil {
		m.logger.Debug().Err(err).Str("email", email).Msg("Login mutation failed")
		return loginFailure(err)
	}

	var resp loginResponse
	if err := client.Decode(payload, &resp); err != nil {
		return loginFailure(err)
	}
	if resp.Login.AccessToken == "" {
		return loginFailure(errEmptyAccessToken)
	}

	m.mu.Lock()
	err = m.store.Put(resp.Login.AccessToken)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist access token")
		return loginFailure(err)
	}

	m.logger.Info().Str("email", email).Msg("User logged in")

	return AuthOutcome{Success: true, RedirectTo: RedirectHome}
}

// Logout clears the stored credential. It performs no network call and is
// idempotent.
func (m *Manager) Logout(ctx context.Context) AuthOutcome {
	m.mu.Lock()
	err := m.store.Clear()
	m.mu.Unlock()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to clear access token")
	} else {
		m.logger.Info().Msg("Session cleared")
	}

	return AuthOutcome{Success: true, RedirectTo: RedirectLogin}
}

// Check probes the API with the stored credential, if any. It reports state
// and never modifies the store; see OnError and Enforce for invalidation.
func (m *Manager) Check(ctx context.Context) CheckOutcome {
	token := m.currentToken()

	payload, err := m.gateway.Execute(ctx, meProbeRequest(), token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Session probe failed")
		return CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin}
	}

	var resp meResponse
	if err := client.Decode(payload, &resp); err != nil || resp.Me == nil {
		m.logger.Debug().Err(err).Msg("Session probe returned no user")
		return CheckOutcome{Authenticated: false, RedirectTo: RedirectLogin}
	}

	return CheckOutcome{Authenticated: true, RedirectTo: RedirectHome}
}

// OnError classifies a failed request. UNAUTHENTICATED asks the caller to log
// out; every other error is handed back unchanged. It performs no I/O.
func (m *Manager) OnError(err error) ErrorDirective {
	if client.IsUnauthenticated(err) {
		return ErrorDirective{Logout: true}
	}
	return ErrorDirective{Error: err}
}

// Enforce routes a failed request through OnError and carries out the
// directive: on UNAUTHENTICATED it logs out and returns ErrSessionExpired
// wrapping err. Other errors are returned unchanged.
func (m *Manager) Enforce(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	directive := m.OnError(err)
	if !directive.Logout {
		return directive.Error
	}

	m.logger.Warn().Err(err).Msg("API rejected the session, logging out")
	m.Logout(ctx)
	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

// GetIdentity fetches the current user's profile. The bearer header is sent
// only when a credential is stored. Failures are reported as ok == false.
func (m *Manager) GetIdentity(ctx context.Context) (Identity, bool) {
	token := m.currentToken()

	payload, err := m.gateway.Execute(ctx, meIdentityRequest(), token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("Identity lookup failed")
		return Identity{}, false
	}

	var resp meResponse
	if err := client.Decode(payload, &resp); err != nil || resp.Me == nil {
		return Identity{}, false
	}

	return *resp.Me, true
}

// Token returns the stored credential, or "" when there is none
func (m *Manager) Token() string {
	return m.currentToken()
}

func (m *Manager) currentToken() string {
	token, err := m.store.Get()
	if err != nil {
		if !errors.Is(err, auth.ErrNoCredential) {
			m.logger.Warn().Err(err).Msg("Failed to read access token, continuing unauthenticated")
		}
		return ""
	}
	return token
}

func loginFailure(err error) AuthOutcome {
	loginErr := &LoginError{}

	var remoteErr *client.RemoteError
	if errors.As(err, &remoteErr) {
		loginErr.Message = remoteErr.Message
		loginErr.Name = remoteErr.StatusCode
	} else if err != nil {
		loginErr.Message = err.Error()
	}

	if loginErr.Message == "" {
		loginErr.Message = DefaultLoginErrorMessage
	}
	if loginErr.Name == "" {
		loginErr.Name = DefaultLoginErrorName
	}

	return AuthOutcome{Success: false, Error: loginErr}
}
