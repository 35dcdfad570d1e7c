package domain

import (
	"context"
	"time"
)

// Session represents an authenticated user plus the backend-issued credential.
// It is created on a successful sign-in exchange and destroyed on sign-out,
// expiry, or any authentication failure.
type Session struct {
	UserID         string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	About          string    `json:"about,omitempty"`
	Pronouns       string    `json:"pronouns,omitempty"`
	Token          string    `json:"-"`
	IssuedAt       time.Time `json:"-"`
	ExpiresAt      time.Time `json:"-"`
}

// Valid reports whether the session can still be presented as authenticated.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// AuthPhase enumerates the coordinator states.
type AuthPhase int

const (
	PhaseUnknown AuthPhase = iota
	PhaseChecking
	PhaseSigningIn
	PhaseAuthenticated
	PhaseUnauthenticated
)

// String returns the lowercase phase name.
func (p AuthPhase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseChecking:
		return "checking"
	case PhaseSigningIn:
		return "signing_in"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	}
	return "invalid"
}

// AuthState is the tagged union observed by consumers of the session
// coordinator. Session is set only when Phase is PhaseAuthenticated; Reason
// carries a human-readable failure message when Phase is PhaseUnauthenticated
// after a failed sign-in or check.
type AuthState struct {
	Phase   AuthPhase
	Session *Session
	Reason  string
}

// Authenticated reports whether the state carries a live session.
func (s AuthState) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Session != nil
}

// Identity is what the external identity provider yields after its sign-in
// flow completes: an ID token to exchange with the auth backend plus basic
// profile fields.
type Identity struct {
	IDToken string
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityProvider drives the external sign-in SDK. SignIn suspends until the
// provider's flow completes or fails; implementations own any interactive
// surface the flow needs. The provider's internal state is driven only
// through these two entry points.
type IdentityProvider interface {
	SignIn(ctx context.Context) (*Identity, error)
	SignOut(ctx context.Context) error
}

// AuthGateway is the remote auth backend port. ExchangeIDToken trades an
// identity-provider token for a confirmed session; VerifySession re-validates
// a stored token; RevokeSession invalidates it server-side.
type AuthGateway interface {
	ExchangeIDToken(ctx context.Context, idToken string) (*Session, error)
	VerifySession(ctx context.Context, token string) (*Session, error)
	RevokeSession(ctx context.Context, token string) error
}

// TokenStore persists exactly one session token and its expiry across
// restarts. Clear is idempotent. IsValid lazily evicts an expired entry, the
// only background cleanup in the system.
type TokenStore interface {
	Save(token string) error
	Read() (string, error)
	Clear() error
	IsValid() bool
}
