package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"talkeysclient/internal/domain"
)

// checkTimeout bounds the existing-session check so app start never hangs on
// a slow backend. Past the deadline the coordinator assumes unauthenticated.
const checkTimeout = 3 * time.Second

// Observer receives every state transition synchronously. Late subscribers
// get no replay; read State or call CheckExistingSession explicitly.
type Observer func(domain.AuthState)

// SessionCoordinator owns sign-in, sign-out, and auto-login state. It bridges
// the external identity provider and the remote auth backend, and keeps the
// persisted token in step with the in-memory session.
//
// Failure policy is fail-closed: any uncertainty during sign-in or session
// check ends in Unauthenticated with the stored token cleared. A logged-out
// screen is recoverable; a stale "logged in" state is not.
type SessionCoordinator struct {
	identity domain.IdentityProvider
	gateway  domain.AuthGateway
	tokens   domain.TokenStore
	logger   *slog.Logger

	mu        sync.Mutex
	state     domain.AuthState
	signingIn bool
	observers []Observer
}

// NewSessionCoordinator wires the coordinator. All collaborators are required
// except logger, which defaults to slog.Default().
func NewSessionCoordinator(identity domain.IdentityProvider, gateway domain.AuthGateway, tokens domain.TokenStore, logger *slog.Logger) *SessionCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCoordinator{
		identity: identity,
		gateway:  gateway,
		tokens:   tokens,
		logger:   logger,
		state:    domain.AuthState{Phase: domain.PhaseUnknown},
	}
}

// State returns the current auth state.
func (c *SessionCoordinator) State() domain.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current session, or nil when not authenticated.
func (c *SessionCoordinator) Session() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Session
}

// Token returns the current session token, or "" when signed out. Suitable as
// a talkeys.TokenSource.
func (c *SessionCoordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Session == nil {
		return ""
	}
	return c.state.Session.Token
}

// Subscribe registers an observer for subsequent transitions.
func (c *SessionCoordinator) Subscribe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// transition swaps the state and notifies observers outside the lock, in
// registration order, so observers may re-enter read-only accessors.
func (c *SessionCoordinator) transition(next domain.AuthState) {
	c.mu.Lock()
	c.state = next
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(next)
	}
}

// CheckExistingSession restores a session from the stored token if the
// backend confirms it. The whole check is bounded by a 3 second deadline;
// on any failure the token is cleared and the state is Unauthenticated.
func (c *SessionCoordinator) CheckExistingSession(ctx context.Context) domain.AuthState {
	c.transition(domain.AuthState{Phase: domain.PhaseChecking})

	if !c.tokens.IsValid() {
		next := domain.AuthState{Phase: domain.PhaseUnauthenticated}
		c.transition(next)
		return next
	}

	token, err := c.tokens.Read()
	if err != nil {
		var storageErr *domain.StorageError
		if errors.As(err, &storageErr) {
			c.logger.Warn("token storage read failed, treating as absent", "err", err)
		}
		return c.failClosed("")
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	sess, err := c.gateway.VerifySession(ctx, token)
	if err != nil {
		c.logger.Info("stored session rejected", "err", err)
		return c.failClosed("")
	}

	next := domain.AuthState{Phase: domain.PhaseAuthenticated, Session: sess}
	c.transition(next)
	return next
}

// SignIn runs the identity-provider flow, exchanges the identity token with
// the backend, and persists the resulting session token. A second call while
// one is in flight returns domain.ErrSignInInProgress.
func (c *SessionCoordinator) SignIn(ctx context.Context) (domain.AuthState, error) {
	c.mu.Lock()
	if c.signingIn {
		c.mu.Unlock()
		return domain.AuthState{}, domain.ErrSignInInProgress
	}
	c.signingIn = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.signingIn = false
		c.mu.Unlock()
	}()

	c.transition(domain.AuthState{Phase: domain.PhaseSigningIn})

	identity, err := c.identity.SignIn(ctx)
	if err != nil {
		next := c.failClosed(fmt.Sprintf("Google Sign-In failed: %v", err))
		return next, err
	}
	if identity == nil || identity.IDToken == "" {
		next := c.failClosed("Failed to get ID token from Google")
		return next, domain.ErrNoIdentityToken
	}

	sess, err := c.gateway.ExchangeIDToken(ctx, identity.IDToken)
	if err != nil {
		next := c.failClosed(fmt.Sprintf("Backend authentication failed: %v", err))
		return next, err
	}

	if err := c.tokens.Save(sess.Token); err != nil {
		// Persistence failure does not invalidate the live session.
		c.logger.Warn("failed to persist session token", "err", err)
	}

	next := domain.AuthState{Phase: domain.PhaseAuthenticated, Session: sess}
	c.transition(next)
	c.logger.Info("signed in", "user", sess.Email)
	return next, nil
}

// SignOut signs out of the identity provider, revokes the session backend-side
// (best effort), and clears local state. Local state is cleared even when the
// remote calls fail.
func (c *SessionCoordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	var token string
	if c.state.Session != nil {
		token = c.state.Session.Token
	}
	c.mu.Unlock()

	if err := c.identity.SignOut(ctx); err != nil {
		c.logger.Warn("identity provider sign-out failed", "err", err)
	}
	if token != "" {
		if err := c.gateway.RevokeSession(ctx, token); err != nil {
			c.logger.Warn("remote session revoke failed", "err", err)
		}
	}
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("token storage clear failed", "err", err)
	}

	c.transition(domain.AuthState{Phase: domain.PhaseUnauthenticated})
	c.logger.Info("signed out")
	return nil
}

// failClosed clears the stored token and transitions to Unauthenticated with
// an optional user-facing reason.
func (c *SessionCoordinator) failClosed(reason string) domain.AuthState {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("token storage clear failed", "err", err)
	}
	next := domain.AuthState{Phase: domain.PhaseUnauthenticated, Reason: reason}
	c.transition(next)
	return next
}
