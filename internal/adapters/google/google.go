// Package google implements the identity-provider port with Google's OIDC
// flow. Since this client has no hosted redirect page, it uses the loopback
// variant: a transient listener on 127.0.0.1 receives the authorization code
// while the user completes consent in their browser.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"talkeysclient/internal/domain"
)

const issuerURL = "https://accounts.google.com"

// PromptFunc receives the authorization URL the user must open. The default
// prints it to stdout.
type PromptFunc func(authURL string)

// Provider implements domain.IdentityProvider using Google sign-in.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	prompt      PromptFunc
	port        int
}

// New builds a Provider. clientID and clientSecret come from the Google
// OAuth client registration; port selects the loopback listener port
// (0 means ephemeral).
func New(ctx context.Context, clientID, clientSecret string, port int, prompt PromptFunc) (*Provider, error) {
	if clientID == "" {
		return nil, errors.New("google oauth config missing client id")
	}
	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}
	verifier := oidcProvider.Verifier(&oidc.Config{ClientID: clientID})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}
	if prompt == nil {
		prompt = func(authURL string) {
			fmt.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
		}
	}
	return &Provider{
		oauthConfig: oauthCfg,
		verifier:    verifier,
		prompt:      prompt,
		port:        port,
	}, nil
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler validates the authorization response delivered to the
// loopback listener and forwards the outcome. Only the first outcome is kept;
// a reloaded callback page must not block the handler.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("oauth state mismatch")})
			return
		}
		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "sign-in was cancelled", http.StatusBadRequest)
			deliver(callbackResult{err: fmt.Errorf("authorization denied: %s", errCode)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("authorization response missing code")})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>Signed in. You can close this tab.</body></html>")
		deliver(callbackResult{code: code})
	})
}

// SignIn runs the full authorization flow and returns the verified identity.
// It suspends until the browser flow completes, fails, or ctx is done.
func (p *Provider) SignIn(ctx context.Context) (*domain.Identity, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.port))
	if err != nil {
		return nil, fmt.Errorf("failed to open loopback listener: %w", err)
	}
	defer listener.Close()

	cfg := *p.oauthConfig
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	state := uuid.NewString()
	pkceVerifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(pkceVerifier),
	)

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, results))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	p.prompt(authURL)

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return nil, fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, domain.ErrNoIdentityToken
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, errors.New("google id_token missing required claims")
	}

	return &domain.Identity{
		IDToken: rawIDToken,
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// SignOut is a no-op for the loopback flow: each SignIn runs a fresh consent
// round and no provider-side session is held, so there is nothing to revoke.
func (p *Provider) SignOut(ctx context.Context) error {
	return nil
}
