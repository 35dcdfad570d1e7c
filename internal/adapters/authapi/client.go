// Package authapi is the transport adapter to the remote auth backend. It
// exchanges a Google ID token for a confirmed session, re-validates a stored
// session token, and revokes sessions on sign-out.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"talkeysclient/internal/domain"
)

type exchangeRequest struct {
	IDToken string `json:"idToken"`
}

type sessionEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		AccessToken string         `json:"accessToken"`
		User        domain.Session `json:"user"`
	} `json:"data"`
}

// Client implements domain.AuthGateway over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns an auth gateway client. If httpClient is nil,
// http.DefaultClient is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
	}
}

// ExchangeIDToken trades an identity-provider token for a session and a
// backend-issued session token.
func (c *Client) ExchangeIDToken(ctx context.Context, idToken string) (*domain.Session, error) {
	if idToken == "" {
		return nil, domain.ErrNoIdentityToken
	}
	body, err := json.Marshal(exchangeRequest{IDToken: idToken})
	if err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrDecode, Err: err}
	}
	return c.sessionCall(ctx, http.MethodPost, "/auth/google", "", body)
}

// VerifySession asks the backend to confirm a stored token and returns the
// confirmed session. The session carries the same token back to the caller.
func (c *Client) VerifySession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrNoToken
	}
	sess, err := c.sessionCall(ctx, http.MethodGet, "/auth/verify", token, nil)
	if err != nil {
		return nil, err
	}
	if sess.Token == "" {
		sess.Token = token
	}
	return sess, nil
}

// RevokeSession invalidates the token server-side. Callers treat failures as
// best-effort; local state is cleared regardless.
func (c *Client) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return &domain.APIError{Kind: domain.APIErrInvalidURL, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.APIError{Kind: domain.APIErrNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.APIError{Kind: domain.APIErrServer, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) sessionCall(ctx context.Context, method, path, bearer string, body []byte) (*domain.Session, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrInvalidURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &domain.APIError{Kind: domain.APIErrUnauthorized, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &domain.APIError{Kind: domain.APIErrServer, StatusCode: resp.StatusCode}
	}

	var envelope sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrDecode, Err: err}
	}

	sess := envelope.Data.User
	sess.Token = envelope.Data.AccessToken
	sess.IssuedAt = time.Now()
	if exp, ok := TokenExpiresAt(sess.Token); ok {
		sess.ExpiresAt = exp
	} else {
		sess.ExpiresAt = sess.IssuedAt.Add(24 * time.Hour)
	}
	return &sess, nil
}
