// Package talkeys is the transport adapter to the remote event catalog
// backend. It is stateless: every call performs one request and maps the
// response onto domain types.
package talkeys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"talkeysclient/internal/domain"
)

// TokenSource supplies the current session token, or "" when signed out.
// Absence of a token is not an error at this layer; some endpoints are public.
type TokenSource func() string

type eventListEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Events     []domain.Event `json:"events"`
		Pagination struct {
			Total int `json:"total"`
			Page  int `json:"page"`
			Pages int `json:"pages"`
			Limit int `json:"limit"`
		} `json:"pagination"`
	} `json:"data"`
}

// Client implements domain.EventFetcher against the Talkeys HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// NewClient returns a catalog client. If httpClient is nil, http.DefaultClient
// is used; the caller is expected to configure the request timeout there.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokens == nil {
		tokens = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
		tokens:  tokens,
	}
}

// FetchAll performs GET /getEvents and returns the flat event list.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Event, error) {
	var envelope eventListEnvelope
	if err := c.get(ctx, "/getEvents", &envelope); err != nil {
		return nil, err
	}
	return envelope.Data.Events, nil
}

// FetchByID performs GET /getEventById/{id} and returns the single event.
func (c *Client) FetchByID(ctx context.Context, id string) (*domain.Event, error) {
	if id == "" {
		return nil, &domain.APIError{Kind: domain.APIErrInvalidURL}
	}
	var event domain.Event
	if err := c.get(ctx, "/getEventById/"+url.PathEscape(id), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.APIError{Kind: domain.APIErrInvalidURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.APIError{Kind: domain.APIErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &domain.APIError{Kind: domain.APIErrUnauthorized, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &domain.APIError{Kind: domain.APIErrServer, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.APIError{Kind: domain.APIErrDecode, Err: err}
	}
	return nil
}
