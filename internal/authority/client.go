// Package authority is the HTTP client for the remote sync authority.
// The server is opaque: it accepts a batch of change operations and
// returns an authoritative merged snapshot plus a new cursor. The client
// only classifies failures and validates response shapes; merging is
// entirely the server's business.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin HTTP client for the sync authority. It handles Bearer
// token authentication, JSON marshaling, and failure classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL
// (e.g. http://127.0.0.1:8000).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health probes the authority's liveness endpoint. A failure
// short-circuits a sync attempt without touching /sync.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health probe: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health probe returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Sync pushes the queued changes and returns the authority's merged
// snapshot. The token goes into the Authorization header when non-empty.
func (c *Client) Sync(ctx context.Context, token string, request SyncRequest) (*SyncResult, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST /sync: %v", ErrUnavailable, err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading sync response: %v", ErrUnavailable, readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w (401): %s", ErrUnauthorized, errorDetail(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrProtocol, resp.StatusCode, errorDetail(respBody))
	}

	var result SyncResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling sync response: %v", ErrProtocol, err)
	}
	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

// Login exchanges credentials for a bearer token. The endpoint takes
// form-encoded username/password.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/login",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.tokenCall(req)
}

// Register creates an account and returns its first bearer token.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling register request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/register", bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("creating register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.tokenCall(req)
}

// tokenCall runs an auth request and extracts the access token.
func (c *Client) tokenCall(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, req.URL.Path, err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return "", fmt.Errorf("%w: reading auth response: %v", ErrUnavailable, readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w (401): %s", ErrUnauthorized, errorDetail(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s",
			ErrProtocol, resp.StatusCode, errorDetail(respBody))
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("%w: unmarshaling auth response: %v", ErrProtocol, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: auth response without access_token", ErrProtocol)
	}

	return tok.AccessToken, nil
}

// errorDetail extracts a human-readable message from an error body,
// preferring the structured {"detail": ...} shape.
func errorDetail(body []byte) string {
	var structured errorResponse
	if json.Unmarshal(body, &structured) == nil && structured.Detail != "" {
		return structured.Detail
	}
	if len(body) > 0 {
		return string(body)
	}
	return "no error detail"
}
