// internal/clients/remote_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"doccenter/internal/auth"
	"doccenter/internal/library"
)

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api: %d %s", e.Status, e.Message)
}

// RemoteClient talks JSON to the remote library API, authenticating with
// the access PIN headers. Server errors and transport failures trip a
// circuit breaker so a dead remote is not hammered on every commit.
type RemoteClient struct {
	baseURL string
	role    auth.Role
	pin     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// ClientOption configures a RemoteClient.
type ClientOption func(*RemoteClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(rc *RemoteClient) { rc.http = c }
}

// WithCredentials sets the role and PIN sent with every request.
func WithCredentials(role auth.Role, pin string) ClientOption {
	return func(rc *RemoteClient) { rc.role, rc.pin = role, pin }
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) ClientOption {
	return func(rc *RemoteClient) { rc.breaker = newBreaker(st) }
}

func NewRemoteClient(baseURL string, opts ...ClientOption) *RemoteClient {
	rc := &RemoteClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: newBreaker(gobreaker.Settings{Name: "remote-api", Timeout: 30 * time.Second}),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// PushCommit sends one committed change set.
func (c *RemoteClient) PushCommit(ctx context.Context, commit library.Commit) error {
	return c.Do(ctx, http.MethodPost, "/commits", commit, nil)
}

// PutSnapshot replaces the remote copy of the whole store.
func (c *RemoteClient) PutSnapshot(ctx context.Context, snap library.Snapshot) error {
	return c.Do(ctx, http.MethodPut, "/snapshot", snap, nil)
}

// FetchSnapshot downloads the remote copy of the whole store.
func (c *RemoteClient) FetchSnapshot(ctx context.Context) (library.Snapshot, error) {
	var snap library.Snapshot
	err := c.Do(ctx, http.MethodGet, "/snapshot", nil, &snap)
	return snap, err
}

// Do sends in as JSON and decodes the response into out when out is non-nil.
func (c *RemoteClient) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.role != "" {
		req.Header.Set(auth.HeaderRole, string(c.role))
		req.Header.Set(auth.HeaderPIN, c.pin)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, decodeAPIError(resp)
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

// decodeAPIError prefers the error or message field of a JSON body and falls
// back to the HTTP status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || json.Unmarshal(raw, &payload) != nil {
		return apiErr
	}
	switch {
	case payload.Error != "":
		apiErr.Message = payload.Error
	case payload.Message != "":
		apiErr.Message = payload.Message
	}
	return apiErr
}
