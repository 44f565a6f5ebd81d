// Package client talks to the unprotectd HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/server"
	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	server.APIError
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (HTTP %d, line %d): %s", e.Code, e.StatusCode, e.Line, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

type errorBody struct {
	Error server.APIError `json:"error"`
}

// Client is an unprotectd API client.
type Client struct {
	http       *resty.Client
	adminToken string
}

// New creates a client for the API at baseURL. adminToken authenticates the
// settings calls.
func New(baseURL, adminToken string) *Client {
	return NewWithClient(resty.New(), baseURL, adminToken)
}

// NewWithClient wraps an existing resty client.
func NewWithClient(rc *resty.Client, baseURL, adminToken string) *Client {
	rc.SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, adminToken: adminToken}
}

// GetSettings returns the stored settings.
func (c *Client) GetSettings(ctx context.Context) (*server.SettingsResponse, error) {
	var out server.SettingsResponse
	if err := c.do(c.admin(ctx).SetResult(&out), http.MethodGet, "/v1/settings"); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutSettings validates and saves opts.
func (c *Client) PutSettings(ctx context.Context, opts unprotect.Options) (*server.SettingsResponse, error) {
	var out server.SettingsResponse
	req := c.admin(ctx).SetBody(opts).SetResult(&out)
	if err := c.do(req, http.MethodPut, "/v1/settings"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks opts without saving them.
func (c *Client) Validate(ctx context.Context, opts unprotect.Options) (*server.ValidateResponse, error) {
	var out server.ValidateResponse
	req := c.admin(ctx).SetBody(opts).SetResult(&out)
	if err := c.do(req, http.MethodPost, "/v1/settings/validate"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClientAddress returns the address the server resolves for this client.
// headers are sent as-is, which lets callers probe proxy setups.
func (c *Client) ClientAddress(ctx context.Context, headers map[string]string) (*server.ClientAddressResponse, error) {
	var out server.ClientAddressResponse
	req := c.http.R().SetContext(ctx).SetHeaders(headers).SetResult(&out)
	if err := c.do(req, http.MethodGet, "/v1/client-address"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Access returns the bypass decision for this client. A non-empty
// sessionToken is sent as a Bearer token.
func (c *Client) Access(ctx context.Context, sessionToken string, headers map[string]string) (*server.AccessResponse, error) {
	var out server.AccessResponse
	req := c.http.R().SetContext(ctx).SetHeaders(headers).SetResult(&out)
	if sessionToken != "" {
		req.SetAuthToken(sessionToken)
	}
	if err := c.do(req, http.MethodGet, "/v1/access"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) admin(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(c.adminToken).
		SetHeader("Content-Type", "application/json")
}

func (c *Client) do(req *resty.Request, method, path string) error {
	var body errorBody
	resp, err := req.SetError(&body).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := body.Error
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode())
			apiErr.Message = resp.String()
		}
		return &Error{StatusCode: resp.StatusCode(), APIError: apiErr}
	}
	return nil
}
