// Package restclient is the shared JSON-over-HTTP plumbing used by the Jira
// and Confluence clients: base URL handling, authentication, custom headers,
// TLS verification and retry on HTTP 429.
package restclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

// Auth holds authentication settings for a REST API. When Username is set
// the request uses HTTP basic auth with Key as the password; otherwise Key is
// sent in Header (default "Authorization") with Scheme (default "Bearer" for
// the Authorization header).
type Auth struct {
	Username string
	Key      string
	Header   string
	Scheme   string
}

func (a Auth) apply(req *http.Request) {
	if a.Key == "" {
		return
	}

	if a.Username != "" {
		req.SetBasicAuth(a.Username, a.Key)
		return
	}

	header := a.Header
	if header == "" {
		header = "Authorization"
	}

	value := a.Key
	switch {
	case header == "Authorization" && a.Scheme == "":
		value = "Bearer " + value
	case a.Scheme != "":
		value = a.Scheme + " " + value
	}

	req.Header.Set(header, value)
}

// StatusError is returned for any non-2xx response that is not retried.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 300 { //nolint:mnd // keep log lines short
		body = body[:300] + "..."
	}

	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// DecodeBody unmarshals the error response body into v.
func (e *StatusError) DecodeBody(v any) error {
	return json.Unmarshal(e.Body, v)
}

// Client sends JSON requests to one base URL. It is safe for concurrent use.
type Client struct {
	baseURL    string
	auth       Auth
	headers    map[string]string
	httpClient *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithAuth sets the authentication settings.
func WithAuth(a Auth) Option { return func(c *Client) { c.auth = a } }

// WithHeader adds a header applied to every request.
func WithHeader(k, v string) Option { return func(c *Client) { c.headers[k] = v } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithMaxRetries sets how many times a 429 response is retried (default 3).
func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

// WithSleep overrides the wait between 429 retries (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewHTTPClient returns an *http.Client with the given timeout. When
// verifyTLS is false, certificate verification is disabled.
func NewHTTPClient(timeout time.Duration, verifyTLS bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opted out of verification
	}

	return &http.Client{Timeout: timeout, Transport: tr}
}

// New creates a Client for baseURL. Trailing slashes are trimmed.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    map[string]string{"Accept": "application/json"},
		httpClient: NewHTTPClient(30*time.Second, true), //nolint:mnd // default REST timeout
		maxRetries: 3,
		sleep:      sleepCtx,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// NewRequest builds an *http.Request for path (relative to the base URL,
// query string allowed) with auth and custom headers applied.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	c.auth.apply(req)

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request using the configured HTTP client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req) //nolint:gosec // URL is built from configured base URL
}

// Get sends a GET with the query and decodes the JSON response into dest.
func (c *Client) Get(ctx context.Context, path string, query url.Values, dest any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	return c.JSON(ctx, http.MethodGet, path, nil, dest)
}

// Post sends payload as JSON and decodes the response into dest.
func (c *Client) Post(ctx context.Context, path string, payload, dest any) error {
	return c.JSON(ctx, http.MethodPost, path, payload, dest)
}

// Put sends payload as JSON and decodes the response into dest.
func (c *Client) Put(ctx context.Context, path string, payload, dest any) error {
	return c.JSON(ctx, http.MethodPut, path, payload, dest)
}

// JSON performs one JSON request. A nil payload sends no body; a nil dest
// discards the response body. HTTP 429 is retried up to the configured limit,
// honouring Retry-After, otherwise backing off exponentially from one second.
// Any other non-2xx status returns a *StatusError.
func (c *Client) JSON(ctx context.Context, method, path string, payload, dest any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}

		req, err := c.NewRequest(ctx, method, path, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		status, respBody, header, err := c.roundTrip(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		if status == http.StatusTooManyRequests {
			wait := modeladapter.ParseRetryAfter(header.Get("Retry-After"))
			if attempt >= c.maxRetries {
				return &StatusError{Method: method, Path: path, StatusCode: status, Body: respBody, RetryAfter: wait}
			}

			if wait <= 0 {
				wait = min(time.Second<<attempt, 30*time.Second) //nolint:mnd // backoff cap
			}

			if err := c.sleep(ctx, wait); err != nil {
				return err
			}

			continue
		}

		if status < 200 || status >= 300 {
			return &StatusError{Method: method, Path: path, StatusCode: status, Body: respBody}
		}

		if dest == nil || status == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, dest); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}

		return nil
	}
}

func (c *Client) roundTrip(req *http.Request) (int, []byte, http.Header, error) {
	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, resp.Header, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}

	return 0
}
