// Package client is the JSON-over-HTTP client of the dnavault API.
//
// Every failure to complete a call, from dialing to decoding the body, is
// returned wrapped in model.ErrTransport. Structured answers, including
// rejections with non-2xx status, are decoded and returned with their status.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apictx "github.com/dtroode/dnavault-client/internal/api/http/context"
	"github.com/dtroode/dnavault-client/internal/model"
)

// maxBodySize caps JSON bodies read into memory.
const maxBodySize = 16 << 20

// ErrEmptyBody is returned by DoJSON when a decodable answer was expected but the body was empty.
var ErrEmptyBody = fmt.Errorf("%w: empty response body", model.ErrTransport)

// Request describes one API call.
type Request struct {
	// Operation names the call in logs and metrics, e.g. "files.list".
	Operation   string
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
}

// Client performs API calls against a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*http.Client)

// WithJar replaces the in-memory cookie jar, e.g. with a Jar that persists
// the API host's session cookies.
func WithJar(jar http.CookieJar) Option {
	return func(c *http.Client) {
		c.Jar = jar
	}
}

// New creates a Client for baseURL. transport is usually a middleware chain;
// nil means http.DefaultTransport. Unless WithJar is given, session cookies
// are kept for the life of the process.
func New(baseURL string, timeout time.Duration, transport http.RoundTripper, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	hc := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
	}
	for _, opt := range opts {
		opt(hc)
	}

	return &Client{base: base, http: hc}, nil
}

// URL returns the absolute URL of a server-relative reference.
func (c *Client) URL(ref string) string {
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.base.String() + ref
}

// Do sends the request and returns the raw response. The caller closes the body.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	ctx = apictx.WithOperation(ctx, r.Operation)

	u := c.base.JoinPath(r.Path)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", model.ErrTransport, r.Method, r.Path, err)
	}
	return resp, nil
}

// DoJSON sends in (when non-nil) as a JSON body and decodes the answer into
// out (when non-nil) whatever the status. It returns the response status.
func (c *Client) DoJSON(ctx context.Context, r Request, in, out any) (int, error) {
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		r.Body = bytes.NewReader(payload)
		r.ContentType = "application/json"
	}

	resp, err := c.Do(ctx, r)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to read response: %w", model.ErrTransport, err)
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, fmt.Errorf("%w (status %d)", ErrEmptyBody, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: failed to decode response (status %d): %w", model.ErrTransport, resp.StatusCode, err)
	}

	return resp.StatusCode, nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, model.ErrTransport)
}
