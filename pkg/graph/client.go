package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the directory API root.
const DefaultBaseURL = "https://graph.microsoft.com/beta"

// APIError is a non-2xx directory response, carrying the body verbatim so
// the operator can see exactly what the directory objected to.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("directory returned %s", e.Status)
	}
	return fmt.Sprintf("directory returned %s: %s", e.Status, body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client issues authenticated requests against the directory REST API.
type Client struct {
	baseURL string
	http    *http.Client
	source  oauth2.TokenSource
	log     *logrus.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root; tests point this at a local server.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *logrus.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithTokenSource replaces the session token source; tests use a static one.
func WithTokenSource(src oauth2.TokenSource) ClientOption {
	return func(c *Client) { c.source = src }
}

// NewClient builds a Client on the session's token source. Transient
// failures and throttling are retried with backoff; auth and client errors
// are not.
func NewClient(session *Session, opts ...ClientOption) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil

	c := &Client{
		baseURL: DefaultBaseURL,
		http:    rc.StandardClient(),
		source:  session.TokenSource(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one JSON request. A nil out discards the response body; a nil
// body sends no payload. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return c.doURL(ctx, method, full, body, out)
}

// doURL is do for an absolute URL; continuation links from paged responses
// come in absolute form.
func (c *Client) doURL(ctx context.Context, method, fullURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Request-Id", uuid.NewString())

	if c.source != nil {
		tok, err := c.source.Token()
		if err != nil {
			return fmt.Errorf("failed to obtain access token: %w", err)
		}
		tok.SetAuthHeader(req)
	}

	c.log.WithFields(logrus.Fields{"method": method, "url": fullURL}).Trace("directory request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
