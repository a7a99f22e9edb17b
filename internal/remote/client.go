// Package remote is the HTTP client for the remote form resource.
//
// Contract:
//
//	POST {base}/forms        body {"answers":{...}}, header Idempotency-Key -> {"id":"..."}
//	PUT  {base}/forms/{id}   body {"answers":{...}}                         -> 200
//	GET  {base}/forms/{id}                                                   -> {"id":"...","answers":{...}}
//
// Answers travel as canonical JSON.
package remote

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

	"github.com/roach88/formsync/internal/form"
)

// IdempotencyHeader carries the session key on create.
const IdempotencyHeader = "Idempotency-Key"

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// StatusError is a non-2xx answer from the remote.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if err is or wraps a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Form is a remote form resource.
type Form struct {
	ID      string      `json:"id"`
	Answers form.Values `json:"answers"`
}

// answersBody encodes {"answers":{...}} keeping the answers canonical.
// json.Marshal would re-escape the canonical output.
func answersBody(snapshot form.Values) ([]byte, error) {
	data, err := form.MarshalCanonical(snapshot)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(data)+12)
	out = append(out, `{"answers":`...)
	out = append(out, data...)
	return append(out, '}'), nil
}

// Client talks to one remote form endpoint.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each request. Zero disables the per-request bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for baseURL (e.g. "https://forms.example.org/api").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create stores a new form. Replaying sessionKey returns the form the
// first create produced.
func (c *Client) Create(ctx context.Context, sessionKey string, snapshot form.Values) (string, error) {
	header := http.Header{}
	if sessionKey != "" {
		header.Set(IdempotencyHeader, sessionKey)
	}

	body, err := answersBody(snapshot)
	if err != nil {
		return "", fmt.Errorf("create form: %w", err)
	}

	var created Form
	if err := c.do(ctx, http.MethodPost, "/forms", header, body, &created); err != nil {
		return "", fmt.Errorf("create form: %w", err)
	}
	return created.ID, nil
}

// Update replaces the answers of form id.
func (c *Client) Update(ctx context.Context, id string, snapshot form.Values) error {
	if id == "" {
		return fmt.Errorf("update form: empty id")
	}
	body, err := answersBody(snapshot)
	if err != nil {
		return fmt.Errorf("update form %s: %w", id, err)
	}
	if err := c.do(ctx, http.MethodPut, "/forms/"+url.PathEscape(id), nil, body, nil); err != nil {
		return fmt.Errorf("update form %s: %w", id, err)
	}
	return nil
}

// Get fetches form id.
func (c *Client) Get(ctx context.Context, id string) (Form, error) {
	var f Form
	if err := c.do(ctx, http.MethodGet, "/forms/"+url.PathEscape(id), nil, nil, &f); err != nil {
		return Form{}, fmt.Errorf("get form %s: %w", id, err)
	}
	return f, nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, in []byte, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		body = bytes.NewReader(in)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a response body, falling
// back to the trimmed body text.
func errorMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
