package metastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the store answers 404.
var ErrNotFound = errors.New("record not found")

// HTTPError is a non-2xx answer from the store.
type HTTPError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Body)
}

func (e *HTTPError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig points at the local json-server used by the IDE.
func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:4000", Timeout: 10 * time.Second}
}

// Client talks to the metadata store's per-record read / partial-update API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

func (c *Client) GetService(ctx context.Context, id string) (Service, error) {
	var s Service
	err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, &s)
	return s, err
}

// ListServices returns the services of a workspace.
func (c *Client) ListServices(ctx context.Context, workspaceID string) ([]Service, error) {
	var out []Service
	err := c.do(ctx, http.MethodGet, "/services?workspaceId="+url.QueryEscape(workspaceID), nil, &out)
	return out, err
}

// UpdateServiceStatus issues a partial update of the status field only.
func (c *Client) UpdateServiceStatus(ctx context.Context, id string, status Status) (Service, error) {
	var s Service
	err := c.do(ctx, http.MethodPatch, "/services/"+url.PathEscape(id), map[string]any{"status": status}, &s)
	return s, err
}

func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	var f File
	err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, &f)
	return f, err
}

// UpdateFileContent issues a partial update of the content field only.
func (c *Client) UpdateFileContent(ctx context.Context, id, content string) (File, error) {
	var f File
	err := c.do(ctx, http.MethodPatch, "/files/"+url.PathEscape(id), map[string]any{"content": content}, &f)
	return f, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("metadata store request failed", "method", method, "url", u, "error", err)
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Method: method, URL: u, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, u, err)
	}
	return nil
}
