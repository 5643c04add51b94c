package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides HTTP client functionality to communicate with the ideshell daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration. The timeout covers
// the daemon's startup grace period on preview start.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:3000/api",
		Timeout: 30 * time.Second,
	}
}

// APIError is a non-success envelope returned by the daemon.
type APIError struct {
	Status  int
	Message string
	Kind    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// New creates a new ideshell API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// StartPreview starts the dev server of a service and returns its URL.
func (c *Client) StartPreview(ctx context.Context, serviceID, serviceName string, port int) (Response, error) {
	c.logger.Debug("Starting preview", "service", serviceID, "name", serviceName, "port", port)
	return c.post(ctx, "/preview", PreviewRequest{ServiceID: serviceID, ServiceName: serviceName, Port: port, Action: "start"})
}

// StopPreview stops the dev server of a service. Stopping a service that is
// not running succeeds.
func (c *Client) StopPreview(ctx context.Context, serviceID string) (Response, error) {
	c.logger.Debug("Stopping preview", "service", serviceID)
	return c.post(ctx, "/preview", PreviewRequest{ServiceID: serviceID, Action: "stop"})
}

// SaveFile writes content to the file record and its file on disk.
func (c *Client) SaveFile(ctx context.Context, fileID, content string) (Response, error) {
	c.logger.Debug("Saving file", "file", fileID, "bytes", len(content))
	return c.post(ctx, "/files/save", SaveRequest{FileID: fileID, Content: content})
}

// PreviewStatus reports one service, or every running preview when
// serviceID is empty.
func (c *Client) PreviewStatus(ctx context.Context, serviceID string) (PreviewStatus, error) {
	u := c.baseURL + "/preview/status"
	if serviceID != "" {
		u += "?serviceId=" + url.QueryEscape(serviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PreviewStatus{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", u)
		return PreviewStatus{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return PreviewStatus{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var st PreviewStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return PreviewStatus{}, fmt.Errorf("decode response: %w", err)
	}
	return st, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", u)
		return Response{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Error("Failed to decode response", "status", resp.StatusCode)
		return Response{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		c.logger.Debug("API request failed", "error", out.Error, "kind", out.Kind, "status", resp.StatusCode)
		return out, &APIError{Status: resp.StatusCode, Message: out.Error, Kind: out.Kind}
	}
	return out, nil
}
