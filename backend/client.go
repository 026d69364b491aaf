package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fwojciec/murmur"
)

const (
	chatPath     = "/chat"
	historyPath  = "/history"
	settingsPath = "/settings"
)

// Client talks to the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new backend [Client] for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ChatRequest is one outgoing turn: the full session message sequence
// with durable attachment encodings plus the current settings. An
// empty Messages slice is a valid settings-only call.
type ChatRequest struct {
	SessionID string
	Messages  []murmur.Message
	Settings  murmur.Settings
}

// Stream sends a chat request and returns a pull iterator over the
// NDJSON response body. Messages are validated before anything goes on
// the wire. A non-2xx response is returned as *APIError.
func (c *Client) Stream(ctx context.Context, req ChatRequest) (murmur.Stream, error) {
	for i, m := range req.Messages {
		if err := murmur.ValidateMessage(m); err != nil {
			return nil, fmt.Errorf("backend: message %d: %w", i, err)
		}
	}

	body, err := json.Marshal(chatRequestDTO(req))
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body), nil
}

// ReadHistory fetches the full session map. Callers treat transport
// failure as an empty map; the error is for their logs.
func (c *Client) ReadHistory(ctx context.Context) (map[string]murmur.Session, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+historyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp)
	}

	var dto map[string]sessionDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("backend: decode history: %w", err)
	}
	return sessionsFromDTO(dto)
}

// WriteHistory replaces the remote session map wholesale. Last writer
// wins at the map granularity.
func (c *Client) WriteHistory(ctx context.Context, sessions map[string]murmur.Session) error {
	payload := struct {
		History map[string]sessionDTO `json:"history"`
	}{History: sessionsToDTO(sessions)}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+historyPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseHTTPError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// FetchSettings reads the backend's persisted settings, mapping the
// provider-shaped keys to client-shaped ones.
func (c *Client) FetchSettings(ctx context.Context) (murmur.Settings, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+settingsPath, nil)
	if err != nil {
		return murmur.Settings{}, fmt.Errorf("backend: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return murmur.Settings{}, fmt.Errorf("backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return murmur.Settings{}, parseHTTPError(resp)
	}

	var dto settingsDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return murmur.Settings{}, fmt.Errorf("backend: decode settings: %w", err)
	}
	return murmur.Settings{
		Model:      dto.Model,
		APIKey:     dto.APIKey,
		BaseURL:    dto.BaseURL,
		MCPCommand: dto.MCPCommand,
	}, nil
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("failed to read body: %s", err)}
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err != nil || detail.Detail == "" {
		return &APIError{StatusCode: resp.StatusCode, Detail: string(body)}
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
}
