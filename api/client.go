package api

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
)

// DefaultTimeout bounds every backend request
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4 << 10

// ErrNotFound is matched by StatusError for 404 responses
var ErrNotFound = errors.New("not found")

// StatusError reports a non-2xx backend response
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the crush backend REST surface
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:8001
// A non-positive timeout uses DefaultTimeout
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Health queries the root endpoint
func (c *Client) Health(ctx context.Context) (Health, error) {
	var w wireHealth
	if err := c.do(ctx, http.MethodGet, "/api/", nil, &w); err != nil {
		return Health{}, err
	}
	return Health{Message: string(w.Message), Status: string(w.Status)}, nil
}

// Objects fetches the crushable catalog
func (c *Client) Objects(ctx context.Context) ([]Object, error) {
	var w wireObjects
	if err := c.do(ctx, http.MethodGet, "/api/objects", nil, &w); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(w.Objects))
	for _, o := range w.Objects {
		out = append(out, o.object())
	}
	return out, nil
}

// Object fetches a single catalog entry
func (c *Client) Object(ctx context.Context, id string) (Object, error) {
	var w wireObject
	if err := c.do(ctx, http.MethodGet, "/api/objects/"+url.PathEscape(id), nil, &w); err != nil {
		return Object{}, err
	}
	return w.object(), nil
}

// Modes fetches the available game modes
func (c *Client) Modes(ctx context.Context) ([]Mode, error) {
	var w wireModes
	if err := c.do(ctx, http.MethodGet, "/api/modes", nil, &w); err != nil {
		return nil, err
	}
	out := make([]Mode, 0, len(w.Modes))
	for _, m := range w.Modes {
		out = append(out, m.mode())
	}
	return out, nil
}

// StartSession opens a session in mode and returns its id
func (c *Client) StartSession(ctx context.Context, mode string) (string, error) {
	var w wireSession
	if err := c.do(ctx, http.MethodPost, "/api/session/start", map[string]string{"mode": mode}, &w); err != nil {
		return "", err
	}
	if w.SessionID == "" {
		return "", errors.New("no session_id in response")
	}
	return string(w.SessionID), nil
}

// Crush records a crush of req.ObjectID in the session
func (c *Client) Crush(ctx context.Context, sessionID string, req CrushRequest) (CrushResult, error) {
	var w wireCrush
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "crush"), req, &w); err != nil {
		return CrushResult{}, err
	}
	return w.result(), nil
}

// Stats fetches session statistics
func (c *Client) Stats(ctx context.Context, sessionID string) (Stats, error) {
	var w wireStats
	if err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "stats"), nil, &w); err != nil {
		return Stats{}, err
	}
	return w.stats(), nil
}

// EndSession closes the session on the backend
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "end"), nil, nil)
}

func sessionPath(id, action string) string {
	return "/api/session/" + url.PathEscape(id) + "/" + action
}
