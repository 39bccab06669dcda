// Package apiclient talks to a running daemon over its automation API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/apierror"
)

const (
	maxRetries = 3
	retryDelay = 500 * time.Millisecond

	defaultTimeout = 10 * time.Second
)

// ErrUnavailable wraps connection failures to the daemon.
var ErrUnavailable = errors.New("daemon API unavailable")

// Client provides an interface for CLI-daemon communication
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
	retries int
	delay   time.Duration
}

// New creates a client for the API listening on the loopback port.
func New(port int, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
		retries: maxRetries,
		delay:   retryDelay,
	}
}

// Health checks that the daemon answers.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the daemon and monitor state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the most recent items.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	var out struct {
		Items []Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Get returns one item with its content unless it is locked.
func (c *Client) Get(ctx context.Context, id string) (*Item, error) {
	var out Item
	if err := c.do(ctx, http.MethodGet, itemPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a text or url item.
func (c *Client) Create(ctx context.Context, item NewItem) (*Created, error) {
	var out Created
	if err := c.do(ctx, http.MethodPost, "/api/items", item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(id, ""), nil, nil)
}

// TogglePin flips the pin flag and returns the new value.
func (c *Client) TogglePin(ctx context.Context, id string) (bool, error) {
	var out struct {
		IsPinned bool `json:"isPinned"`
	}
	if err := c.do(ctx, http.MethodPut, itemPath(id, "pin"), nil, &out); err != nil {
		return false, err
	}
	return out.IsPinned, nil
}

// Copy puts an item back on the clipboard.
func (c *Client) Copy(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, itemPath(id, "copy"), nil, nil)
}

// Paste copies an item and simulates a paste keystroke.
func (c *Client) Paste(ctx context.Context, id string) (*PasteResult, error) {
	var out PasteResult
	if err := c.do(ctx, http.MethodPost, itemPath(id, "paste"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PasteCurrent simulates a paste of the current clipboard.
func (c *Client) PasteCurrent(ctx context.Context) (*PasteResult, error) {
	var out PasteResult
	if err := c.do(ctx, http.MethodPost, "/api/paste", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reveal unlocks a sensitive item and returns its content.
func (c *Client) Reveal(ctx context.Context, id string) (*Revealed, error) {
	var out Revealed
	if err := c.do(ctx, http.MethodPost, itemPath(id, "reveal"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns the items whose searchable text contains q.
func (c *Client) Search(ctx context.Context, q string) ([]Item, error) {
	var out struct {
		Items []Item `json:"items"`
	}
	path := "/api/search?" + url.Values{"q": {q}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Screenshots returns recent image items.
func (c *Client) Screenshots(ctx context.Context) ([]Screenshot, error) {
	var out struct {
		Screenshots []Screenshot `json:"screenshots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/screenshots", nil, &out); err != nil {
		return nil, err
	}
	return out.Screenshots, nil
}

// ScreenshotImage returns the PNG bytes of an image item.
func (c *Client) ScreenshotImage(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/screenshots/"+url.PathEscape(id)+"/image", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func itemPath(id, action string) string {
	p := "/api/items/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send retries only when the connection could not be established, so a
// request is never delivered twice.
func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.retries; i++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isDialError(err) {
			break
		}

		c.logger.Debug("API connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var apiErr apierror.Error
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.HTTPCode = resp.StatusCode
	return &apiErr
}
