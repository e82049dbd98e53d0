// Package slack implements the chat notifier and people directory ports
// against the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/specnotify/internal/port/directory"
	"github.com/Strob0t/specnotify/internal/port/notifier"
)

const (
	providerName     = "slack"
	defaultAPIURL    = "https://slack.com/api"
	defaultPageLimit = 200
)

// Client talks to the Slack Web API with a bot token. The app needs the
// "chat:write" and "users:read" scopes and must be invited to each channel.
type Client struct {
	token      string
	apiURL     string
	pageLimit  int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL points the client at another Web API base URL.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPageLimit sets the users.list page size.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithTimeout bounds each HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// NewClient creates a Slack client. An empty token yields a client whose
// calls return notifier.ErrNotConfigured.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		apiURL:     defaultAPIURL,
		pageLimit:  defaultPageLimit,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	_ notifier.Notifier   = (*Client)(nil)
	_ directory.Directory = (*Client)(nil)
)

func (c *Client) Name() string { return providerName }

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Send posts msg with chat.postMessage.
func (c *Client) Send(ctx context.Context, msg notifier.Message) (notifier.Result, error) {
	if c.token == "" {
		return notifier.Result{}, notifier.ErrNotConfigured
	}

	body, err := json.Marshal(postMessageRequest{Channel: msg.Channel, Text: msg.Text})
	if err != nil {
		return notifier.Result{}, fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return notifier.Result{}, fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var out apiResponse
	if err := c.do(req, &out); err != nil {
		return notifier.Result{}, err
	}
	return notifier.Result{OK: out.OK, Error: out.Error}, nil
}

// do sends req with the bot token and decodes the JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req) //nolint:gosec // API URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("slack rate limited, retry after %ss", resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack decode: %w", err)
	}
	return nil
}
