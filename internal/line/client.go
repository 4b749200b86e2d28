// Package line is a minimal client for the LINE Messaging API reply and
// push endpoints.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minhducle291/linebot/internal/types"
)

const DefaultBaseURL = "https://api.line.me"

// ErrInvalidReplyToken is wrapped by errors returned from Reply when the
// platform rejects the token as expired, reused or unknown.
var ErrInvalidReplyToken = errors.New("invalid reply token")

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("line API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("line API error (status %d): %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrInvalidReplyToken.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusBadRequest && isInvalidTokenMessage(e.Message) {
		return ErrInvalidReplyToken
	}
	return nil
}

func isInvalidTokenMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "invalid reply token") || strings.Contains(m, "invalid replytoken")
}

// Config holds the channel credentials and endpoint.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client implements types.Messenger. It never reuses connections across
// calls: each request gets its own transport, closed when the call returns,
// so a send is never attempted on a keep-alive socket that went stale while
// the bot was idle.
type Client struct {
	config Config
}

// New creates a Client. Zero fields fall back to DefaultBaseURL and a 10s timeout.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{config: config}
}

var _ types.Messenger = (*Client)(nil)

type replyRequest struct {
	ReplyToken string `json:"replyToken"`
	Messages   []any  `json:"messages"`
}

type pushRequest struct {
	To       string `json:"to"`
	Messages []any  `json:"messages"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Reply sends messages using a single-use reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []types.OutboundMessage) error {
	wire, err := encodeMessages(messages)
	if err != nil {
		return err
	}
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{ReplyToken: replyToken, Messages: wire})
}

// Push sends messages to a user, group or room id.
func (c *Client) Push(ctx context.Context, to string, messages []types.OutboundMessage) error {
	if to == "" {
		return fmt.Errorf("push: empty target id")
	}
	wire, err := encodeMessages(messages)
	if err != nil {
		return err
	}
	return c.post(ctx, "/v2/bot/message/push", pushRequest{To: to, Messages: wire})
}

// withConn acquires an HTTP client for the duration of fn and releases its
// transport afterwards.
func (c *Client) withConn(fn func(hc *http.Client) error) error {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		DisableKeepAlives:   true,
	}
	defer transport.CloseIdleConnections()
	return fn(&http.Client{Transport: transport, Timeout: c.config.Timeout})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	return c.withConn(func(hc *http.Client) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

		resp, err := hc.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
			var er errorResponse
			if json.Unmarshal(respBody, &er) == nil {
				apiErr.Message = er.Message
			}
			return apiErr
		}
		return nil
	})
}
