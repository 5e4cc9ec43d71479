// Package fallback implements the request/response path of the messaging
// subsystem. Its operations never depend on the push channel being up and
// are the authoritative source of truth whenever push state is suspect.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/feiralink/chat/internal/store"
	"go.uber.org/zap"
)

// APIError is a server-reported failure: the request reached the API but
// came back with success:false and a human-readable message.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return e.Message
}

// Client is the HTTP client for the marketplace chat endpoints. All
// responses use the {success, message?, payload} envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.RWMutex
	credential string
}

// NewClient creates a fallback client for the given server origin.
func NewClient(serverURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SetCredential installs the bearer credential for subsequent requests.
// Must match the identity the engine was started with.
func (c *Client) SetCredential(token string) {
	c.mu.Lock()
	c.credential = token
	c.mu.Unlock()
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (e envelope) check() error {
	if !e.Success {
		return &APIError{Message: e.Message}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.mu.RLock()
	req.Header.Set("Authorization", "Bearer "+c.credential)
	c.mu.RUnlock()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response (HTTP %d): %w", method, path, resp.StatusCode, err)
	}
	return nil
}

// ListConversations fetches the full conversation snapshot for the
// current identity.
func (c *Client) ListConversations(ctx context.Context) ([]store.Conversation, error) {
	var resp struct {
		envelope
		Conversations []store.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// ListMessages fetches a conversation's messages in chronological order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var resp struct {
		envelope
		Messages []store.Message `json:"messages"`
	}
	path := "/api/chat/conversations/" + conversationID + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage creates a message server-side and returns it with its
// assigned id and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*store.Message, error) {
	var resp struct {
		envelope
		Msg store.Message `json:"message_data"`
	}
	path := "/api/chat/conversations/" + conversationID + "/messages"
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return &resp.Msg, nil
}

// MarkRead resets the caller's unread count for a conversation to zero
// server-side.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	var resp envelope
	path := "/api/chat/conversations/" + conversationID + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	return resp.check()
}

// UnreadCount fetches the aggregate unread count for the current identity.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		envelope
		Count int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	if err := resp.check(); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// StartConversation lazily creates (or returns the existing) conversation
// with the given party. The server guarantees at most one per pair.
func (c *Client) StartConversation(ctx context.Context, otherPartyID string) (*store.Conversation, error) {
	var resp struct {
		envelope
		Conversation store.Conversation `json:"conversation"`
	}
	body := map[string]string{"other_party_id": otherPartyID}
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations", body, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return &resp.Conversation, nil
}
