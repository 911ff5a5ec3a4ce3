package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/history"
	"github.com/teamline-chat/teamline/internal/models"
)

// Client consumes the REST contract of the chat backend: message history,
// by-id lookup, sends, and the user directory. It satisfies history.Fetcher.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a REST client for the given base URL
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("component", "rest").Logger(),
	}
}

// SetToken installs the bearer token used on subsequent requests
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	return c.token
}

// LoginResponse is returned by the login endpoint
type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Login authenticates with email and password and stores the session token
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	body := map[string]string{"email": email, "password": password}

	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	c.token = resp.Token
	return resp.User, nil
}

// messagesResponse mirrors the fetchMessages wire shape
type messagesResponse struct {
	Messages   []*models.Message `json:"messages"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// FetchMessages retrieves one page of history. An empty cursor means the
// most recent page; otherwise messages strictly older than the cursor.
func (c *Client) FetchMessages(ctx context.Context, chatID uuid.UUID, limit int, cursor string) (history.Page, error) {
	q := url.Values{}
	q.Set("chat_id", chatID.String())
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp messagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &resp); err != nil {
		return history.Page{}, err
	}
	return history.Page{Messages: resp.Messages, NextCursor: resp.NextCursor}, nil
}

// FetchMessageByID retrieves a single message, used for reply resolution.
// A missing message maps to history.ErrMessageUnavailable.
func (c *Client) FetchMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/"+id.String(), nil, &msg)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
			return nil, history.ErrMessageUnavailable
		}
		return nil, err
	}
	return &msg, nil
}

// sendMessageRequest mirrors the sendMessage wire shape
type sendMessageRequest struct {
	ChatID   uuid.UUID   `json:"chat_id"`
	Content  string      `json:"content"`
	Mentions []uuid.UUID `json:"mentions,omitempty"`
}

// SendMessage posts a new message and returns the server-assigned record
func (c *Client) SendMessage(ctx context.Context, chatID uuid.UUID, content string, mentions []uuid.UUID) (*models.Message, error) {
	req := sendMessageRequest{ChatID: chatID, Content: content, Mentions: mentions}

	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchUserDirectory retrieves the mention candidate set. The directory is
// not cached across sessions.
func (c *Client) FetchUserDirectory(ctx context.Context) ([]models.MentionCandidate, error) {
	var out []models.MentionCandidate
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchConversations retrieves the conversations the user participates in
func (c *Client) FetchConversations(ctx context.Context) ([]*models.Conversation, error) {
	var out []*models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// APIError is a non-2xx response from the backend
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rest: server returned %d: %s", e.Status, e.Body)
}

// do performs one request/response round trip with JSON bodies
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
