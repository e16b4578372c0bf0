package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luispaiva/chatsync/internal/model"
	"go.uber.org/zap"
)

// CredentialProvider supplies the bearer token attached to every call.
// Returning ErrAuthRequired (or any error) skips the network attempt.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider backed by a fixed token string.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrAuthRequired
	}
	return string(t), nil
}

// Per-operation timeouts.
const (
	sendTimeout     = 10 * time.Second
	markReadTimeout = 5 * time.Second
)

// Client is the request/response API client. All errors it returns are
// classified: ErrAuthRequired, *UnreachableError, or *ServerError.
type Client struct {
	base   string
	http   *http.Client
	creds  CredentialProvider
	logger *zap.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, creds CredentialProvider, logger *zap.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{},
		creds:  creds,
		logger: logger,
	}
}

// Health probes GET /health with the given timeout. Any non-nil return
// means the backend should be treated as unreachable.
func (c *Client) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, "/health", nil, "health")
	return err
}

// SendRequest is the payload for a direct message send.
type SendRequest struct {
	ConversationID string             `json:"conversationId"`
	Content        string             `json:"content,omitempty"`
	Attachments    []model.Attachment `json:"attachments,omitempty"`
}

// SendMessage posts a message and returns the server-confirmed copy.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodPost, "/messages", req, "send message")
	if err != nil {
		return nil, err
	}

	var wire model.WireMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("send message: decode response: %w", err)
	}
	msg := wire.ToMessage()
	if msg.ConversationID == "" {
		msg.ConversationID = req.ConversationID
	}
	return &msg, nil
}

// MarkRead marks every message in a conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	ctx, cancel := context.WithTimeout(ctx, markReadTimeout)
	defer cancel()
	path := "/conversations/" + conversationID + "/read"
	_, err := c.do(ctx, http.MethodPut, path, nil, "mark read")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any, op string) ([]byte, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, ErrAuthRequired
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts, refused connections, DNS failures: all unreachable.
		return nil, &UnreachableError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthRequired
	case resp.StatusCode >= 500:
		return nil, &ServerError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	return data, nil
}
