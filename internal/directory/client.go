// Package directory implements the clinic directory REST collaborator:
// conversation create-or-get, inbox listing and history retrieval.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinwire/clinic-console/internal/chat"
	"github.com/clinwire/clinic-console/internal/observability/metrics"
	"github.com/clinwire/clinic-console/pkg/logging"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// ErrUnauthorized is returned when the API rejects the session token; the
// caller should force a fresh login.
var ErrUnauthorized = errors.New("directory: session token rejected")

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
}

// Config controls how the directory client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.ChatMetrics
	Tracer     trace.Tracer
	Tokens     TokenSource
}

// Client wraps the clinic chat directory endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.ChatMetrics
	tracer     trace.Tracer
	tokens     TokenSource
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("directory: token source is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.directory")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		tokens:     cfg.Tokens,
	}, nil
}

// CreateOrGetChat returns the 1:1 conversation with recipientID, creating
// it server-side if it does not exist yet.
func (c *Client) CreateOrGetChat(ctx context.Context, recipientID string) (chat.Conversation, error) {
	ctx, span := c.tracer.Start(ctx, "directory.create_or_get_chat")
	defer span.End()

	body := map[string]string{"recipient_id": recipientID}
	var conv chat.Conversation
	err := c.do(ctx, http.MethodPost, "/chats/", body, &conv)
	c.observe(span, "create_or_get_chat", err)
	if err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// ListChats returns every conversation the signed-in user participates in.
func (c *Client) ListChats(ctx context.Context) ([]chat.Conversation, error) {
	ctx, span := c.tracer.Start(ctx, "directory.list_chats")
	defer span.End()

	var convs []chat.Conversation
	err := c.do(ctx, http.MethodGet, "/chats/personal", nil, &convs)
	c.observe(span, "list_chats", err)
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ChatHistory returns the ordered message history of one conversation.
func (c *Client) ChatHistory(ctx context.Context, chatID string) ([]chat.Message, error) {
	ctx, span := c.tracer.Start(ctx, "directory.chat_history")
	defer span.End()

	var msgs []chat.Message
	err := c.do(ctx, http.MethodGet, "/chats/personal/"+chatID+"/messages", nil, &msgs)
	c.observe(span, "chat_history", err)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) observe(span trace.Span, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	c.metrics.ObserveDirectoryCall(operation, status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("directory: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("directory: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("directory: %s %s: %s", method, path, errorDetail(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directory: decode response: %w", err)
	}
	return nil
}

// errorDetail extracts the FastAPI-style {"detail": ...} error body.
func errorDetail(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return fmt.Sprintf("%s (%s)", payload.Detail, resp.Status)
	}
	return resp.Status
}
