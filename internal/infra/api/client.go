// Package api implements the REST client for the marketplace messaging
// backend. It owns transport concerns only: auth headers, one
// refresh-and-retry on an expired token, bounded retry for transient
// failures, and a circuit breaker so polling stops hammering a dead backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"nestchat/internal/domain/chat"
	"nestchat/internal/infra/auth"
)

// Config defines REST client settings.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

// Client wraps the backend's conversation/message API.
type Client struct {
	base            string
	httpClient      *http.Client
	tokens          auth.TokenSource
	breaker         *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	logger          *slog.Logger
}

// NewClient builds a client around the given token source.
func NewClient(cfg Config, tokens auth.TokenSource, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retryMax := cfg.RetryMaxElapsed
	if retryMax <= 0 {
		retryMax = 10 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "nestchat-api",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("api breaker state change", "from", from.String(), "to", to.String())
			}
		},
	})
	return &Client{
		base:            cfg.BaseURL,
		httpClient:      &http.Client{Timeout: timeout},
		tokens:          tokens,
		breaker:         breaker,
		retryMaxElapsed: retryMax,
		logger:          logger,
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// do issues one authenticated request and decodes the JSON response into
// out. A 401 triggers exactly one token refresh followed by one replay.
func (c *Client) do(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	status, data, err := c.roundTrip(ctx, method, path, body, query)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if _, refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
			return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
		}
		status, data, err = c.roundTrip(ctx, method, path, body, query)
		if err != nil {
			return err
		}
	}
	if err := mapStatus(status, data, method, path); err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// roundTrip runs the HTTP exchange through the breaker with exponential
// backoff over network errors and 5xx responses. 4xx responses are returned
// to the caller without retrying.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any, query url.Values) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("api: marshal request: %w", err)
		}
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	type result struct {
		status int
		data   []byte
	}
	attempt := func() (any, error) {
		u := c.base + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("api: build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
		}
		return result{status: resp.StatusCode, data: data}, nil
	}

	run := func() (any, error) {
		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = c.retryMaxElapsed
		return backoff.RetryWithData(attempt, backoff.WithContext(policy, ctx))
	}
	v, err := c.breaker.Execute(run)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return 0, nil, err
	}
	res := v.(result)
	return res.status, res.data, nil
}

func mapStatus(status int, data []byte, method, path string) error {
	if status < http.StatusBadRequest {
		return nil
	}
	var body errorBody
	_ = json.Unmarshal(data, &body)
	detail := body.Error
	if detail == "" {
		detail = fmt.Sprintf("%s %s returned %d", method, path, status)
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, detail)
	}
}

// ListConversations returns every conversation the current user is part of,
// most recently active first.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation loads one conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var out chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations/"+id, nil, nil, &out); err != nil {
		return chat.Conversation{}, err
	}
	return out, nil
}

// ListMessages returns the messages of a conversation in ascending order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var out []chat.Message
	path := "/api/v1/conversations/" + conversationID + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a message and returns the server's authoritative record.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (chat.Message, error) {
	var out chat.Message
	path := "/api/v1/conversations/" + conversationID + "/messages"
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, path, body, nil, &out); err != nil {
		return chat.Message{}, err
	}
	return out, nil
}

// MarkRead marks every message in the conversation as read for the current
// user.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/conversations/"+conversationID+"/read", nil, nil, nil)
}

// CreateConversation asks the backend for a conversation with the given
// participant, optionally anchored to a property. The backend returns the
// existing thread when one already matches.
func (c *Client) CreateConversation(ctx context.Context, participantID, propertyID string) (chat.Conversation, error) {
	body := map[string]string{"participant_id": participantID}
	if propertyID != "" {
		body["property_id"] = propertyID
	}
	var out chat.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/v1/conversations", body, nil, &out); err != nil {
		return chat.Conversation{}, err
	}
	return out, nil
}

// DeleteConversation removes a conversation and its history.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/conversations/"+id, nil, nil, nil)
}

// SearchUsers finds users matching the query string.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]chat.User, error) {
	var out []chat.User
	q := url.Values{"q": []string{query}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/search", nil, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
