/*
Package client implements the sync layer one connected participant runs: it merges
live-pushed events with REST-fetched state so the conversation list, open message
history, and notification feed never show stale or duplicate data.

This file contains the thin typed REST wrapper. The REST path is the durable,
authoritative half of the dual-write send design; everything fetched here is ground
truth that live events only ever trigger an append to or a refetch of.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiEnvelope mirrors the server's standardized JSON response shape.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// APIError is a non-zero business code returned by the REST backend.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// api performs authenticated REST calls against the MarketChat backend.
type api struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPI(baseURL, token string, httpClient *http.Client) *api {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &api{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
	}
}

// do executes the request and unmarshals the envelope's data field into out.
func (a *api) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	res, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.Code != 0 {
		return &APIError{Code: envelope.Code, Message: envelope.Message}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// ListConversations fetches the caller's conversation list.
func (a *api) ListConversations(ctx context.Context) ([]Conversation, error) {
	var conversations []Conversation
	if err := a.do(ctx, http.MethodGet, "/api/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// StartConversation performs the idempotent get-or-create for the pair (caller, receiver).
func (a *api) StartConversation(ctx context.Context, receiverID string) (*Conversation, error) {
	var conversation Conversation
	body := map[string]string{"receiverId": receiverID}
	if err := a.do(ctx, http.MethodPost, "/api/conversations", body, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListMessages fetches the full chronological history of a conversation.
func (a *api) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var messages []Message
	if err := a.do(ctx, http.MethodGet, "/api/conversations/"+conversationID+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessage persists a message and returns the canonical record.
func (a *api) CreateMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	var message Message
	body := map[string]string{"text": text}
	if err := a.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/messages", body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// FriendRequestCount fetches the number of pending friend requests.
func (a *api) FriendRequestCount(ctx context.Context) (int64, error) {
	var data struct {
		Count int64 `json:"count"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/friend-requests/count", nil, &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}
