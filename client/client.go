/*
Package client implements the sync layer one connected participant runs.

This file defines the Client itself: connection management, the live-event read
loop, the reconciliation of REST-fetched state with pushed events, and the
dual-write send path with optimistic local echo and rollback.
*/
package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketchat/internal/app/realtime"
	"marketchat/internal/pkg/logx"
	"marketchat/internal/pkg/randx"
)

// Conversation is the client's view of one thread from the conversation list.
type Conversation struct {
	ID        string    `json:"id"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`

	LastMessageID   string     `json:"lastMessageId,omitempty"`
	LastMessageBody string     `json:"lastMessageBody,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`

	// Unread counts live messages received while the conversation was not open.
	// Local only; reset when the conversation is opened.
	Unread int `json:"-"`
}

// Message is one entry of the open conversation's history. Temp marks an
// optimistic local echo that has not yet been confirmed by the REST write.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`

	Temp bool `json:"-"`
}

// Config carries everything needed to connect one participant.
type Config struct {
	// BaseURL is the REST endpoint, e.g. "http://localhost:8080".
	BaseURL string

	// WSURL is the live-channel endpoint, e.g. "ws://localhost:8080/ws".
	WSURL string

	// Token is the identity JWT issued by the auth subsystem.
	Token string

	// UserID is the identifier the token was issued for.
	UserID string

	// HTTPClient overrides the REST transport. Optional.
	HTTPClient *http.Client

	// Clock overrides the timer source for the typing debounce. Optional.
	Clock Clock
}

// Client keeps one participant's view of the system consistent: the REST-fetched
// baseline merged with live events, across reconnects.
type Client struct {
	userID string
	api    *api
	wsURL  string
	token  string
	clock  Clock
	logger zerolog.Logger

	mu   sync.Mutex
	conn Conn

	conversations []Conversation

	// activeConversationID is the conversation whose history is currently open.
	activeConversationID string
	messages             []Message

	online map[string]bool

	// typingPeers tracks which users are currently typing to us.
	typingPeers map[string]bool

	notifications      []Notification
	friendRequestCount int

	typingOut map[string]Timer
}

// New constructs a Client. Call Connect before using the live-channel features.
func New(cfg Config) *Client {
	clock := cfg.Clock
	if clock == nil {
		clock = NewRealClock()
	}

	return &Client{
		userID:      cfg.UserID,
		api:         newAPI(cfg.BaseURL, cfg.Token, cfg.HTTPClient),
		wsURL:       cfg.WSURL,
		token:       cfg.Token,
		clock:       clock,
		logger:      logx.Logger().With().Str("component", "Client").Str("user_id", cfg.UserID).Logger(),
		online:      make(map[string]bool),
		typingPeers: make(map[string]bool),
		typingOut:   make(map[string]Timer),
	}
}

// Connect dials the live channel, announces presence, and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	sep := "?"
	if strings.Contains(c.wsURL, "?") {
		sep = "&"
	}

	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+sep+"token="+c.token, nil)
	if err != nil {
		return err
	}

	conn := newWSConn(wsConn)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := conn.WriteEvent(mustEvent(realtime.EventAddUser, realtime.OnlineUser{UserID: c.userID})); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to announce presence")
	}

	go c.readLoop(conn)

	return nil
}

// attach wires a pre-built transport in place of a dialed WebSocket connection.
// Used by tests to drive the read loop with fake connections.
func (c *Client) attach(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
}

// Close tears down the live connection. REST state remains fetchable.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop receives live events until the connection fails or is closed.
// Transport errors terminate the loop silently; the REST baseline remains
// authoritative and a reconnect re-fetches whatever was missed.
func (c *Client) readLoop(conn Conn) {
	for {
		event, err := conn.ReadEvent()
		if err != nil {
			c.mu.Lock()
			stillCurrent := c.conn == conn
			c.mu.Unlock()

			if stillCurrent {
				c.logger.Info().Err(err).Msg("Live channel closed")
			}
			return
		}

		c.handleEvent(event)
	}
}

// writeEvent queues an event on the live channel. Failures are logged and
// swallowed: the live path is a latency optimization, never load-bearing.
func (c *Client) writeEvent(event realtime.Event) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	if err := conn.WriteEvent(event); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to write live event")
	}
}

func mustEvent(eventType realtime.EventType, payload any) realtime.Event {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		// Payload types are local structs; marshaling them cannot fail at runtime.
		panic(err)
	}
	return event
}

// Refresh fetches the conversation list baseline over REST, preserving local
// unread counts for conversations that are still present.
func (c *Client) Refresh(ctx context.Context) error {
	conversations, err := c.api.ListConversations(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	unread := make(map[string]int, len(c.conversations))
	for _, conversation := range c.conversations {
		unread[conversation.ID] = conversation.Unread
	}
	for i := range conversations {
		conversations[i].Unread = unread[conversations[i].ID]
	}
	c.conversations = conversations

	return nil
}

// StartConversation performs the idempotent get-or-create against the pair
// (this user, receiver) and merges the result into the local list.
func (c *Client) StartConversation(ctx context.Context, receiverID string) (*Conversation, error) {
	conversation, err := c.api.StartConversation(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.conversations {
		if c.conversations[i].ID == conversation.ID {
			return conversation, nil
		}
	}
	c.conversations = append(c.conversations, *conversation)

	return conversation, nil
}

// OpenConversation fetches the message history of the conversation over REST and
// makes it the active one. The fetched order is authoritative and replaces
// whatever live events were applied before.
func (c *Client) OpenConversation(ctx context.Context, conversationID string) error {
	messages, err := c.api.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeConversationID = conversationID
	c.messages = messages

	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].Unread = 0
		}
	}

	return nil
}

// SendMessage runs the dual-write send path:
//  1. an optimistic temp entry is appended locally,
//  2. the live event is emitted so the recipient hears about the message
//     without waiting for a poll,
//  3. the REST write persists the message; on success the temp entry is
//     replaced with the canonical record, on failure it is rolled back and the
//     error returned so the caller can prompt a retry.
//
// The live emit and the REST write are independent; a failure of one never
// rolls back the other.
func (c *Client) SendMessage(ctx context.Context, conversationID, receiverID, text string) (*Message, error) {
	tempID, err := randx.TempID()
	if err != nil {
		return nil, err
	}

	temp := Message{
		ID:             tempID,
		ConversationID: conversationID,
		SenderID:       c.userID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		Temp:           true,
	}

	c.mu.Lock()
	if c.activeConversationID == conversationID {
		c.messages = append(c.messages, temp)
	}
	c.mu.Unlock()

	// Sending ends any in-flight typing session toward the recipient.
	c.StopTyping(receiverID)

	c.writeEvent(mustEvent(realtime.EventSendMessage, realtime.SendMessagePayload{
		SenderID:       c.userID,
		ReceiverID:     receiverID,
		Text:           text,
		ConversationID: conversationID,
	}))

	message, err := c.api.CreateMessage(ctx, conversationID, text)
	if err != nil {
		c.rollbackTemp(conversationID, tempID)
		return nil, err
	}

	c.confirmTemp(conversationID, tempID, *message)
	return message, nil
}

// rollbackTemp removes an optimistic entry whose REST write failed.
func (c *Client) rollbackTemp(conversationID, tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeConversationID != conversationID {
		return
	}

	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.ID != tempID {
			kept = append(kept, m)
		}
	}
	c.messages = kept
}

// confirmTemp replaces an optimistic entry with the server-confirmed record and
// updates the conversation list preview.
func (c *Client) confirmTemp(conversationID, tempID string, confirmed Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeConversationID == conversationID {
		replaced := false
		for i := range c.messages {
			if c.messages[i].ID == tempID {
				c.messages[i] = confirmed
				replaced = true
				break
			}
		}
		if !replaced {
			c.messages = append(c.messages, confirmed)
		}
	}

	c.updatePreviewLocked(confirmed)
}

// handleEvent dispatches one live event. Malformed payloads are logged and
// discarded so a bad event can never crash the client.
func (c *Client) handleEvent(event realtime.Event) {
	switch event.Type {
	case realtime.EventGetUsers:
		c.handlePresence(event)

	case realtime.EventGetMessage:
		c.handleMessage(event)

	case realtime.EventUserTyping:
		c.handleUserTyping(event)

	case realtime.EventFriendRequestSent,
		realtime.EventFriendRequestAccepted,
		realtime.EventNewBooking,
		realtime.EventBookingStatus:
		c.handleNotification(event)

	case realtime.EventNotificationRemoved:
		c.handleNotificationRemoved(event)

	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Discarding unknown live event")
	}
}

func (c *Client) handlePresence(event realtime.Event) {
	var users []realtime.OnlineUser
	if err := decodePayload(event, &users); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed presence snapshot")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.online = make(map[string]bool, len(users))
	for _, u := range users {
		if u.UserID != "" {
			c.online[u.UserID] = true
		}
	}
}

// handleMessage reconciles one live-delivered message with local state.
// Active conversation: append unless it duplicates an existing entry or our own
// optimistic echo. Inactive conversation: update the preview and unread count
// only; full history is fetched lazily when opened.
func (c *Client) handleMessage(event realtime.Event) {
	var payload realtime.MessagePayload
	if err := decodePayload(event, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed message event")
		return
	}

	if payload.ConversationID == "" {
		c.logger.Warn().Msg("Discarding message event without conversation id")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	incoming := Message{
		ID:             payload.ID,
		ConversationID: payload.ConversationID,
		SenderID:       payload.SenderID,
		Text:           payload.Text,
		CreatedAt:      payload.CreatedAt,
	}

	if c.activeConversationID == payload.ConversationID {
		if !c.duplicatesLocalLocked(incoming) {
			c.messages = append(c.messages, incoming)
		}
	} else {
		for i := range c.conversations {
			if c.conversations[i].ID == payload.ConversationID {
				c.conversations[i].Unread++
				break
			}
		}
	}

	c.updatePreviewLocked(incoming)
}

// duplicatesLocalLocked reports whether the incoming live message is already
// represented locally, either by server ID or as our own unconfirmed optimistic
// echo (matched by sender and text, since the relayed copy carries no server ID).
func (c *Client) duplicatesLocalLocked(incoming Message) bool {
	for i := range c.messages {
		m := &c.messages[i]

		if incoming.ID != "" && m.ID == incoming.ID {
			return true
		}

		if incoming.SenderID == c.userID && m.SenderID == c.userID && m.Text == incoming.Text && (m.Temp || incoming.ID == "") {
			return true
		}
	}
	return false
}

// updatePreviewLocked refreshes the conversation list's denormalized latest message.
func (c *Client) updatePreviewLocked(m Message) {
	for i := range c.conversations {
		if c.conversations[i].ID != m.ConversationID {
			continue
		}

		c.conversations[i].LastMessageID = m.ID
		c.conversations[i].LastMessageBody = m.Text
		at := m.CreatedAt
		c.conversations[i].LastMessageAt = &at
		return
	}
}

func (c *Client) handleUserTyping(event realtime.Event) {
	var payload realtime.UserTypingPayload
	if err := decodePayload(event, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed typing event")
		return
	}

	if payload.UserID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if payload.IsTyping {
		c.typingPeers[payload.UserID] = true
	} else {
		delete(c.typingPeers, payload.UserID)
	}
}

// Conversations returns a copy of the current conversation list.
func (c *Client) Conversations() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Conversation, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// Messages returns a copy of the open conversation's message list.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// IsOnline reports whether the given user appeared in the latest presence snapshot.
func (c *Client) IsOnline(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.online[userID]
}

// PeerIsTyping reports whether the given user is currently typing to us.
func (c *Client) PeerIsTyping(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.typingPeers[userID]
}
