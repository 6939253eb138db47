/*
Package realtime contains the core logic for the live channel.

This file defines the Client struct, representing one active WebSocket connection.
It manages the connection lifecycle, the read and write pumps, and the dispatch of
inbound events to the Hub. A Client is the concrete Session used in production.
*/
package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketchat/internal/app/user"
	"marketchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an event sent by the client.
	maxMessageSize = 8192

	// MaxTextBytes is the maximum allowed size (in bytes) for message text relayed live.
	MaxTextBytes = 5000
)

// Client represents an active WebSocket connection and its associated user.
type Client struct {
	// hub is the coordinator this client reports to.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// user is the authenticated owner of the connection.
	user user.User

	// connectedAt records when the session was established.
	connectedAt time.Time

	// send is a buffered channel queueing events waiting to be written out.
	send chan []byte

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(hub *Hub, wsConn *websocket.Conn, u user.User) *Client {
	clientLogger := logx.Logger().With().
		Str("client_id", u.ID).
		Logger()

	return &Client{
		hub:         hub,
		conn:        wsConn,
		user:        u,
		connectedAt: time.Now(),
		send:        make(chan []byte, 256),
		logger:      clientLogger,
	}
}

// UserID implements Session.
func (c *Client) UserID() string {
	return c.user.ID
}

// Push implements Session. Delivery is best-effort: a full send queue drops the
// event rather than blocking the caller. The recipient converges on the next
// REST fetch.
func (c *Client) Push(event Event) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Error marshaling event for client")
		return
	}

	select {
	case c.send <- eventBytes:
	default:
		c.logger.Warn().
			Int("queue_len", len(c.send)).
			Str("event_type", string(event.Type)).
			Msg("Client send channel full, dropping event")
	}
}

// ReadPump handles reading events from the WebSocket connection.
// It handles heartbeats (Pong), event parsing, and performs cleanup upon
// connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading event (client close/going away)")
			}
			break
		}

		c.processInboundEvent(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the ReadPump terminates.
// Transport failure is handled here and never bubbles to business logic.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.Deregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundEvent handles raw byte events received from the client.
// Malformed envelopes and unknown types are logged and discarded, never surfaced.
func (c *Client) processInboundEvent(messageBytes []byte) {
	var event Event
	if err := json.Unmarshal(messageBytes, &event); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	switch event.Type {
	case EventAddUser:
		// The handshake already registered this session; re-register to
		// self-correct after a missed disconnect.
		c.hub.Register(c)

	case EventSendMessage:
		c.handleSendMessage(event.Payload)

	case EventTypingStart:
		c.handleTyping(event.Payload, true)

	case EventTypingStop:
		c.handleTyping(event.Payload, false)

	case EventRemoveNotification:
		c.handleRemoveNotification(event.Payload)

	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Client sent unsupported event type")
	}
}

// handleSendMessage relays a persisted message to the recipient's live sessions.
// The durable write happened over REST; this path is purely a latency optimization,
// so a bad payload is dropped without an error response.
func (c *Client) handleSendMessage(payloadBytes json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid send_message payload")
		return
	}

	if payload.ReceiverID == "" || payload.ConversationID == "" {
		c.logger.Warn().Msg("Client sent send_message payload with missing fields")
		return
	}

	if len(payload.Text) > MaxTextBytes {
		c.logger.Warn().Int("text_bytes", len(payload.Text)).Msg("Client sent oversized message text, dropping")
		return
	}

	// The sender field is taken from the authenticated session, not the payload.
	msg := MessagePayload{
		ConversationID: payload.ConversationID,
		SenderID:       c.user.ID,
		SenderName:     c.user.Nickname,
		Text:           payload.Text,
		CreatedAt:      time.Now().UTC(),
	}

	c.hub.RelayMessage(msg, payload.ReceiverID, c)
}

// handleTyping relays a typing start/stop signal to the target user.
func (c *Client) handleTyping(payloadBytes json.RawMessage, isTyping bool) {
	var payload TypingPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid typing payload")
		return
	}

	c.hub.Typing(c.user.ID, payload.TargetUserID, isTyping, c)
}

// handleRemoveNotification propagates a mark-as-read to the user's other devices.
func (c *Client) handleRemoveNotification(payloadBytes json.RawMessage) {
	var payload RemoveNotificationPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid remove_notification payload")
		return
	}

	if payload.NotificationID == "" {
		c.logger.Warn().Msg("Client sent remove_notification payload with missing id")
		return
	}

	c.hub.RemoveNotification(c.user.ID, payload.NotificationID, c)
}

// WritePump handles writing queued events from the send channel to the WebSocket
// connection, interleaved with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one queued event to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
