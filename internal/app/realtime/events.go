/*
Package realtime contains the core logic for the live channel: presence tracking,
message relay, typing indicators, and notification fan-out.

This file defines the closed set of event types exchanged over the live channel and
the typed payload for each. Every event travels in the same envelope so both sides
can discriminate on the type tag instead of duck-typing fields.
*/
package realtime

import (
	"encoding/json"
	"time"
)

// EventType tags every envelope on the live channel.
type EventType string

// Client to server events.
const (
	// EventAddUser re-registers presence after a reconnect. The authenticated
	// handshake already registered the session, so this is usually a no-op.
	EventAddUser EventType = "add_user"

	// EventSendMessage asks the server to relay an already-persisted message to the
	// recipient's live sessions. Persistence happens over REST, independently.
	EventSendMessage EventType = "send_message"

	// EventTypingStart and EventTypingStop propagate typing liveness signals.
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"

	// EventRemoveNotification synchronizes read-state across a user's devices.
	EventRemoveNotification EventType = "remove_notification"
)

// Server to client events.
const (
	// EventGetUsers carries the full online-presence snapshot.
	EventGetUsers EventType = "get_users"

	// EventGetMessage is the live delivery of a persisted message.
	EventGetMessage EventType = "get_message"

	// EventUserTyping is the typing indicator update relayed to the target.
	EventUserTyping EventType = "user_typing"

	// Notification fan-out events. Payloads are denormalized so clients can render
	// without a follow-up fetch.
	EventFriendRequestSent     EventType = "friend_request_sent"
	EventFriendRequestAccepted EventType = "friend_request_accepted"
	EventNewBooking            EventType = "new_booking_notification"
	EventBookingStatus         EventType = "booking_status_notification"

	// EventNotificationRemoved tells a user's other devices to drop a notification.
	EventNotificationRemoved EventType = "notification_removed"
)

// Event is the envelope for everything exchanged over the live channel.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an envelope by marshaling the typed payload.
func NewEvent(eventType EventType, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Type:    eventType,
		Payload: raw,
	}, nil
}

// OnlineUser is one entry of the presence snapshot.
type OnlineUser struct {
	UserID string `json:"userId"`
}

// SendMessagePayload is the client's relay request for a persisted message.
type SendMessagePayload struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

// MessagePayload is the live delivery of a persisted message (EventGetMessage).
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TypingPayload is the client-side typing start/stop signal.
type TypingPayload struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// UserTypingPayload is the indicator update pushed to the target (EventUserTyping).
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// RemoveNotificationPayload is the client's mark-as-read signal.
type RemoveNotificationPayload struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
}

// NotificationRemovedPayload converges read-state on a user's other devices.
type NotificationRemovedPayload struct {
	NotificationID string `json:"notificationId"`
}

// FriendRequestPayload announces a new pending friend request to its recipient.
type FriendRequestPayload struct {
	NotificationID string    `json:"notificationId"`
	RequestID      string    `json:"requestId"`
	RequesterID    string    `json:"requesterId"`
	RequesterName  string    `json:"requesterName"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FriendAcceptedPayload announces an accepted friend request to the original requester.
type FriendAcceptedPayload struct {
	NotificationID string    `json:"notificationId"`
	RequestID      string    `json:"requestId"`
	FriendID       string    `json:"friendId"`
	FriendName     string    `json:"friendName"`
	AcceptedAt     time.Time `json:"acceptedAt"`
}

// BookingPayload carries a booking lifecycle notification to the affected party.
// EventType distinguishes creation from status transitions; Status holds the
// lifecycle state ("accepted", "in_progress", "completed", "cancelled").
type BookingPayload struct {
	NotificationID string    `json:"notificationId"`
	BookingID      string    `json:"bookingId"`
	CustomerID     string    `json:"customerId"`
	CustomerName   string    `json:"customerName"`
	ServiceTitle   string    `json:"serviceTitle"`
	Status         string    `json:"status,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}
