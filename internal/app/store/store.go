/*
Package store implements the durable persistence layer for conversations, messages,
and friend requests on PostgreSQL.

The REST surface is the authoritative source of message ordering; the live channel
only ever signals that new rows exist here. Messages are immutable once written.
*/
package store

import (
	"context"
	"strings"
	"time"
)

// Conversation is a durable two-party thread. Members are held in canonical order
// so at most one conversation exists per unordered pair.
type Conversation struct {
	ID        string    `json:"id"`
	MemberLow string    `json:"-"`
	MemberHi  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`

	// Denormalized latest-message pointer for conversation list rendering.
	LastMessageID   string     `json:"lastMessageId,omitempty"`
	LastMessageBody string     `json:"lastMessageBody,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
}

// Members returns both member IDs of the conversation.
func (c *Conversation) Members() [2]string {
	return [2]string{c.MemberLow, c.MemberHi}
}

// HasMember reports whether the given user belongs to the conversation.
func (c *Conversation) HasMember(userID string) bool {
	return c.MemberLow == userID || c.MemberHi == userID
}

// OtherMember returns the member that is not userID. Empty when userID is not a member.
func (c *Conversation) OtherMember(userID string) string {
	switch userID {
	case c.MemberLow:
		return c.MemberHi
	case c.MemberHi:
		return c.MemberLow
	}
	return ""
}

// Message is an immutable durable unit belonging to exactly one conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FriendRequest is a pending or accepted connection request between two users.
type FriendRequest struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requesterId"`
	RecipientID string     `json:"recipientId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
}

// UserRecord mirrors the reference user data held by the auth subsystem.
type UserRecord struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the persistence operations the realtime service depends on.
// PostgresStore is the production implementation; tests substitute in-memory fakes.
type Store interface {
	Close()
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id string) (*UserRecord, error)

	GetOrCreateConversation(ctx context.Context, userA, userB string) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)

	CreateMessage(ctx context.Context, conversationID, senderID, body string) (*Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	CreateFriendRequest(ctx context.Context, requesterID, recipientID string) (*FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, id, recipientID string) (*FriendRequest, error)
	CountPendingFriendRequests(ctx context.Context, recipientID string) (int64, error)
}

// CanonicalPair orders two user IDs so the same unordered pair always maps to the
// same (low, high) key. IDs are lowercased to match PostgreSQL's byte-wise UUID
// ordering regardless of how the caller formatted them.
func CanonicalPair(a, b string) (low, high string) {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a < b {
		return a, b
	}
	return b, a
}
