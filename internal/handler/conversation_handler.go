/*
Package handler provides HTTP handler functions for conversations and messages.

These endpoints form the durable half of the dual-write send path: the canonical
message record comes from here, while the live channel carries the best-effort
instant-delivery copy independently.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"marketchat/internal/app/realtime"
	"marketchat/internal/app/store"
	"marketchat/internal/pkg/auth/jwt"
	"marketchat/internal/pkg/errs"
	"marketchat/internal/pkg/logx"
	"marketchat/internal/pkg/req"
	"marketchat/internal/pkg/resp"
)

// ConversationView is the JSON shape conversation listings are rendered with.
type ConversationView struct {
	ID        string    `json:"id"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`

	LastMessageID   string     `json:"lastMessageId,omitempty"`
	LastMessageBody string     `json:"lastMessageBody,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
}

func conversationView(c *store.Conversation) ConversationView {
	members := c.Members()
	return ConversationView{
		ID:              c.ID,
		MemberIDs:       []string{members[0], members[1]},
		CreatedAt:       c.CreatedAt,
		LastMessageID:   c.LastMessageID,
		LastMessageBody: c.LastMessageBody,
		LastMessageAt:   c.LastMessageAt,
	}
}

// requireIdentity extracts the authenticated identity or responds with 401.
// Returns nil when the response has already been written.
func requireIdentity(w http.ResponseWriter, r *http.Request) *jwt.Payload {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return nil
	}
	return identity
}

type StartConversationInput struct {
	// ReceiverID is the other party of the thread.
	ReceiverID string `json:"receiverId"`
}

// HandleStartConversation processes the idempotent get-or-create of the two-party
// thread between the caller and the receiver. Repeated calls for the same pair
// return the same conversation.
func HandleStartConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		var input StartConversationInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ReceiverID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.ReceiverID == identity.ID {
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationWithSelf))
			return
		}

		receiver, err := deps.Store.GetUser(r.Context(), input.ReceiverID)
		if err != nil {
			logx.Error(err, "Failed to fetch receiver", "receiver_id", input.ReceiverID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if receiver == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		conversation, err := deps.Store.GetOrCreateConversation(r.Context(), identity.ID, input.ReceiverID)
		if err != nil {
			logx.Error(err, "Failed to get or create conversation")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, conversationView(conversation))
	}
}

// HandleListConversations returns the caller's conversation list, most recently
// active first, with the denormalized latest message for list rendering.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		conversations, err := deps.Store.ListConversations(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list conversations", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		views := make([]ConversationView, 0, len(conversations))
		for i := range conversations {
			views = append(views, conversationView(&conversations[i]))
		}

		resp.RespondSuccess(w, r, views)
	}
}

// loadMemberConversation fetches the conversation and enforces membership.
// Returns nil when the response has already been written.
func loadMemberConversation(w http.ResponseWriter, r *http.Request, deps *AppDeps, userID string) *store.Conversation {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
		return nil
	}

	conversation, err := deps.Store.GetConversation(r.Context(), conversationID)
	if err != nil {
		logx.Error(err, "Failed to fetch conversation", "conversation_id", conversationID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return nil
	}
	if conversation == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrConversationNotFound))
		return nil
	}

	if !conversation.HasMember(userID) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotConversationMember))
		return nil
	}

	return conversation
}

// HandleListMessages returns the full chronological message history of a
// conversation. This ordering is authoritative; live events never reorder it.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		conversation := loadMemberConversation(w, r, deps, identity.ID)
		if conversation == nil {
			return
		}

		messages, err := deps.Store.ListMessages(r.Context(), conversation.ID)
		if err != nil {
			logx.Error(err, "Failed to list messages", "conversation_id", conversation.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

type CreateMessageInput struct {
	Text string `json:"text"`
}

// HandleCreateMessage persists a message and returns the canonical record the
// client replaces its optimistic entry with. Live relay is NOT triggered here:
// the sender emits the live event itself, keeping the durable write and the
// best-effort notify decoupled.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		conversation := loadMemberConversation(w, r, deps, identity.ID)
		if conversation == nil {
			return
		}

		var input CreateMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Text == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentEmpty))
			return
		}

		if len(input.Text) > realtime.MaxTextBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		message, err := deps.Store.CreateMessage(r.Context(), conversation.ID, identity.ID, input.Text)
		if err != nil {
			logx.Error(err, "Failed to create message", "conversation_id", conversation.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, message)
	}
}
