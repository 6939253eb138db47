/*
Package realtime contains the core logic for the live channel.

This file defines the Hub, the coordinator that owns the presence registry and
implements the message relay, the typing tracker, and the per-user fan-out used by
the notification layer. All live-channel behavior funnels through here so the
registry has exactly one mutating owner.
*/
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"marketchat/internal/pkg/logx"
)

// Bridge publishes events for users with no session on this instance so sibling
// instances can deliver them. A nil Bridge limits fan-out to local sessions.
type Bridge interface {
	Publish(userID string, event Event) error
}

// Hub coordinates everything that happens on the live channel.
type Hub struct {
	registry *Registry

	// bridge is the optional cross-instance fan-out. May be nil.
	bridge Bridge

	// typingMu protects typingTargets.
	typingMu sync.Mutex

	// typingTargets records, per session, the set of users that session is
	// currently typing to. Used to emit implicit stop signals on disconnect.
	typingTargets map[Session]map[string]struct{}

	logger zerolog.Logger
}

// NewHub constructs a Hub around a fresh presence registry.
func NewHub() *Hub {
	return &Hub{
		registry:      NewRegistry(),
		typingTargets: make(map[Session]map[string]struct{}),
		logger:        logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// SetBridge attaches the cross-instance fan-out bridge. Call before serving traffic.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// Registry exposes read access to presence for handlers and diagnostics.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register adds a session to the presence registry and broadcasts the updated
// online-user snapshot to every connected session. Registry operations never
// produce user-visible errors.
func (h *Hub) Register(s Session) {
	h.registry.Register(s)
	h.broadcastPresence()
}

// Deregister removes a session, emits implicit typing-stop signals for every user
// the session was typing to, and broadcasts the updated presence snapshot.
// Safe to call more than once for the same session.
func (h *Hub) Deregister(s Session) {
	h.typingMu.Lock()
	targets := h.typingTargets[s]
	delete(h.typingTargets, s)
	h.typingMu.Unlock()

	for targetID := range targets {
		h.pushUserTyping(s.UserID(), targetID, false)
	}

	h.registry.Deregister(s)
	h.broadcastPresence()
}

// broadcastPresence pushes the full online snapshot to all sessions. A full
// broadcast is acceptable at this system's scale.
func (h *Hub) broadcastPresence() {
	event, err := NewEvent(EventGetUsers, h.registry.Snapshot())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build presence snapshot event.")
		return
	}

	for _, s := range h.registry.AllSessions() {
		s.Push(event)
	}
}

// RelayMessage delivers an already-persisted message to the recipient's live
// sessions and echoes it to the sender's other sessions for cross-tab consistency.
// The originating session is skipped: it already holds the optimistic entry.
// No live session anywhere is a silent no-op; the recipient catches up on the
// next REST fetch. Callers must invoke this exactly once per persisted message.
func (h *Hub) RelayMessage(msg MessagePayload, receiverID string, origin Session) {
	event, err := NewEvent(EventGetMessage, msg)
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to build message event.")
		return
	}

	delivered := h.pushToUser(receiverID, event, origin)

	// Self-echo to the sender's other devices.
	for _, s := range h.registry.SessionsFor(msg.SenderID) {
		if s == origin {
			continue
		}
		s.Push(event)
	}

	if !delivered {
		if h.bridge != nil {
			if err := h.bridge.Publish(receiverID, event); err != nil {
				h.logger.Warn().Err(err).
					Str("message_id", msg.ID).
					Msg("Bridge publish failed, live delivery skipped.")
			}
			return
		}

		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("receiver_id", receiverID).
			Msg("Recipient offline, live delivery skipped.")
	}
}

// Typing relays a typing start/stop signal to the target's sessions. Self-typing
// is meaningless and filtered here at the boundary. Offline targets are a no-op.
func (h *Hub) Typing(typerID, targetID string, isTyping bool, origin Session) {
	if typerID == targetID || typerID == "" || targetID == "" {
		return
	}

	if origin != nil {
		h.typingMu.Lock()
		if isTyping {
			set, ok := h.typingTargets[origin]
			if !ok {
				set = make(map[string]struct{})
				h.typingTargets[origin] = set
			}
			set[targetID] = struct{}{}
		} else if set, ok := h.typingTargets[origin]; ok {
			delete(set, targetID)
			if len(set) == 0 {
				delete(h.typingTargets, origin)
			}
		}
		h.typingMu.Unlock()
	}

	h.pushUserTyping(typerID, targetID, isTyping)
}

func (h *Hub) pushUserTyping(typerID, targetID string, isTyping bool) {
	event, err := NewEvent(EventUserTyping, UserTypingPayload{
		UserID:   typerID,
		IsTyping: isTyping,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build typing event.")
		return
	}

	for _, s := range h.registry.SessionsFor(targetID) {
		s.Push(event)
	}
}

// NotifyUser pushes a notification event to every live session of the user.
// When the user has no local session and a bridge is configured, the event is
// published so sibling instances can deliver it.
func (h *Hub) NotifyUser(userID string, event Event) {
	if h.pushToUser(userID, event, nil) {
		return
	}

	if h.bridge != nil {
		if err := h.bridge.Publish(userID, event); err != nil {
			h.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("event_type", string(event.Type)).
				Msg("Bridge publish failed, event dropped.")
		}
	}
}

// DeliverLocal pushes an event to the user's sessions on this instance only.
// The bridge calls this for events received from sibling instances; it must not
// re-publish or the event would loop.
func (h *Hub) DeliverLocal(userID string, event Event) {
	h.pushToUser(userID, event, nil)
}

// RemoveNotification converges read-state across a user's devices: every session
// of the user except the initiating one is told to drop the notification.
func (h *Hub) RemoveNotification(userID, notificationID string, origin Session) {
	event, err := NewEvent(EventNotificationRemoved, NotificationRemovedPayload{
		NotificationID: notificationID,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build notification_removed event.")
		return
	}

	for _, s := range h.registry.SessionsFor(userID) {
		if s == origin {
			continue
		}
		s.Push(event)
	}
}

// pushToUser pushes the event to every session of the user except skip.
// Reports whether at least one session received it.
func (h *Hub) pushToUser(userID string, event Event, skip Session) bool {
	delivered := false
	for _, s := range h.registry.SessionsFor(userID) {
		if s == skip {
			continue
		}
		s.Push(event)
		delivered = true
	}
	return delivered
}
