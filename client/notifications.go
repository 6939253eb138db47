package client

import (
	"context"
	"encoding/json"
	"time"

	"marketchat/internal/app/realtime"
)

// Notification is one entry of the local notification feed. Payload keeps the
// raw typed payload so callers can decode the shape matching Type.
type Notification struct {
	ID         string
	Type       realtime.EventType
	Payload    json.RawMessage
	ReceivedAt time.Time
}

func decodePayload(event realtime.Event, out any) error {
	return json.Unmarshal(event.Payload, out)
}

// handleNotification validates and appends a pushed notification. Required
// fields are checked per type; anything malformed is logged and discarded so a
// bad push can never corrupt the feed.
func (c *Client) handleNotification(event realtime.Event) {
	notificationID, ok := c.validateNotification(event)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = append(c.notifications, Notification{
		ID:         notificationID,
		Type:       event.Type,
		Payload:    event.Payload,
		ReceivedAt: time.Now().UTC(),
	})

	// The friend-request badge counts arrivals, not unread feed entries. It is
	// only ever reset wholesale, never decremented per notification.
	if event.Type == realtime.EventFriendRequestSent {
		c.friendRequestCount++
	}
}

// validateNotification decodes the payload for the given type and checks the
// fields a client needs to render it. Returns the notification ID on success.
func (c *Client) validateNotification(event realtime.Event) (string, bool) {
	discard := func(reason string) (string, bool) {
		c.logger.Warn().
			Str("event_type", string(event.Type)).
			Str("reason", reason).
			Msg("Discarding malformed notification")
		return "", false
	}

	switch event.Type {
	case realtime.EventFriendRequestSent:
		var p realtime.FriendRequestPayload
		if err := decodePayload(event, &p); err != nil {
			return discard(err.Error())
		}
		if p.NotificationID == "" || p.RequesterID == "" {
			return discard("missing notification or requester id")
		}
		return p.NotificationID, true

	case realtime.EventFriendRequestAccepted:
		var p realtime.FriendAcceptedPayload
		if err := decodePayload(event, &p); err != nil {
			return discard(err.Error())
		}
		if p.NotificationID == "" || p.FriendID == "" {
			return discard("missing notification or friend id")
		}
		return p.NotificationID, true

	case realtime.EventNewBooking:
		var p realtime.BookingPayload
		if err := decodePayload(event, &p); err != nil {
			return discard(err.Error())
		}
		if p.NotificationID == "" || p.BookingID == "" {
			return discard("missing notification or booking id")
		}
		return p.NotificationID, true

	case realtime.EventBookingStatus:
		var p realtime.BookingPayload
		if err := decodePayload(event, &p); err != nil {
			return discard(err.Error())
		}
		if p.NotificationID == "" || p.BookingID == "" {
			return discard("missing notification or booking id")
		}
		if !realtime.ValidBookingStatus(p.Status) {
			return discard("unknown booking status " + p.Status)
		}
		return p.NotificationID, true
	}

	return discard("unrecognized notification type")
}

// handleNotificationRemoved drops a notification that was marked as read on
// another of this user's devices.
func (c *Client) handleNotificationRemoved(event realtime.Event) {
	var payload realtime.NotificationRemovedPayload
	if err := decodePayload(event, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed notification removal")
		return
	}

	if payload.NotificationID == "" {
		return
	}

	c.mu.Lock()
	c.removeNotificationLocked(payload.NotificationID)
	c.mu.Unlock()
}

// MarkAsRead removes the notification locally and tells the server so the
// user's other devices converge. The friend-request badge is untouched.
func (c *Client) MarkAsRead(notificationID string) {
	c.mu.Lock()
	removed := c.removeNotificationLocked(notificationID)
	c.mu.Unlock()

	if !removed {
		return
	}

	c.writeEvent(mustEvent(realtime.EventRemoveNotification, realtime.RemoveNotificationPayload{
		NotificationID: notificationID,
		UserID:         c.userID,
	}))
}

func (c *Client) removeNotificationLocked(notificationID string) bool {
	for i := range c.notifications {
		if c.notifications[i].ID == notificationID {
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// ClearFriendRequestNotifications resets the friend-request badge and drops the
// corresponding feed entries, mirroring a visit to the requests screen.
func (c *Client) ClearFriendRequestNotifications() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.friendRequestCount = 0

	kept := c.notifications[:0]
	for _, n := range c.notifications {
		if n.Type != realtime.EventFriendRequestSent {
			kept = append(kept, n)
		}
	}
	c.notifications = kept
}

// Notifications returns a copy of the current feed, oldest first.
func (c *Client) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// FriendRequestCount returns the local friend-request badge value.
func (c *Client) FriendRequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.friendRequestCount
}

// SyncFriendRequestCount replaces the local badge with the durable pending
// count, the baseline a fresh login starts from.
func (c *Client) SyncFriendRequestCount(ctx context.Context) error {
	count, err := c.api.FriendRequestCount(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.friendRequestCount = int(count)
	c.mu.Unlock()

	return nil
}
