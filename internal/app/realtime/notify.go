/*
Package realtime contains the core logic for the live channel.

This file defines the Notifier, which translates marketplace domain events (friend
requests, booking lifecycle transitions) into typed push events and fans them out to
the relevant user's live sessions. Payloads carry denormalized sender and booking
data so the client can render each notification without a follow-up fetch.
*/
package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"marketchat/internal/pkg/logx"
	"marketchat/internal/pkg/randx"
)

// Booking lifecycle states accepted by the booking-event hook.
const (
	BookingStatusAccepted   = "accepted"
	BookingStatusInProgress = "in_progress"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
)

// ValidBookingStatus reports whether the status is a known lifecycle state.
func ValidBookingStatus(status string) bool {
	switch status {
	case BookingStatusAccepted, BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// Notifier fans domain events out to users over the live channel.
type Notifier struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewNotifier constructs a Notifier bound to the given hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{
		hub:    hub,
		logger: logx.Logger().With().Str("component", "Notifier").Logger(),
	}
}

// FriendRequestSent notifies the recipient that a new friend request is pending.
// Returns the notification ID assigned to the event.
func (n *Notifier) FriendRequestSent(recipientID, requestID, requesterID, requesterName string, createdAt time.Time) string {
	notificationID := randx.NotificationID()

	event, err := NewEvent(EventFriendRequestSent, FriendRequestPayload{
		NotificationID: notificationID,
		RequestID:      requestID,
		RequesterID:    requesterID,
		RequesterName:  requesterName,
		CreatedAt:      createdAt,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build friend_request_sent event.")
		return notificationID
	}

	n.hub.NotifyUser(recipientID, event)
	return notificationID
}

// FriendRequestAccepted notifies the original requester that the request was accepted.
func (n *Notifier) FriendRequestAccepted(requesterID, requestID, friendID, friendName string, acceptedAt time.Time) string {
	notificationID := randx.NotificationID()

	event, err := NewEvent(EventFriendRequestAccepted, FriendAcceptedPayload{
		NotificationID: notificationID,
		RequestID:      requestID,
		FriendID:       friendID,
		FriendName:     friendName,
		AcceptedAt:     acceptedAt,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build friend_request_accepted event.")
		return notificationID
	}

	n.hub.NotifyUser(requesterID, event)
	return notificationID
}

// BookingCreated notifies a provider that a customer booked one of their services.
func (n *Notifier) BookingCreated(providerID string, booking BookingPayload) string {
	booking.NotificationID = randx.NotificationID()
	booking.Status = ""
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	event, err := NewEvent(EventNewBooking, booking)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build new_booking_notification event.")
		return booking.NotificationID
	}

	n.hub.NotifyUser(providerID, event)
	return booking.NotificationID
}

// BookingStatusChanged notifies the affected party of a booking lifecycle transition.
func (n *Notifier) BookingStatusChanged(recipientID string, booking BookingPayload) string {
	booking.NotificationID = randx.NotificationID()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	event, err := NewEvent(EventBookingStatus, booking)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to build booking_status_notification event.")
		return booking.NotificationID
	}

	n.hub.NotifyUser(recipientID, event)
	return booking.NotificationID
}
