/*
Package handler provides the service-to-service hook for booking lifecycle events.

The bookings CRUD backend owns the durable booking state; it calls this endpoint
after each transition so the affected user's live sessions receive a notification.
*/
package handler

import (
	"net/http"

	"marketchat/internal/app/realtime"
	"marketchat/internal/pkg/errs"
	"marketchat/internal/pkg/req"
	"marketchat/internal/pkg/resp"
)

// Booking event kinds accepted from the CRUD backend.
const (
	BookingEventCreated       = "created"
	BookingEventStatusChanged = "status_changed"
)

type BookingEventInput struct {
	// Type is "created" or "status_changed".
	Type string `json:"type"`

	// RecipientID is the user whose live sessions receive the notification.
	RecipientID string `json:"recipientId"`

	BookingID    string `json:"bookingId"`
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	ServiceTitle string `json:"serviceTitle"`

	// Status is required for status_changed events.
	Status string `json:"status,omitempty"`

	Message string `json:"message"`
}

// HandleBookingEvent fans a booking lifecycle event out to the recipient.
// Delivery is best-effort: an offline recipient simply catches up on their next
// REST fetch of booking state, so the endpoint reports success either way.
func HandleBookingEvent(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		var input BookingEventInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.RecipientID == "" || input.BookingID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		payload := realtime.BookingPayload{
			BookingID:    input.BookingID,
			CustomerID:   input.CustomerID,
			CustomerName: input.CustomerName,
			ServiceTitle: input.ServiceTitle,
			Message:      input.Message,
		}

		var notificationID string

		switch input.Type {
		case BookingEventCreated:
			notificationID = deps.Notifier.BookingCreated(input.RecipientID, payload)

		case BookingEventStatusChanged:
			if !realtime.ValidBookingStatus(input.Status) {
				resp.RespondError(w, r, errs.NewError(errs.ErrBookingEventTypeInvalid))
				return
			}
			payload.Status = input.Status
			notificationID = deps.Notifier.BookingStatusChanged(input.RecipientID, payload)

		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrBookingEventTypeInvalid))
			return
		}

		data := map[string]string{
			"notificationId": notificationID,
		}
		resp.RespondSuccess(w, r, data)
	}
}
