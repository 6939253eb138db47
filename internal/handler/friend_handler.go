/*
Package handler provides HTTP handler functions for friend requests.

Creating or accepting a request persists first, then fans the event out over the
live channel so the affected user sees it without polling.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appdb "marketchat/internal/app/db"
	"marketchat/internal/pkg/errs"
	"marketchat/internal/pkg/logx"
	"marketchat/internal/pkg/req"
	"marketchat/internal/pkg/resp"
)

type SendFriendRequestInput struct {
	RecipientID string `json:"recipientId"`
}

// HandleSendFriendRequest records a pending friend request and notifies the
// recipient's live sessions.
func HandleSendFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		var input SendFriendRequestInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.RecipientID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.RecipientID == identity.ID {
			resp.RespondError(w, r, errs.NewError(errs.ErrFriendRequestToSelf))
			return
		}

		recipient, err := deps.Store.GetUser(r.Context(), input.RecipientID)
		if err != nil {
			logx.Error(err, "Failed to fetch friend request recipient", "recipient_id", input.RecipientID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if recipient == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		friendRequest, err := deps.Store.CreateFriendRequest(r.Context(), identity.ID, input.RecipientID)
		if err != nil {
			if appdb.IsUniqueViolation(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrFriendRequestExists))
				return
			}
			logx.Error(err, "Failed to create friend request")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		deps.Notifier.FriendRequestSent(
			friendRequest.RecipientID,
			friendRequest.ID,
			identity.ID,
			identity.Nickname,
			friendRequest.CreatedAt,
		)

		resp.RespondSuccess(w, r, friendRequest)
	}
}

// HandleAcceptFriendRequest flips a pending request to accepted and notifies the
// original requester's live sessions.
func HandleAcceptFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		requestID := chi.URLParam(r, "id")
		if requestID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		friendRequest, err := deps.Store.AcceptFriendRequest(r.Context(), requestID, identity.ID)
		if err != nil {
			logx.Error(err, "Failed to accept friend request", "request_id", requestID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if friendRequest == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFriendRequestNotFound))
			return
		}

		acceptedAt := time.Now().UTC()
		if friendRequest.AcceptedAt != nil {
			acceptedAt = *friendRequest.AcceptedAt
		}

		deps.Notifier.FriendRequestAccepted(
			friendRequest.RequesterID,
			friendRequest.ID,
			identity.ID,
			identity.Nickname,
			acceptedAt,
		)

		resp.RespondSuccess(w, r, friendRequest)
	}
}

// HandleFriendRequestCount returns the number of requests pending on the caller.
func HandleFriendRequestCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		count, err := deps.Store.CountPendingFriendRequests(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to count pending friend requests", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		data := map[string]int64{
			"count": count,
		}
		resp.RespondSuccess(w, r, data)
	}
}
