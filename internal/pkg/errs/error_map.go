/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Conversation and Message Business Logic Errors
	ErrConversationNotFound:  {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrNotConversationMember: {Code: ErrNotConversationMember, Message: "You are not part of this conversation.", Status: http.StatusForbidden},
	ErrConversationWithSelf:  {Code: ErrConversationWithSelf, Message: "You cannot start a conversation with yourself."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message cannot be empty."},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:          {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrUserNotFound:          {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrFriendRequestExists:   {Code: ErrFriendRequestExists, Message: "A friend request is already pending."},
	ErrFriendRequestNotFound: {Code: ErrFriendRequestNotFound, Message: "Friend request not found.", Status: http.StatusNotFound},
	ErrFriendRequestToSelf:   {Code: ErrFriendRequestToSelf, Message: "You cannot send a friend request to yourself."},

	// 4xxx: Notification and Booking Event Errors
	ErrBookingEventTypeInvalid: {Code: ErrBookingEventTypeInvalid, Message: "Unknown booking event type."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
