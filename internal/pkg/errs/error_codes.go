/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Conversation and Message Business Logic Errors
const (
	// ErrConversationNotFound indicates that the requested conversation does not exist.
	ErrConversationNotFound = 2101

	// ErrNotConversationMember indicates that the caller is not a member of the conversation.
	ErrNotConversationMember = 2102

	// ErrConversationWithSelf indicates an attempt to open a conversation with oneself.
	ErrConversationWithSelf = 2103

	// ErrMessageContentTooLong indicates that the message body exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that the message body was empty.
	ErrMessageContentEmpty = 2202
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the request lacks a valid identity token.
	ErrUnauthorized = 3001

	// ErrUserNotFound indicates that the referenced user account does not exist.
	ErrUserNotFound = 3002

	// ErrFriendRequestExists indicates a pending friend request already exists for the pair.
	ErrFriendRequestExists = 3101

	// ErrFriendRequestNotFound indicates that the referenced friend request does not exist.
	ErrFriendRequestNotFound = 3102

	// ErrFriendRequestToSelf indicates an attempt to send a friend request to oneself.
	ErrFriendRequestToSelf = 3103
)

// 4xxx: Notification and Booking Event Errors
const (
	// ErrBookingEventTypeInvalid indicates an unrecognized booking lifecycle event type.
	ErrBookingEventTypeInvalid = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
