/*
Package user contains the core data structure for user identity.

The messaging core never owns user accounts; it holds them by reference. This struct
is the denormalized slice of identity that live events and conversation listings need
to render without a follow-up fetch.
*/
package user

// User represents the identity of a marketplace participant as seen by the
// realtime layer. Fields use JSON tags for serialization in live events.
type User struct {
	// ID is the unique identifier for the user, issued by the auth subsystem.
	ID string `json:"id"`

	// Nickname is the display name shown in conversation lists and notifications.
	Nickname string `json:"nickname"`

	// Avatar is the URI of the user's avatar image.
	Avatar string `json:"avatar,omitempty"`

	// Role is the marketplace role ("customer", "provider" or "admin").
	Role string `json:"role"`
}
