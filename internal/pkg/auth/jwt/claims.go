package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JWT claims used by the realtime service.
// It includes the standard claims required by the JWT specification and the custom
// claims needed to identify a marketplace participant.
type Payload struct {
	// StandardClaims embeds the standard JWT fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer) used for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the unique identifier of the user the token was issued for.
	ID string `json:"id"`

	// Nickname is the display name carried so live events can render without a lookup.
	Nickname string `json:"nickname"`

	// Role is the marketplace role of the participant ("customer", "provider" or "admin").
	Role string `json:"role"`
}
