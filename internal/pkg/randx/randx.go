/*
Package randx provides functions for generating cryptographically secure random identifiers.

It is primarily used to generate UUID message and notification identifiers, plus the
short Base62 temp IDs clients attach to optimistic sends.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// TempIDPrefix is the required prefix for client-generated optimistic message IDs.
	TempIDPrefix = "tmp_"

	// TempIDRawLength is the fixed length of the Base62 part of a temp ID.
	TempIDRawLength = 10
)

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// ConversationID generates a standard UUID v4 string to identify a conversation.
func ConversationID() string {
	return uuid.New().String()
}

// FriendRequestID generates a standard UUID v4 string to identify a friend request.
func FriendRequestID() string {
	return uuid.New().String()
}

// NotificationID generates a standard UUID v4 string to identify a pushed notification.
func NotificationID() string {
	return uuid.New().String()
}

// TempID generates a client-side temporary identifier used to reconcile an
// optimistically appended message with its server-confirmed record.
func TempID() (string, error) {
	result := make([]byte, TempIDRawLength)

	for i := 0; i < TempIDRawLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for temp id: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return TempIDPrefix + string(result), nil
}

// IsTempID reports whether the given identifier is a client-generated temp ID.
func IsTempID(id string) bool {
	if !strings.HasPrefix(id, TempIDPrefix) {
		return false
	}

	rawID := id[len(TempIDPrefix):]

	if len(rawID) != TempIDRawLength {
		return false
	}

	for _, char := range rawID {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
