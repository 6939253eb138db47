package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

func TestMessageIDIsValidUUID(t *testing.T) {
	id := MessageID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestNotificationIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NotificationID()
		require.False(t, seen[id], "duplicate notification id %s", id)
		seen[id] = true
	}
}

func TestTempIDShape(t *testing.T) {
	id, err := TempID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, TempIDPrefix))
	assert.Len(t, id, len(TempIDPrefix)+TempIDRawLength)
	assert.True(t, IsTempID(id))
}

func TestIsTempIDRejectsNonTempIdentifiers(t *testing.T) {
	assert.False(t, IsTempID(""))
	assert.False(t, IsTempID(MessageID()))
	assert.False(t, IsTempID("tmp_"))
	assert.False(t, IsTempID("tmp_short"))
	assert.False(t, IsTempID("tmp_toolongtobevalid"))
	assert.False(t, IsTempID("tmp_abc!def-12"))
	assert.False(t, IsTempID("TMP_0123456789"))
}
