package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPairOrdersLexically(t *testing.T) {
	low, high := CanonicalPair("bbbb", "aaaa")
	assert.Equal(t, "aaaa", low)
	assert.Equal(t, "bbbb", high)

	low, high = CanonicalPair("aaaa", "bbbb")
	assert.Equal(t, "aaaa", low)
	assert.Equal(t, "bbbb", high)
}

func TestCanonicalPairIsSymmetric(t *testing.T) {
	a := "7f3d9c1a-0000-4000-8000-000000000001"
	b := "1a2b3c4d-0000-4000-8000-000000000002"

	lowAB, highAB := CanonicalPair(a, b)
	lowBA, highBA := CanonicalPair(b, a)

	assert.Equal(t, lowAB, lowBA)
	assert.Equal(t, highAB, highBA)
}

func TestCanonicalPairNormalizesCase(t *testing.T) {
	// Mixed-case UUIDs must map to the same key as their lowercase form,
	// otherwise the same pair could yield two conversation rows.
	lowMixed, highMixed := CanonicalPair("AAAA-BBBB", "cccc-dddd")
	lowLower, highLower := CanonicalPair("aaaa-bbbb", "cccc-dddd")

	assert.Equal(t, lowLower, lowMixed)
	assert.Equal(t, highLower, highMixed)
}

func TestConversationMembershipHelpers(t *testing.T) {
	conversation := &Conversation{
		ID:        "c-1",
		MemberLow: "alice",
		MemberHi:  "bob",
	}

	assert.Equal(t, [2]string{"alice", "bob"}, conversation.Members())

	assert.True(t, conversation.HasMember("alice"))
	assert.True(t, conversation.HasMember("bob"))
	assert.False(t, conversation.HasMember("mallory"))

	assert.Equal(t, "bob", conversation.OtherMember("alice"))
	assert.Equal(t, "alice", conversation.OtherMember("bob"))
	assert.Empty(t, conversation.OtherMember("mallory"))
}
