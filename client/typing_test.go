package client

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/app/realtime"
)

func decodeTyping(t *testing.T, event realtime.Event) realtime.TypingPayload {
	t.Helper()

	var payload realtime.TypingPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	return payload
}

func TestTypingBurstEmitsOneStartAndOneStop(t *testing.T) {
	c, conn, clock := newTestClient(t, "http://unused.invalid")

	// A burst of keystrokes within the debounce window.
	c.KeyPressed("bob")
	c.KeyPressed("bob")
	c.KeyPressed("bob")
	c.KeyPressed("bob")

	starts := conn.writtenOfType(realtime.EventTypingStart)
	require.Len(t, starts, 1)
	payload := decodeTyping(t, starts[0])
	assert.Equal(t, "alice", payload.UserID)
	assert.Equal(t, "bob", payload.TargetUserID)

	assert.Empty(t, conn.writtenOfType(realtime.EventTypingStop))

	// The quiet period elapses.
	clock.fire()

	stops := conn.writtenOfType(realtime.EventTypingStop)
	require.Len(t, stops, 1)
	assert.Equal(t, "bob", decodeTyping(t, stops[0]).TargetUserID)

	// A later spurious fire must not emit a second stop.
	clock.fire()
	assert.Len(t, conn.writtenOfType(realtime.EventTypingStop), 1)
}

func TestTypingResumeAfterStopStartsNewSession(t *testing.T) {
	c, conn, clock := newTestClient(t, "http://unused.invalid")

	c.KeyPressed("bob")
	clock.fire()

	c.KeyPressed("bob")
	clock.fire()

	assert.Len(t, conn.writtenOfType(realtime.EventTypingStart), 2)
	assert.Len(t, conn.writtenOfType(realtime.EventTypingStop), 2)
}

func TestStopTypingCancelsDebounce(t *testing.T) {
	c, conn, clock := newTestClient(t, "http://unused.invalid")

	c.KeyPressed("bob")
	c.StopTyping("bob")

	require.Len(t, conn.writtenOfType(realtime.EventTypingStop), 1)

	// The cancelled timer must not fire a second stop.
	clock.fire()
	assert.Len(t, conn.writtenOfType(realtime.EventTypingStop), 1)
}

func TestStopTypingWithoutSessionIsNoOp(t *testing.T) {
	c, conn, _ := newTestClient(t, "http://unused.invalid")

	c.StopTyping("bob")

	assert.Empty(t, conn.writtenOfType(realtime.EventTypingStop))
}

func TestTypingSessionsArePerTarget(t *testing.T) {
	c, conn, clock := newTestClient(t, "http://unused.invalid")

	c.KeyPressed("bob")
	c.KeyPressed("carol")

	starts := conn.writtenOfType(realtime.EventTypingStart)
	require.Len(t, starts, 2)
	assert.Equal(t, "bob", decodeTyping(t, starts[0]).TargetUserID)
	assert.Equal(t, "carol", decodeTyping(t, starts[1]).TargetUserID)

	clock.fire()

	stops := conn.writtenOfType(realtime.EventTypingStop)
	require.Len(t, stops, 2)
}

func TestSendMessageEndsTypingSession(t *testing.T) {
	c, conn, clock := newTestClient(t, "http://unreachable.invalid")
	c.activeConversationID = "c-1"

	c.KeyPressed("bob")
	_, _ = c.SendMessage(context.Background(), "c-1", "bob", "hello")

	// The send already ended the session with an explicit stop.
	require.Len(t, conn.writtenOfType(realtime.EventTypingStop), 1)

	clock.fire()
	assert.Len(t, conn.writtenOfType(realtime.EventTypingStop), 1)
}
