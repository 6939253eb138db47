package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records every pushed event so tests can assert on delivery.
type fakeSession struct {
	userID string

	mu     sync.Mutex
	events []Event
}

func newFakeSession(userID string) *fakeSession {
	return &fakeSession{userID: userID}
}

func (f *fakeSession) UserID() string { return f.userID }

func (f *fakeSession) Push(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)
}

func (f *fakeSession) eventsOfType(eventType EventType) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeBridge records cross-instance publishes.
type fakeBridge struct {
	mu        sync.Mutex
	published []struct {
		UserID string
		Event  Event
	}
}

func (b *fakeBridge) Publish(userID string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, struct {
		UserID string
		Event  Event
	}{userID, event})
	return nil
}

func (b *fakeBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.published)
}

func decodeInto(t *testing.T, event Event, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(event.Payload, out))
}

func testMessage(senderID string) MessagePayload {
	return MessagePayload{
		ID:             "m-1",
		ConversationID: "c-1",
		SenderID:       senderID,
		Text:           "hello",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestRelayMessageDeliversOncePerSession(t *testing.T) {
	hub := NewHub()

	sender := newFakeSession("alice")
	receiverPhone := newFakeSession("bob")
	receiverLaptop := newFakeSession("bob")

	hub.Register(sender)
	hub.Register(receiverPhone)
	hub.Register(receiverLaptop)

	hub.RelayMessage(testMessage("alice"), "bob", sender)

	assert.Len(t, receiverPhone.eventsOfType(EventGetMessage), 1)
	assert.Len(t, receiverLaptop.eventsOfType(EventGetMessage), 1)

	var payload MessagePayload
	decodeInto(t, receiverPhone.eventsOfType(EventGetMessage)[0], &payload)
	assert.Equal(t, "m-1", payload.ID)
	assert.Equal(t, "hello", payload.Text)
}

func TestRelayMessageSkipsOriginButEchoesOtherDevices(t *testing.T) {
	hub := NewHub()

	senderPhone := newFakeSession("alice")
	senderLaptop := newFakeSession("alice")
	receiver := newFakeSession("bob")

	hub.Register(senderPhone)
	hub.Register(senderLaptop)
	hub.Register(receiver)

	hub.RelayMessage(testMessage("alice"), "bob", senderPhone)

	// The origin already holds its optimistic copy.
	assert.Empty(t, senderPhone.eventsOfType(EventGetMessage))
	// The other device needs the echo to stay consistent.
	assert.Len(t, senderLaptop.eventsOfType(EventGetMessage), 1)
	assert.Len(t, receiver.eventsOfType(EventGetMessage), 1)
}

func TestRelayMessageOfflineRecipientIsNoOp(t *testing.T) {
	hub := NewHub()

	sender := newFakeSession("alice")
	hub.Register(sender)

	// Must not panic or deliver anywhere.
	hub.RelayMessage(testMessage("alice"), "bob", sender)

	assert.Empty(t, sender.eventsOfType(EventGetMessage))
}

func TestRelayMessagePublishesToBridgeWhenRecipientRemote(t *testing.T) {
	hub := NewHub()
	bridge := &fakeBridge{}
	hub.SetBridge(bridge)

	sender := newFakeSession("alice")
	hub.Register(sender)

	hub.RelayMessage(testMessage("alice"), "bob", sender)

	require.Equal(t, 1, bridge.count())
	assert.Equal(t, "bob", bridge.published[0].UserID)
	assert.Equal(t, EventGetMessage, bridge.published[0].Event.Type)
}

func TestRelayMessageDoesNotBridgeWhenDeliveredLocally(t *testing.T) {
	hub := NewHub()
	bridge := &fakeBridge{}
	hub.SetBridge(bridge)

	sender := newFakeSession("alice")
	receiver := newFakeSession("bob")
	hub.Register(sender)
	hub.Register(receiver)

	hub.RelayMessage(testMessage("alice"), "bob", sender)

	assert.Equal(t, 0, bridge.count())
	assert.Len(t, receiver.eventsOfType(EventGetMessage), 1)
}

func TestTypingRelayedToTargetSessions(t *testing.T) {
	hub := NewHub()

	typer := newFakeSession("alice")
	target := newFakeSession("bob")
	hub.Register(typer)
	hub.Register(target)

	hub.Typing("alice", "bob", true, typer)

	events := target.eventsOfType(EventUserTyping)
	require.Len(t, events, 1)

	var payload UserTypingPayload
	decodeInto(t, events[0], &payload)
	assert.Equal(t, "alice", payload.UserID)
	assert.True(t, payload.IsTyping)

	hub.Typing("alice", "bob", false, typer)

	events = target.eventsOfType(EventUserTyping)
	require.Len(t, events, 2)
	decodeInto(t, events[1], &payload)
	assert.False(t, payload.IsTyping)
}

func TestTypingToSelfIsFiltered(t *testing.T) {
	hub := NewHub()

	session := newFakeSession("alice")
	otherDevice := newFakeSession("alice")
	hub.Register(session)
	hub.Register(otherDevice)

	hub.Typing("alice", "alice", true, session)

	assert.Empty(t, session.eventsOfType(EventUserTyping))
	assert.Empty(t, otherDevice.eventsOfType(EventUserTyping))
}

func TestDeregisterEmitsImplicitTypingStop(t *testing.T) {
	hub := NewHub()

	typer := newFakeSession("alice")
	target := newFakeSession("bob")
	hub.Register(typer)
	hub.Register(target)

	hub.Typing("alice", "bob", true, typer)
	hub.Deregister(typer)

	events := target.eventsOfType(EventUserTyping)
	require.Len(t, events, 2)

	var payload UserTypingPayload
	decodeInto(t, events[1], &payload)
	assert.Equal(t, "alice", payload.UserID)
	assert.False(t, payload.IsTyping)
}

func TestDeregisterWithoutTypingEmitsNoStop(t *testing.T) {
	hub := NewHub()

	typer := newFakeSession("alice")
	target := newFakeSession("bob")
	hub.Register(typer)
	hub.Register(target)

	hub.Deregister(typer)

	assert.Empty(t, target.eventsOfType(EventUserTyping))
}

func TestTypingStopClearsDisconnectBookkeeping(t *testing.T) {
	hub := NewHub()

	typer := newFakeSession("alice")
	target := newFakeSession("bob")
	hub.Register(typer)
	hub.Register(target)

	hub.Typing("alice", "bob", true, typer)
	hub.Typing("alice", "bob", false, typer)
	hub.Deregister(typer)

	// Start, explicit stop, and nothing extra on disconnect.
	assert.Len(t, target.eventsOfType(EventUserTyping), 2)
}

func TestRegisterBroadcastsPresenceSnapshot(t *testing.T) {
	hub := NewHub()

	alice := newFakeSession("alice")
	bob := newFakeSession("bob")

	hub.Register(alice)
	hub.Register(bob)

	events := alice.eventsOfType(EventGetUsers)
	require.NotEmpty(t, events)

	var users []OnlineUser
	decodeInto(t, events[len(events)-1], &users)
	assert.Equal(t, []OnlineUser{{UserID: "alice"}, {UserID: "bob"}}, users)
}

func TestDeregisterLastSessionBroadcastsDeparture(t *testing.T) {
	hub := NewHub()

	alice := newFakeSession("alice")
	bob := newFakeSession("bob")
	hub.Register(alice)
	hub.Register(bob)

	hub.Deregister(alice)

	events := bob.eventsOfType(EventGetUsers)
	require.NotEmpty(t, events)

	var users []OnlineUser
	decodeInto(t, events[len(events)-1], &users)
	assert.Equal(t, []OnlineUser{{UserID: "bob"}}, users)
}

func TestRemoveNotificationSkipsInitiatingSession(t *testing.T) {
	hub := NewHub()

	phone := newFakeSession("alice")
	laptop := newFakeSession("alice")
	hub.Register(phone)
	hub.Register(laptop)

	hub.RemoveNotification("alice", "n-1", phone)

	assert.Empty(t, phone.eventsOfType(EventNotificationRemoved))

	events := laptop.eventsOfType(EventNotificationRemoved)
	require.Len(t, events, 1)

	var payload NotificationRemovedPayload
	decodeInto(t, events[0], &payload)
	assert.Equal(t, "n-1", payload.NotificationID)
}

func TestNotifyUserFallsBackToBridge(t *testing.T) {
	hub := NewHub()
	bridge := &fakeBridge{}
	hub.SetBridge(bridge)

	event, err := NewEvent(EventFriendRequestSent, FriendRequestPayload{NotificationID: "n-1", RequesterID: "alice"})
	require.NoError(t, err)

	hub.NotifyUser("bob", event)

	require.Equal(t, 1, bridge.count())
	assert.Equal(t, "bob", bridge.published[0].UserID)
}

func TestDeliverLocalNeverRePublishes(t *testing.T) {
	hub := NewHub()
	bridge := &fakeBridge{}
	hub.SetBridge(bridge)

	event, err := NewEvent(EventGetMessage, testMessage("alice"))
	require.NoError(t, err)

	// Recipient has no local session; a re-publish here would loop forever
	// between instances.
	hub.DeliverLocal("bob", event)

	assert.Equal(t, 0, bridge.count())
}
