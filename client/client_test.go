package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/app/realtime"
	"marketchat/internal/pkg/randx"
)

// fakeConn records written events and serves queued inbound ones.
type fakeConn struct {
	incoming  chan realtime.Event
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []realtime.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan realtime.Event, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadEvent() (realtime.Event, error) {
	select {
	case event := <-f.incoming:
		return event, nil
	case <-f.closed:
		return realtime.Event{}, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteEvent(event realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.written = append(f.written, event)
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) writtenOfType(eventType realtime.EventType) []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []realtime.Event
	for _, e := range f.written {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu     sync.Mutex
	f      func()
	active bool
	resets int
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{f: f, active: true}
	c.timers = append(c.timers, timer)
	return timer
}

// fire expires every active timer, as if the debounce window elapsed.
func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := make([]*fakeTimer, len(c.timers))
	copy(timers, c.timers)
	c.mu.Unlock()

	for _, timer := range timers {
		timer.fire()
	}
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.active
	t.active = false
	return was
}

func (t *fakeTimer) Reset(time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.active
	t.active = true
	t.resets++
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	f := t.f
	t.mu.Unlock()

	f()
}

// newTestClient wires a Client to a fake transport and the given REST backend.
func newTestClient(t *testing.T, baseURL string) (*Client, *fakeConn, *fakeClock) {
	t.Helper()

	clock := &fakeClock{}
	c := New(Config{
		BaseURL: baseURL,
		Token:   "test-token",
		UserID:  "alice",
		Clock:   clock,
	})

	conn := newFakeConn()
	c.conn = conn

	return c, conn, clock
}

// envelopeHandler serves the standardized response envelope around data.
func envelopeHandler(t *testing.T, data any) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := json.Marshal(data)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    0,
			"message": "Success",
			"data":    json.RawMessage(raw),
		})
	}
}

func liveMessage(senderID, conversationID, text string) realtime.Event {
	return mustEvent(realtime.EventGetMessage, realtime.MessagePayload{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	})
}

func TestSendMessageConfirmsOptimisticEntry(t *testing.T) {
	confirmed := Message{
		ID:             "srv-1",
		ConversationID: "c-1",
		SenderID:       "alice",
		Text:           "hello",
		CreatedAt:      time.Now().UTC(),
	}
	server := httptest.NewServer(envelopeHandler(t, confirmed))
	defer server.Close()

	c, conn, _ := newTestClient(t, server.URL)
	c.activeConversationID = "c-1"
	c.conversations = []Conversation{{ID: "c-1", MemberIDs: []string{"alice", "bob"}}}

	message, err := c.SendMessage(context.Background(), "c-1", "bob", "hello")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", message.ID)

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "srv-1", messages[0].ID)
	assert.False(t, messages[0].Temp)

	// The live relay request went out exactly once, independent of the REST write.
	sends := conn.writtenOfType(realtime.EventSendMessage)
	require.Len(t, sends, 1)

	var payload realtime.SendMessagePayload
	require.NoError(t, json.Unmarshal(sends[0].Payload, &payload))
	assert.Equal(t, "alice", payload.SenderID)
	assert.Equal(t, "bob", payload.ReceiverID)
	assert.Equal(t, "hello", payload.Text)

	// The conversation preview reflects the confirmed record.
	conversations := c.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "srv-1", conversations[0].LastMessageID)
	assert.Equal(t, "hello", conversations[0].LastMessageBody)
}

func TestSendMessageRollsBackOnRESTFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    2201,
			"message": "Message content exceeds maximum length",
		})
	}))
	defer server.Close()

	c, conn, _ := newTestClient(t, server.URL)
	c.activeConversationID = "c-1"

	_, err := c.SendMessage(context.Background(), "c-1", "bob", "hello")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 2201, apiErr.Code)

	// The optimistic entry is gone; the live emit still happened.
	assert.Empty(t, c.Messages())
	assert.Len(t, conn.writtenOfType(realtime.EventSendMessage), 1)
}

func TestSendMessageOptimisticEntryIsTempBeforeConfirm(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unreachable.invalid")
	c.activeConversationID = "c-1"

	_, err := c.SendMessage(context.Background(), "c-1", "bob", "hello")
	require.Error(t, err)

	// Unreachable backend: entry rolled back, nothing left behind.
	assert.Empty(t, c.Messages())
}

func TestIncomingMessageAppendsToActiveConversation(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unused.invalid")
	c.activeConversationID = "c-1"
	c.conversations = []Conversation{{ID: "c-1"}}

	c.handleEvent(liveMessage("bob", "c-1", "hi alice"))

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "bob", messages[0].SenderID)
	assert.Equal(t, "hi alice", messages[0].Text)
}

func TestIncomingMessageUpdatesUnreadForInactiveConversation(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unused.invalid")
	c.activeConversationID = "c-1"
	c.conversations = []Conversation{{ID: "c-1"}, {ID: "c-2"}}

	c.handleEvent(liveMessage("bob", "c-2", "psst"))
	c.handleEvent(liveMessage("bob", "c-2", "you there?"))

	// History of the inactive conversation is not touched.
	assert.Empty(t, c.Messages())

	conversations := c.Conversations()
	assert.Equal(t, 0, conversations[0].Unread)
	assert.Equal(t, 2, conversations[1].Unread)
	assert.Equal(t, "you there?", conversations[1].LastMessageBody)
}

func TestSelfEchoDoesNotDuplicateOptimisticEntry(t *testing.T) {
	confirmed := Message{
		ID:             "srv-1",
		ConversationID: "c-1",
		SenderID:       "alice",
		Text:           "hello",
		CreatedAt:      time.Now().UTC(),
	}
	server := httptest.NewServer(envelopeHandler(t, confirmed))
	defer server.Close()

	c, _, _ := newTestClient(t, server.URL)
	c.activeConversationID = "c-1"

	_, err := c.SendMessage(context.Background(), "c-1", "bob", "hello")
	require.NoError(t, err)

	// The server relays our own message back to our other sessions; the relayed
	// copy carries no server ID. It must not produce a second entry here.
	c.handleEvent(liveMessage("alice", "c-1", "hello"))

	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "srv-1", messages[0].ID)
}

func TestOpenConversationResetsUnreadAndHistory(t *testing.T) {
	history := []Message{
		{ID: "m-1", ConversationID: "c-2", SenderID: "bob", Text: "first"},
		{ID: "m-2", ConversationID: "c-2", SenderID: "alice", Text: "second"},
	}
	server := httptest.NewServer(envelopeHandler(t, history))
	defer server.Close()

	c, _, _ := newTestClient(t, server.URL)
	c.conversations = []Conversation{{ID: "c-2", Unread: 3}}

	require.NoError(t, c.OpenConversation(context.Background(), "c-2"))

	messages := c.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "m-1", messages[0].ID)
	assert.Equal(t, "m-2", messages[1].ID)

	assert.Equal(t, 0, c.Conversations()[0].Unread)
}

func TestRefreshPreservesLocalUnreadCounts(t *testing.T) {
	fromServer := []Conversation{{ID: "c-1"}, {ID: "c-2"}}
	server := httptest.NewServer(envelopeHandler(t, fromServer))
	defer server.Close()

	c, _, _ := newTestClient(t, server.URL)
	c.conversations = []Conversation{{ID: "c-1", Unread: 2}}

	require.NoError(t, c.Refresh(context.Background()))

	conversations := c.Conversations()
	require.Len(t, conversations, 2)
	assert.Equal(t, 2, conversations[0].Unread)
	assert.Equal(t, 0, conversations[1].Unread)
}

func TestPresenceSnapshotReplacesOnlineSet(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unused.invalid")

	c.handleEvent(mustEvent(realtime.EventGetUsers, []realtime.OnlineUser{{UserID: "bob"}, {UserID: "carol"}}))
	assert.True(t, c.IsOnline("bob"))
	assert.True(t, c.IsOnline("carol"))

	c.handleEvent(mustEvent(realtime.EventGetUsers, []realtime.OnlineUser{{UserID: "carol"}}))
	assert.False(t, c.IsOnline("bob"))
	assert.True(t, c.IsOnline("carol"))
}

func TestPeerTypingFollowsIndicatorEvents(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unused.invalid")

	c.handleEvent(mustEvent(realtime.EventUserTyping, realtime.UserTypingPayload{UserID: "bob", IsTyping: true}))
	assert.True(t, c.PeerIsTyping("bob"))

	c.handleEvent(mustEvent(realtime.EventUserTyping, realtime.UserTypingPayload{UserID: "bob", IsTyping: false}))
	assert.False(t, c.PeerIsTyping("bob"))
}

func TestMalformedLiveEventsAreDiscarded(t *testing.T) {
	c, _, _ := newTestClient(t, "http://unused.invalid")
	c.activeConversationID = "c-1"

	c.handleEvent(realtime.Event{Type: realtime.EventGetMessage, Payload: json.RawMessage(`"not an object"`)})
	c.handleEvent(realtime.Event{Type: realtime.EventGetUsers, Payload: json.RawMessage(`{}`)})
	c.handleEvent(realtime.Event{Type: "mystery_event", Payload: json.RawMessage(`{}`)})
	c.handleEvent(realtime.Event{Type: realtime.EventGetMessage, Payload: json.RawMessage(`{"senderId": "bob"}`)})

	assert.Empty(t, c.Messages())
	assert.Empty(t, c.Notifications())
}

func TestReadLoopDispatchesUntilConnectionCloses(t *testing.T) {
	c := New(Config{UserID: "alice", Clock: &fakeClock{}})

	conn := newFakeConn()
	c.attach(conn)

	conn.incoming <- mustEvent(realtime.EventGetUsers, []realtime.OnlineUser{{UserID: "bob"}})

	require.Eventually(t, func() bool {
		return c.IsOnline("bob")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())

	// A second connection replaces the first; events keep flowing.
	conn2 := newFakeConn()
	c.attach(conn2)

	conn2.incoming <- mustEvent(realtime.EventGetUsers, []realtime.OnlineUser{{UserID: "carol"}})

	require.Eventually(t, func() bool {
		return c.IsOnline("carol") && !c.IsOnline("bob")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
}

func TestOptimisticEntryUsesTempID(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 5000, "message": "boom"})
	}))
	defer server.Close()

	c, _, _ := newTestClient(t, server.URL)
	c.activeConversationID = "c-1"

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), "c-1", "bob", "hello")
		done <- err
	}()

	// Inspect the optimistic entry while the REST write is still in flight.
	<-arrived
	messages := c.Messages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Temp)
	assert.True(t, randx.IsTempID(messages[0].ID))

	close(release)
	require.Error(t, <-done)
	assert.Empty(t, c.Messages())
}
