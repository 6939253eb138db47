package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	session := newFakeSession("alice")

	registry.Register(session)
	registry.Register(session)

	assert.Len(t, registry.SessionsFor("alice"), 1)
	assert.True(t, registry.IsOnline("alice"))
}

func TestRegistryDeregisterReportsWentOffline(t *testing.T) {
	registry := NewRegistry()
	phone := newFakeSession("alice")
	laptop := newFakeSession("alice")

	registry.Register(phone)
	registry.Register(laptop)

	assert.False(t, registry.Deregister(phone))
	assert.True(t, registry.IsOnline("alice"))

	assert.True(t, registry.Deregister(laptop))
	assert.False(t, registry.IsOnline("alice"))
}

func TestRegistryDeregisterUnknownSessionIsNoOp(t *testing.T) {
	registry := NewRegistry()

	assert.False(t, registry.Deregister(newFakeSession("alice")))

	registry.Register(newFakeSession("alice"))
	// A different session object for the same user must not evict the real one.
	assert.False(t, registry.Deregister(newFakeSession("alice")))
	assert.True(t, registry.IsOnline("alice"))
}

func TestRegistrySnapshotIsSortedAndDeduplicated(t *testing.T) {
	registry := NewRegistry()

	registry.Register(newFakeSession("carol"))
	registry.Register(newFakeSession("alice"))
	registry.Register(newFakeSession("alice"))
	registry.Register(newFakeSession("bob"))

	snapshot := registry.Snapshot()

	assert.Equal(t, []OnlineUser{{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}}, snapshot)
}

func TestRegistryAllSessionsSpansUsers(t *testing.T) {
	registry := NewRegistry()

	registry.Register(newFakeSession("alice"))
	registry.Register(newFakeSession("alice"))
	registry.Register(newFakeSession("bob"))

	assert.Len(t, registry.AllSessions(), 3)
}
