/*
Package realtime contains the core logic for the live channel.

This file defines the Registry, the single process-wide source of truth for which
users currently have live sessions. It is owned by the Hub; the relay, typing
tracker, and notification fan-out all read through it and never mutate it directly.
*/
package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"marketchat/internal/pkg/logx"
)

// Session is one live connection belonging to a user. A user may own several
// concurrent sessions (multiple devices or tabs). Push must never block: delivery
// over the live channel is best-effort and a slow consumer drops events instead of
// stalling the registry.
type Session interface {
	// UserID returns the identifier of the user that owns this session.
	UserID() string

	// Push queues an event for delivery to this session.
	Push(event Event)
}

// Registry tracks the live sessions of every connected user.
type Registry struct {
	// mu protects the sessions map.
	mu sync.RWMutex

	// sessions maps a user ID to the set of that user's live sessions.
	sessions map[string]map[Session]struct{}

	logger zerolog.Logger
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[Session]struct{}),
		logger:   logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// Register adds a session under its owning user. Registering the same session
// twice is harmless; the set semantics absorb it.
func (r *Registry) Register(s Session) {
	userID := s.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[Session]struct{})
		r.sessions[userID] = set
	}
	set[s] = struct{}{}

	r.logger.Info().
		Str("user_id", userID).
		Int("session_count", len(set)).
		Msg("Session registered.")
}

// Deregister removes a session. It is idempotent: removing an unknown session is a
// no-op. It reports whether the owning user went offline as a result.
func (r *Registry) Deregister(s Session) (wentOffline bool) {
	userID := s.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		return false
	}

	if _, present := set[s]; !present {
		return false
	}

	delete(set, s)

	if len(set) == 0 {
		delete(r.sessions, userID)
		r.logger.Info().Str("user_id", userID).Msg("User went offline.")
		return true
	}

	r.logger.Info().
		Str("user_id", userID).
		Int("session_count", len(set)).
		Msg("Session deregistered.")
	return false
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions[userID]) > 0
}

// SessionsFor returns the user's live sessions, possibly empty.
func (r *Registry) SessionsFor(userID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	out := make([]Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Snapshot returns the sorted list of online user IDs.
func (r *Registry) Snapshot() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		ids = append(ids, userID)
	}
	sort.Strings(ids)

	users := make([]OnlineUser, 0, len(ids))
	for _, id := range ids {
		users = append(users, OnlineUser{UserID: id})
	}
	return users
}

// AllSessions returns every live session across all users.
func (r *Registry) AllSessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0)
	for _, set := range r.sessions {
		for s := range set {
			out = append(out, s)
		}
	}
	return out
}
