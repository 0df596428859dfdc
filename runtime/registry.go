// Package runtime holds the shared mutable state of the relay: the
// connection registry, the history buffer and the broadcast engine. It
// orchestrates delivery without containing domain rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry maps online users to their live delivery channel. It is
// process-lifetime state, safe for concurrent use from every session
// goroutine. The invariant is one channel per user at most, even when
// Register races Unregister for the same user.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]contract.Channel
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[uuid.UUID]contract.Channel),
	}
}

// Register inserts or replaces the mapping for userID. A prior channel
// for the same user is closed so its session loop terminates instead of
// lingering as an orphan.
func (r *Registry) Register(userID uuid.UUID, ch contract.Channel) {
	r.mu.Lock()
	prev, existed := r.channels[userID]
	r.channels[userID] = ch
	r.mu.Unlock()

	if existed && prev != ch {
		prev.Close()
	}
}

// Unregister removes the mapping if present. Unregistering an absent
// user is a no-op, not an error.
func (r *Registry) Unregister(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, userID)
}

// Release removes the mapping only while ch is still the registered
// channel. A session tearing down after being replaced must not evict
// its successor.
func (r *Registry) Release(userID uuid.UUID, ch contract.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.channels[userID]; ok && current == ch {
		delete(r.channels, userID)
	}
}

// TrySend looks up the channel for userID and, if present, attempts a
// non-blocking delivery. The returned bool reports channel existence;
// enqueue itself is best effort. Transport failures surface later via
// the owning session, which then unregisters itself.
func (r *Registry) TrySend(userID uuid.UUID, env domain.Envelope) bool {
	r.mu.RLock()
	ch, ok := r.channels[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	ch.Send(env)
	return true
}

// ConnectedUsers returns a snapshot of online user ids for diagnostics.
// Delivery decisions never rely on it; membership always comes fresh
// from the resolver.
func (r *Registry) ConnectedUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.channels)
}
