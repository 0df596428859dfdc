package runtime

import (
	"chat-relay/domain"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultHistoryLimit bounds each chat buffer when no explicit limit is
// configured.
const DefaultHistoryLimit = 50

// History keeps the most recent envelopes per chat for replay after a
// reconnect. Buffers are bounded (oldest evicted first) and survive
// individual connection failures; they are never the system of record.
type History struct {
	mu      sync.RWMutex
	limit   int
	buffers map[uuid.UUID][]domain.Envelope
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:   limit,
		buffers: make(map[uuid.UUID][]domain.Envelope),
	}
}

// Append adds env to the chat's buffer, evicting from the front until
// the length is back within the limit.
func (h *History) Append(chatID uuid.UUID, env domain.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := append(h.buffers[chatID], env)
	if len(buf) > h.limit {
		trimmed := make([]domain.Envelope, h.limit)
		copy(trimmed, buf[len(buf)-h.limit:])
		buf = trimmed
	}
	h.buffers[chatID] = buf
}

// Snapshot returns a copy of the chat's buffer in insertion order. A
// chat with no history yields an empty sequence, not an error.
func (h *History) Snapshot(chatID uuid.UUID) []domain.Envelope {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buf := h.buffers[chatID]
	out := make([]domain.Envelope, len(buf))
	copy(out, buf)
	return out
}

// Remove drops every buffered envelope carrying messageID, so a replay
// after a deletion does not resurrect the message.
func (h *History) Remove(chatID, messageID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[chatID]
	if !ok {
		return
	}
	h.buffers[chatID] = lo.Reject(buf, func(env domain.Envelope, _ int) bool {
		return env.MessageID == messageID
	})
}
