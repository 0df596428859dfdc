package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the envelopes exchanged over the transport boundary.
type EventKind string

const (
	EventNewMessage     EventKind = "new-message"
	EventMessageDeleted EventKind = "message-deleted"
	EventError          EventKind = "error"
	EventHistoryReplay  EventKind = "history-replay"
)

// Envelope is the structured unit of real-time communication. It is
// immutable once constructed; both inbound deliveries and outbound
// frames share this wire shape (UTF-8 JSON).
type Envelope struct {
	Kind      EventKind `json:"event_kind"`
	ChatID    uuid.UUID `json:"chat_id,omitzero"`
	SenderID  uuid.UUID `json:"sender_id,omitzero"`
	MessageID uuid.UUID `json:"message_id,omitzero"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NewMessageEnvelope builds the authoritative new-message envelope for a
// persisted message. The server-assigned identifier and timestamp travel
// with it, so clients never rely on optimistic rendering.
func NewMessageEnvelope(msg Message) Envelope {
	return Envelope{
		Kind:      EventNewMessage,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		MessageID: msg.ID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}
}

// DeletionEnvelope builds the tombstone notification for a deleted message.
// It carries no content.
func DeletionEnvelope(chatID, messageID uuid.UUID) Envelope {
	return Envelope{
		Kind:      EventMessageDeleted,
		ChatID:    chatID,
		MessageID: messageID,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorEnvelope builds the error reply sent back to the originating
// session only. Receiving one never closes the connection.
func ErrorEnvelope(err error) Envelope {
	return Envelope{
		Kind:      EventError,
		Content:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// AsReplay re-marks an envelope for history replay, preserving every
// other field.
func (e Envelope) AsReplay() Envelope {
	e.Kind = EventHistoryReplay
	return e
}
