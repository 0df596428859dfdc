package domain

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a two-party conversation record. The pair (User1, User2) is
// unique; membership is always derived from this record, never cached.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	User1     uuid.UUID `json:"user1_id"`
	User2     uuid.UUID `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Members returns the participant set of the chat.
func (c Chat) Members() []uuid.UUID {
	return []uuid.UUID{c.User1, c.User2}
}
