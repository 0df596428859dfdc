package domain

import (
	"time"

	"github.com/google/uuid"
)

type PostMessageCommand struct {
	ChatID    uuid.UUID
	SenderID  uuid.UUID
	Content   string
	CreatedAt time.Time
}

type GetMessagesCommand struct {
	ChatID uuid.UUID
	Cursor *string
}
