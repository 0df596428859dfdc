package runtime

import (
	"fmt"
	"testing"

	"chat-relay/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_History_Append_And_Snapshot(t *testing.T) {
	req := require.New(t)
	history := NewHistory(10)
	chatID := uuid.New()

	first := domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New(), Content: "first"}
	second := domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New(), Content: "second"}
	history.Append(chatID, first)
	history.Append(chatID, second)

	req.Equal([]domain.Envelope{first, second}, history.Snapshot(chatID))
}

func Test_History_Evicts_Oldest_First(t *testing.T) {
	req := require.New(t)
	limit := 3
	history := NewHistory(limit)
	chatID := uuid.New()

	var all []domain.Envelope
	for i := 0; i < limit+2; i++ {
		env := domain.Envelope{
			Kind:      domain.EventNewMessage,
			MessageID: uuid.New(),
			Content:   fmt.Sprintf("message %d", i),
		}
		all = append(all, env)
		history.Append(chatID, env)
	}

	// Only the newest N remain, still in insertion order.
	req.Equal(all[2:], history.Snapshot(chatID))
}

func Test_History_Unknown_Chat_Is_Empty(t *testing.T) {
	req := require.New(t)
	history := NewHistory(10)

	req.Empty(history.Snapshot(uuid.New()))
}

func Test_History_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	history := NewHistory(10)
	chatID := uuid.New()

	env := domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New(), Content: "original"}
	history.Append(chatID, env)

	snapshot := history.Snapshot(chatID)
	snapshot[0].Content = "tampered"

	req.Equal("original", history.Snapshot(chatID)[0].Content)
}

func Test_History_Remove(t *testing.T) {
	req := require.New(t)
	history := NewHistory(10)
	chatID := uuid.New()

	keep := domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New(), Content: "keep"}
	drop := domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New(), Content: "drop"}
	history.Append(chatID, keep)
	history.Append(chatID, drop)

	history.Remove(chatID, drop.MessageID)
	req.Equal([]domain.Envelope{keep}, history.Snapshot(chatID))

	// Removing from an unknown chat is a no-op.
	history.Remove(uuid.New(), drop.MessageID)
}

func Test_History_Defaults_On_Invalid_Limit(t *testing.T) {
	req := require.New(t)
	history := NewHistory(0)
	chatID := uuid.New()

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		history.Append(chatID, domain.Envelope{Kind: domain.EventNewMessage, MessageID: uuid.New()})
	}
	req.Len(history.Snapshot(chatID), DefaultHistoryLimit)
}
