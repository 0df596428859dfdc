package storage

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, msg domain.Message) error
	GetMessages(ctx context.Context, chatID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) (uuid.UUID, error)
}

// MessageRepository persists messages in BadgerDB.
// The primary key is formatted as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// A secondary key "msgid:{uuid}" points back at the primary key so a
// deletion by message id can recover the owning chat.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskMessage struct {
	ID       uuid.UUID `json:"id"`
	ChatID   uuid.UUID `json:"chat_id"`
	SenderID uuid.UUID `json:"sender_id"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
}

func messageKey(msg domain.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s", msg.ChatID, msg.CreatedAt.UnixNano(), msg.ID)
}

func messageIndexKey(messageID uuid.UUID) []byte {
	return []byte("msgid:" + messageID.String())
}

// StoreMessage writes the message and its secondary index in one
// transaction.
func (m MessageRepository) StoreMessage(_ context.Context, msg domain.Message) error {
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	key := messageKey(msg)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(msg.ID), []byte(key))
	})
}

// GetMessages retrieves messages for a chat using a reverse prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally
// sorted by time; the scan walks newest-first and results are reversed
// back to chronological order. The returned cursor resumes the scan on
// the next page; it is nil-safe on first call.
func (m MessageRepository) GetMessages(_ context.Context, chatID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	var raws [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", chatID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(raws) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				raws = append(raws, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var dm diskMessage
		if err = json.Unmarshal(raws[i], &dm); err != nil {
			return nil, nil, err
		}
		messages = append(messages, toMessage(dm))
	}
	return messages, lo.ToPtr(lastKey), nil
}

// DeleteMessage removes the message and its index, returning the chat
// the message belonged to so callers can notify connected peers.
// Returns ErrMessageNotFound for an unknown id.
func (m MessageRepository) DeleteMessage(_ context.Context, messageID uuid.UUID) (uuid.UUID, error) {
	var chatID uuid.UUID
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIndexKey(messageID))
		if err != nil {
			return err
		}
		primary, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		// Primary key shape: msg:{chat_id}:{ts}:{uuid}
		parts := strings.Split(string(primary), ":")
		if len(parts) != 4 {
			return fmt.Errorf("corrupt message key %q", primary)
		}
		chatID, err = uuid.Parse(parts[1])
		if err != nil {
			return err
		}

		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(messageIndexKey(messageID))
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return uuid.Nil, errs.ErrMessageNotFound
		}
		return uuid.Nil, err
	}

	m.log.Info("message deleted", "message_id", messageID, "chat_id", chatID)
	return chatID, nil
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:       msg.ID,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
		At:       msg.CreatedAt.UTC(),
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		ChatID:    dm.ChatID,
		SenderID:  dm.SenderID,
		Content:   dm.Content,
		CreatedAt: dm.At,
	}
}
