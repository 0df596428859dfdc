package storage

import (
	"bytes"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IChatRepository interface {
	CreateChat(ctx context.Context, user1, user2 uuid.UUID) (domain.Chat, error)
	ResolveMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	ResolveUserChats(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error)
}

// ChatRepository is the membership side of the storage collaborator.
// Keys are formatted as "chat:{chat_id}" with the JSON-encoded chat
// record as value; membership is always read back from the record, so
// the staleness window is a single lookup.
type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

const (
	chatKeyPrefix = "chat:"
	pairKeyPrefix = "chatpair:"
)

func chatKey(chatID uuid.UUID) []byte {
	return []byte(chatKeyPrefix + chatID.String())
}

// pairKey orders the participants deterministically, so both creation
// orders of the same pair map to the same key.
func pairKey(user1, user2 uuid.UUID) []byte {
	if bytes.Compare(user1[:], user2[:]) > 0 {
		user1, user2 = user2, user1
	}
	return []byte(pairKeyPrefix + user1.String() + ":" + user2.String())
}

// CreateChat persists a new two-party conversation. The (user1, user2)
// pair is unique regardless of order; the uniqueness check and the
// write share one transaction keyed on the pair, so concurrent
// creations of the same pair conflict at commit instead of both
// slipping past the check.
func (r ChatRepository) CreateChat(_ context.Context, user1, user2 uuid.UUID) (domain.Chat, error) {
	chat := domain.Chat{
		ID:        uuid.New(),
		User1:     user1,
		User2:     user2,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(chat)
	if err != nil {
		return domain.Chat{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(pairKey(user1, user2))
		if err == nil {
			return errs.ErrChatAlreadyExists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(pairKey(user1, user2), []byte(chat.ID.String())); err != nil {
			return err
		}
		return txn.Set(chatKey(chat.ID), payload)
	})
	if err != nil {
		// The only competing writer for a pair key is another creation
		// of the same pair, so a commit conflict means the pair exists.
		if errors.Is(err, badger.ErrConflict) {
			return domain.Chat{}, errs.ErrChatAlreadyExists
		}
		return domain.Chat{}, err
	}

	r.log.Info("chat created", "chat_id", chat.ID, "user1", user1, "user2", user2)
	return chat, nil
}

// ResolveMembers returns the participant set of a chat, or
// ErrChatNotFound when no such chat exists.
func (r ChatRepository) ResolveMembers(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chat)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errs.ErrChatNotFound
		}
		return nil, fmt.Errorf("chat lookup failed: %w", err)
	}
	return chat.Members(), nil
}

// ResolveUserChats returns every conversation the user belongs to.
func (r ChatRepository) ResolveUserChats(_ context.Context, userID uuid.UUID) ([]domain.Chat, error) {
	return r.scanChats(func(c domain.Chat) bool {
		return c.User1 == userID || c.User2 == userID
	})
}

func (r ChatRepository) scanChats(keep func(domain.Chat) bool) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(chatKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var chat domain.Chat
				if err := json.Unmarshal(val, &chat); err != nil {
					return err
				}
				if keep(chat) {
					chats = append(chats, chat)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return chats, err
}
