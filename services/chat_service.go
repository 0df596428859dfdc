//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"chat-relay/moderation"
	"chat-relay/search"

	"github.com/google/uuid"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Envelope, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	CreateChat(ctx context.Context, user1, user2 uuid.UUID) (domain.Chat, error)
	GetUserChats(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error)
	GetMessages(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, *string, error)
	ReplayHistory(chatID uuid.UUID) []domain.Envelope
	SearchMessages(ctx context.Context, query search.Query) ([]search.Hit, error)
}

// ChatService is the write path of the relay. A posted message is
// moderated, persisted and only then broadcast, so every envelope that
// reaches a connected user carries a durable message id.
type ChatService struct {
	log              *slog.Logger
	moderator        *moderation.Moderator
	messages         storage.IMessageRepository
	chats            storage.IChatRepository
	engine           contract.IBroadcaster
	indexer          *search.Indexer
	maxContentLength int
}

func NewChatService(log *slog.Logger, moderator *moderation.Moderator,
	messages storage.IMessageRepository, chats storage.IChatRepository,
	engine contract.IBroadcaster, indexer *search.Indexer, maxContentLength int) *ChatService {
	return &ChatService{
		log:              log,
		moderator:        moderator,
		messages:         messages,
		chats:            chats,
		engine:           engine,
		indexer:          indexer,
		maxContentLength: maxContentLength,
	}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Envelope, error) {
	if len([]rune(cmd.Content)) > s.maxContentLength {
		return domain.Envelope{}, fmt.Errorf("%w: %d runes max", errs.ErrContentTooLong, s.maxContentLength)
	}

	content, censored := s.moderator.Censor(cmd.Content)
	if len(censored) > 0 {
		s.log.Info("message censored", "chat_id", cmd.ChatID, "sender_id", cmd.SenderID, "words", censored)
	}

	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	msg := domain.Message{
		ID:        uuid.New(),
		ChatID:    cmd.ChatID,
		SenderID:  cmd.SenderID,
		Content:   content,
		CreatedAt: createdAt,
	}
	if err := s.messages.StoreMessage(ctx, msg); err != nil {
		return domain.Envelope{}, fmt.Errorf("failed to store message: %w", err)
	}

	env, err := s.engine.BroadcastMessage(ctx, msg)
	if err != nil {
		// The sender was not entitled to post, or the chat vanished.
		// Roll the write back so storage only keeps authorized messages.
		if _, delErr := s.messages.DeleteMessage(ctx, msg.ID); delErr != nil {
			s.log.Error("failed to roll back rejected message", "message_id", msg.ID, "error", delErr)
		}
		return domain.Envelope{}, err
	}
	return env, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	chatID, err := s.messages.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}
	return s.engine.BroadcastDeletion(ctx, chatID, messageID)
}

func (s *ChatService) CreateChat(ctx context.Context, user1, user2 uuid.UUID) (domain.Chat, error) {
	return s.chats.CreateChat(ctx, user1, user2)
}

func (s *ChatService) GetUserChats(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error) {
	return s.chats.ResolveUserChats(ctx, userID)
}

func (s *ChatService) GetMessages(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	return s.messages.GetMessages(ctx, cmd.ChatID, cmd.Cursor)
}

func (s *ChatService) ReplayHistory(chatID uuid.UUID) []domain.Envelope {
	return s.engine.Replay(chatID)
}

func (s *ChatService) SearchMessages(ctx context.Context, query search.Query) ([]search.Hit, error) {
	return s.indexer.Search(ctx, query)
}
