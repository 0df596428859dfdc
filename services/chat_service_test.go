package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"chat-relay/mocks"
	"chat-relay/moderation"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const maxContentLength = 500

func newTestService(t *testing.T, engine *mocks.MockIBroadcaster) (*ChatService, storage.MessageRepository, storage.ChatRepository) {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	req.NoError(err)

	messages := storage.NewMessageRepository(db, log, nil)
	chats := storage.NewChatRepository(db, log)
	service := NewChatService(log, &moderator, messages, chats, engine, nil, maxContentLength)
	return service, messages, chats
}

func TestChatService_PostMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockIBroadcaster(ctrl)
	service, messages, chats := newTestService(t, engine)

	alice := uuid.New()
	bob := uuid.New()
	chat, err := chats.CreateChat(ctx, alice, bob)
	req.NoError(err)

	// Given the engine accepts the broadcast
	engine.EXPECT().
		BroadcastMessage(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Envelope, error) {
			return domain.NewMessageEnvelope(msg), nil
		})

	// When posting a message containing a forbidden word
	env, err := service.PostMessage(ctx, domain.PostMessageCommand{
		ChatID:   chat.ID,
		SenderID: alice,
		Content:  "hello badger",
	})

	// Then the censored content is durable and broadcast
	req.NoError(err)
	req.Equal(domain.EventNewMessage, env.Kind)
	req.Equal("hello ******", env.Content)

	stored, _, err := messages.GetMessages(ctx, chat.ID, nil)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hello ******", stored[0].Content)
	req.Equal(env.MessageID, stored[0].ID)
}

func TestChatService_PostMessage_TooLong(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockIBroadcaster(ctrl)
	service, _, chats := newTestService(t, engine)

	alice := uuid.New()
	chat, err := chats.CreateChat(ctx, alice, uuid.New())
	req.NoError(err)

	_, err = service.PostMessage(ctx, domain.PostMessageCommand{
		ChatID:   chat.ID,
		SenderID: alice,
		Content:  strings.Repeat("x", maxContentLength+1),
	})
	req.ErrorIs(err, errs.ErrContentTooLong)
}

func TestChatService_PostMessage_RejectedBroadcastRollsBack(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockIBroadcaster(ctrl)
	service, messages, chats := newTestService(t, engine)

	chat, err := chats.CreateChat(ctx, uuid.New(), uuid.New())
	req.NoError(err)
	outsider := uuid.New()

	// Given the engine refuses the sender
	engine.EXPECT().
		BroadcastMessage(ctx, gomock.Any()).
		Return(domain.Envelope{}, errs.ErrChatNotFound)

	// When an outsider posts to the chat
	_, err = service.PostMessage(ctx, domain.PostMessageCommand{
		ChatID:   chat.ID,
		SenderID: outsider,
		Content:  "let me in",
	})

	// Then nothing remains in storage
	req.ErrorIs(err, errs.ErrChatNotFound)
	stored, _, err := messages.GetMessages(ctx, chat.ID, nil)
	req.NoError(err)
	req.Empty(stored)
}

func TestChatService_DeleteMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockIBroadcaster(ctrl)
	service, messages, chats := newTestService(t, engine)

	alice := uuid.New()
	chat, err := chats.CreateChat(ctx, alice, uuid.New())
	req.NoError(err)

	engine.EXPECT().
		BroadcastMessage(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Envelope, error) {
			return domain.NewMessageEnvelope(msg), nil
		})
	env, err := service.PostMessage(ctx, domain.PostMessageCommand{
		ChatID:   chat.ID,
		SenderID: alice,
		Content:  "short lived",
	})
	req.NoError(err)

	// The deletion is broadcast with the chat recovered from storage.
	engine.EXPECT().BroadcastDeletion(ctx, chat.ID, env.MessageID).Return(nil)
	req.NoError(service.DeleteMessage(ctx, env.MessageID))

	stored, _, err := messages.GetMessages(ctx, chat.ID, nil)
	req.NoError(err)
	req.Empty(stored)

	req.ErrorIs(service.DeleteMessage(ctx, env.MessageID), errs.ErrMessageNotFound)
}
