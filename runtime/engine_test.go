package runtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestEngine(t *testing.T) (*Engine, *mocks.MockIMembershipResolver, *Registry, *History, *observability.MonitoringManager) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIMembershipResolver(ctrl)
	registry := NewRegistry()
	history := NewHistory(DefaultHistoryLimit)
	monitoring := observability.NewMonitoringManager()
	engine := NewEngine(log, resolver, registry, history, monitoring, 16)
	return engine, resolver, registry, history, monitoring
}

func Test_Broadcast_Reaches_All_Connected_Members(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, registry, history, monitoring := newTestEngine(t)

	chatID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	aliceCh := &fakeChannel{}
	bobCh := &fakeChannel{}
	registry.Register(alice, aliceCh)
	registry.Register(bob, bobCh)

	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{alice, bob}, nil)

	msg := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  alice,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}
	env, err := engine.BroadcastMessage(ctx, msg)
	req.NoError(err)

	// The sender receives the authoritative echo too
	req.Equal([]domain.Envelope{env}, aliceCh.Sent())
	req.Equal([]domain.Envelope{env}, bobCh.Sent())
	req.Equal(domain.EventNewMessage, env.Kind)
	req.Equal(msg.ID, env.MessageID)
	req.Equal(msg.Content, env.Content)

	// History keeps the envelope for replay
	req.Equal([]domain.Envelope{env}, history.Snapshot(chatID))

	stats := monitoring.GetLatest()
	req.Equal(int64(1), stats.Broadcasts)
	req.Equal(int64(2), stats.Delivered)
}

func Test_Broadcast_Skips_Offline_Members(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, registry, _, monitoring := newTestEngine(t)

	chatID := uuid.New()
	alice := uuid.New()
	offline := uuid.New()
	aliceCh := &fakeChannel{}
	registry.Register(alice, aliceCh)

	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{alice, offline}, nil)

	_, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: alice,
		Content:  "anyone there?",
	})
	req.NoError(err)
	req.Len(aliceCh.Sent(), 1)
	req.Equal(int64(1), monitoring.GetLatest().Delivered)
}

func Test_Broadcast_With_Nobody_Connected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, _, history, _ := newTestEngine(t)

	chatID := uuid.New()
	alice := uuid.New()
	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{alice, uuid.New()}, nil)

	// No live channels at all, still a normal outcome
	env, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: alice,
		Content:  "into the void",
	})
	req.NoError(err)
	req.Equal([]domain.Envelope{env}, history.Snapshot(chatID))
}

func Test_Broadcast_Rejects_Non_Participant(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, _, history, _ := newTestEngine(t)

	chatID := uuid.New()
	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)

	// A sender outside the member set is indistinguishable from an
	// unknown chat
	_, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: uuid.New(),
		Content:  "intruder",
	})
	req.ErrorIs(err, errs.ErrChatNotFound)
	req.Empty(history.Snapshot(chatID))
}

func Test_Broadcast_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, _, _, _ := newTestEngine(t)

	chatID := uuid.New()
	resolver.EXPECT().ResolveMembers(ctx, chatID).Return(nil, errs.ErrChatNotFound)

	_, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: uuid.New(),
	})
	req.ErrorIs(err, errs.ErrChatNotFound)
}

func Test_Broadcast_Resolver_Failure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, _, _, _ := newTestEngine(t)

	chatID := uuid.New()
	resolver.EXPECT().ResolveMembers(ctx, chatID).Return(nil, errors.New("disk on fire"))

	_, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: uuid.New(),
	})
	req.ErrorIs(err, errs.ErrResolverUnavailable)
}

func Test_Broadcast_Deletion(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, registry, history, _ := newTestEngine(t)

	chatID := uuid.New()
	alice := uuid.New()
	aliceCh := &fakeChannel{}
	registry.Register(alice, aliceCh)

	messageID := uuid.New()
	history.Append(chatID, domain.Envelope{
		Kind:      domain.EventNewMessage,
		ChatID:    chatID,
		MessageID: messageID,
		Content:   "about to vanish",
	})

	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{alice}, nil)
	req.NoError(engine.BroadcastDeletion(ctx, chatID, messageID))

	sent := aliceCh.Sent()
	req.Len(sent, 1)
	req.Equal(domain.EventMessageDeleted, sent[0].Kind)
	req.Equal(messageID, sent[0].MessageID)

	// The buffered copy is gone, replay cannot resurrect it
	req.Empty(history.Snapshot(chatID))
}

func Test_Replay_Remarks_Envelopes(t *testing.T) {
	req := require.New(t)
	engine, _, _, history, _ := newTestEngine(t)

	chatID := uuid.New()
	history.Append(chatID, domain.Envelope{
		Kind:      domain.EventNewMessage,
		ChatID:    chatID,
		MessageID: uuid.New(),
		Content:   "replayed later",
	})

	replayed := engine.Replay(chatID)
	req.Len(replayed, 1)
	req.Equal(domain.EventHistoryReplay, replayed[0].Kind)
	req.Equal("replayed later", replayed[0].Content)
}

func Test_Broadcast_Publishes_To_Sink_Pipeline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	engine, resolver, _, _, _ := newTestEngine(t)

	chatID := uuid.New()
	alice := uuid.New()
	resolver.EXPECT().ResolveMembers(ctx, chatID).Return([]uuid.UUID{alice}, nil)

	env, err := engine.BroadcastMessage(ctx, domain.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: alice,
		Content:  "indexed too",
	})
	req.NoError(err)

	select {
	case published := <-engine.Events():
		req.Equal(env, published)
	default:
		t.Fatal("no event published")
	}
}
