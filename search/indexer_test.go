package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndexer(writer, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func newMessageEnvelope(chatID uuid.UUID, content string) domain.Envelope {
	return domain.Envelope{
		Kind:      domain.EventNewMessage,
		ChatID:    chatID,
		SenderID:  uuid.New(),
		MessageID: uuid.New(),
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func Test_Index_And_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)

	chatID := uuid.New()
	env := newMessageEnvelope(chatID, "the deployment pipeline is green again")
	req.NoError(indexer.Consume(ctx, env))
	req.NoError(indexer.Consume(ctx, newMessageEnvelope(chatID, "lunch at noon?")))

	hits, err := indexer.Search(ctx, Query{Terms: "deployment pipeline", Limit: 10})
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(env.MessageID, hits[0].MessageID)
	req.Equal(env.ChatID, hits[0].ChatID)
	req.Equal(env.SenderID, hits[0].SenderID)
	req.Equal(env.Content, hits[0].Content)
	req.Equal("en", hits[0].Lang)
}

func Test_Search_Scoped_To_Chat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)

	mine := uuid.New()
	other := uuid.New()
	env := newMessageEnvelope(mine, "budget review tomorrow")
	req.NoError(indexer.Consume(ctx, env))
	req.NoError(indexer.Consume(ctx, newMessageEnvelope(other, "budget review cancelled")))

	hits, err := indexer.Search(ctx, Query{Terms: "budget", ChatID: lo.ToPtr(mine), Limit: 10})
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(env.MessageID, hits[0].MessageID)
}

func Test_Deletion_Unindexes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)

	chatID := uuid.New()
	env := newMessageEnvelope(chatID, "ephemeral remark")
	req.NoError(indexer.Consume(ctx, env))

	req.NoError(indexer.Consume(ctx, domain.Envelope{
		Kind:      domain.EventMessageDeleted,
		ChatID:    chatID,
		MessageID: env.MessageID,
	}))

	hits, err := indexer.Search(ctx, Query{Terms: "ephemeral", Limit: 10})
	req.NoError(err)
	req.Empty(hits)
}

func Test_Non_Message_Events_Are_Ignored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	indexer := newTestIndexer(t)

	req.NoError(indexer.Consume(ctx, domain.Envelope{Kind: domain.EventError, Content: "boom"}))
	req.NoError(indexer.Consume(ctx, domain.Envelope{Kind: domain.EventHistoryReplay, Content: "old news"}))

	hits, err := indexer.Search(ctx, Query{Terms: "boom", Limit: 10})
	req.NoError(err)
	req.Empty(hits)
}

func Test_ParseQuery(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()

	query, err := ParseQuery("release notes --chat=" + chatID.String() + " --limit=5")
	req.NoError(err)
	req.Equal("release notes", query.Terms)
	req.Equal(chatID, *query.ChatID)
	req.Equal(5, query.Limit)

	query, err = ParseQuery("plain words")
	req.NoError(err)
	req.Equal("plain words", query.Terms)
	req.Nil(query.ChatID)
	req.Equal(DefaultLimit, query.Limit)

	_, err = ParseQuery("terms --chat=not-a-uuid")
	req.Error(err)
}
