package search

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// Indexer consumes broadcast events and maintains a full-text index of
// message contents. It runs downstream of the fanout worker, so indexing
// latency never delays delivery to connected users.
type Indexer struct {
	writer *bluge.Writer
	log    *slog.Logger
}

var _ contract.EventSink = (*Indexer)(nil)

func NewIndexer(writer *bluge.Writer, log *slog.Logger) *Indexer {
	return &Indexer{writer: writer, log: log}
}

// Hit is a single search result hydrated from stored fields.
type Hit struct {
	MessageID uuid.UUID
	ChatID    uuid.UUID
	SenderID  uuid.UUID
	Content   string
	Lang      string
	At        time.Time
}

// Consume indexes new messages and unindexes deleted ones.
// Other event kinds are not searchable and pass through untouched.
func (i *Indexer) Consume(_ context.Context, env domain.Envelope) error {
	switch env.Kind {
	case domain.EventNewMessage:
		return i.index(env)
	case domain.EventMessageDeleted:
		doc := bluge.NewDocument(env.MessageID.String())
		return i.writer.Delete(doc.ID())
	default:
		return nil
	}
}

func (i *Indexer) index(env domain.Envelope) error {
	lang := whatlanggo.Detect(env.Content).Lang.Iso6391()

	doc := bluge.NewDocument(env.MessageID.String())
	doc.AddField(bluge.NewKeywordField("chat_id", env.ChatID.String()).StoreValue())
	doc.AddField(bluge.NewKeywordField("sender_id", env.SenderID.String()).StoreValue())
	doc.AddField(bluge.NewKeywordField("lang", lang).StoreValue())
	doc.AddField(bluge.NewTextField("content", env.Content).StoreValue())
	doc.AddField(bluge.NewDateTimeField("at", env.Timestamp).StoreValue())

	i.log.Debug("message indexed", "message_id", env.MessageID, "lang", lang)
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message contents, optionally scoped to
// one chat, returning the top hits by relevance.
func (i *Indexer) Search(ctx context.Context, query Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query.Terms).SetField("content"))
	if query.ChatID != nil {
		q.AddMust(bluge.NewTermQuery(query.ChatID.String()).SetField("chat_id"))
	}

	request := bluge.NewTopNSearch(query.Limit, q)
	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := dmi.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = uuid.Parse(string(value))
			case "chat_id":
				hit.ChatID, _ = uuid.Parse(string(value))
			case "sender_id":
				hit.SenderID, _ = uuid.Parse(string(value))
			case "lang":
				hit.Lang = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if at, err := bluge.DecodeDateTime(value); err == nil {
					hit.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
