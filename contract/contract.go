//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

// IMembershipResolver is the storage collaborator mapping chats to
// participant sets. Membership is resolved fresh on every call; the
// staleness window is a single resolution.
type IMembershipResolver interface {
	ResolveMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	ResolveUserChats(ctx context.Context, userID uuid.UUID) ([]domain.Chat, error)
}

// Channel is the delivery handle a session hands to the registry. The
// session owns it; the registry only keeps a non-owning reference for
// lookup. Send must never block: a full buffer means the envelope is
// dropped and reported through observability, not retried here.
type Channel interface {
	Send(env domain.Envelope) bool
	Close()
}

// IRegistry maps online user identities to their live delivery channel.
// At most one channel per user at any time, even under concurrent
// Register/Unregister races for the same user.
type IRegistry interface {
	Register(userID uuid.UUID, ch Channel)
	Unregister(userID uuid.UUID)
	Release(userID uuid.UUID, ch Channel)
	TrySend(userID uuid.UUID, env domain.Envelope) bool
	ConnectedUsers() []uuid.UUID
}

// IHistory is the bounded per-chat buffer of recent envelopes, replayed
// to clients after connect. It is never the system of record.
type IHistory interface {
	Append(chatID uuid.UUID, env domain.Envelope)
	Snapshot(chatID uuid.UUID) []domain.Envelope
	Remove(chatID, messageID uuid.UUID)
}

// IBroadcaster translates one validated inbound event into zero or more
// outbound deliveries.
type IBroadcaster interface {
	BroadcastMessage(ctx context.Context, msg domain.Message) (domain.Envelope, error)
	BroadcastDeletion(ctx context.Context, chatID, messageID uuid.UUID) error
	Replay(chatID uuid.UUID) []domain.Envelope
}

// ITokenVerifier is the external collaborator owning authentication
// decisions. The relay only asks which user a credential belongs to.
type ITokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// EventSink consumes broadcast envelopes asynchronously (indexing,
// projections, metrics). Best effort, outside the delivery ordering
// guarantee.
type EventSink interface {
	Consume(ctx context.Context, env domain.Envelope) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used for logging and supervision without forcing a naming method on
// the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
