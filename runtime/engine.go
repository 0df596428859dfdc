package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/observability"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Engine translates one validated inbound event into zero or more
// outbound deliveries. Membership is resolved fresh on every operation;
// the resolved set doubles as the sender authorization check at the
// boundary between transport and domain.
type Engine struct {
	log        *slog.Logger
	resolver   contract.IMembershipResolver
	registry   contract.IRegistry
	history    contract.IHistory
	monitoring *observability.MonitoringManager
	events     chan domain.Envelope
}

func NewEngine(log *slog.Logger, resolver contract.IMembershipResolver,
	registry contract.IRegistry, history contract.IHistory,
	monitoring *observability.MonitoringManager, bufferSize int) *Engine {
	return &Engine{
		log:        log,
		resolver:   resolver,
		registry:   registry,
		history:    history,
		monitoring: monitoring,
		events:     make(chan domain.Envelope, bufferSize),
	}
}

// Events exposes the asynchronous sink pipeline fed by every broadcast.
// Consumption is best effort and carries no ordering guarantee.
func (e *Engine) Events() <-chan domain.Envelope {
	return e.events
}

// BroadcastMessage fans a persisted message out to every currently
// connected participant, the sender included, so the sender's client
// receives the authoritative echo with the server-assigned identifier
// and timestamp. Participants without a live channel are skipped; a
// chat with zero connected participants is a normal outcome, still
// observable through history replay on the next connect.
func (e *Engine) BroadcastMessage(ctx context.Context, msg domain.Message) (domain.Envelope, error) {
	members, err := e.resolveMembers(ctx, msg.ChatID)
	if err != nil {
		return domain.Envelope{}, err
	}
	if !lo.Contains(members, msg.SenderID) {
		return domain.Envelope{}, errs.ErrChatNotFound
	}

	env := domain.NewMessageEnvelope(msg)
	e.history.Append(msg.ChatID, env)

	delivered := e.deliver(members, env)
	e.monitoring.AddBroadcast(delivered)
	e.publish(env)

	e.log.Debug("message broadcast",
		"chat_id", msg.ChatID,
		"sender_id", msg.SenderID,
		"participants", len(members),
		"delivered", delivered)
	return env, nil
}

// BroadcastDeletion notifies every connected participant that a message
// was removed from durable storage. The buffered copy is dropped as
// well, so replay never resurrects a deleted message.
func (e *Engine) BroadcastDeletion(ctx context.Context, chatID, messageID uuid.UUID) error {
	members, err := e.resolveMembers(ctx, chatID)
	if err != nil {
		return err
	}

	env := domain.DeletionEnvelope(chatID, messageID)
	e.history.Remove(chatID, messageID)

	delivered := e.deliver(members, env)
	e.monitoring.AddBroadcast(delivered)
	e.publish(env)

	e.log.Debug("deletion broadcast",
		"chat_id", chatID,
		"message_id", messageID,
		"delivered", delivered)
	return nil
}

// Replay returns the chat's buffered envelopes re-marked for history
// replay, oldest first.
func (e *Engine) Replay(chatID uuid.UUID) []domain.Envelope {
	return lo.Map(e.history.Snapshot(chatID), func(env domain.Envelope, _ int) domain.Envelope {
		return env.AsReplay()
	})
}

func (e *Engine) deliver(members []uuid.UUID, env domain.Envelope) int {
	delivered := 0
	for _, userID := range members {
		if e.registry.TrySend(userID, env) {
			delivered++
		}
	}
	return delivered
}

// resolveMembers consults the resolver once per operation. Not-found
// passes through as ErrChatNotFound; any other storage failure is fatal
// to this operation only and maps to ErrResolverUnavailable.
func (e *Engine) resolveMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	members, err := e.resolver.ResolveMembers(ctx, chatID)
	if err != nil {
		if errors.Is(err, errs.ErrChatNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrResolverUnavailable, err)
	}
	return members, nil
}

func (e *Engine) publish(env domain.Envelope) {
	select {
	case e.events <- env:
	default:
		e.log.Warn("event pipeline full, dropping envelope", "chat_id", env.ChatID)
	}
}
