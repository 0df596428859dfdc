package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"time"
)

// FanoutWorker drains the engine's event pipeline and hands each
// envelope to every registered sink (search index, projections). It
// provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries; sinks serve observability and side
// effects, never delivery to connected peers.
type FanoutWorker struct {
	log         *slog.Logger
	events      <-chan domain.Envelope
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewFanoutWorker(log *slog.Logger, events <-chan domain.Envelope,
	sinkTimeout time.Duration, sinks ...contract.EventSink) *FanoutWorker {
	return &FanoutWorker{
		log:         log,
		events:      events,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
	}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return ctx.Err()
		case env, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, env)
		}
	}
}

// Fanout gives each sink its own bounded slice of time; a slow sink
// loses the envelope instead of stalling the pipeline.
func (w *FanoutWorker) Fanout(ctx context.Context, env domain.Envelope) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, env); err != nil {
			w.log.Warn("sink rejected envelope", "chat_id", env.ChatID, "error", err)
		}
		cancel()
	}
}
