package workers

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/mocks"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_Fanout_Feeds_Every_Sink(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	events := make(chan domain.Envelope, 4)
	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	worker := NewFanoutWorker(log, events, time.Second, first, second)

	env := domain.Envelope{Kind: domain.EventNewMessage, ChatID: uuid.New(), MessageID: uuid.New()}
	consumed := make(chan struct{}, 2)
	first.EXPECT().Consume(gomock.Any(), env).DoAndReturn(func(context.Context, domain.Envelope) error {
		consumed <- struct{}{}
		return nil
	})
	second.EXPECT().Consume(gomock.Any(), env).DoAndReturn(func(context.Context, domain.Envelope) error {
		consumed <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	events <- env
	for i := 0; i < 2; i++ {
		select {
		case <-consumed:
		case <-time.After(time.Second):
			t.Fatal("sink never consumed the envelope")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fanout did not stop")
	}
}

func Test_Fanout_Survives_Failing_Sink(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	broken := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	worker := NewFanoutWorker(log, nil, time.Second, broken, healthy)

	env := domain.Envelope{Kind: domain.EventNewMessage, ChatID: uuid.New()}
	broken.EXPECT().Consume(gomock.Any(), env).Return(errors.New("index unavailable"))
	healthy.EXPECT().Consume(gomock.Any(), env).Return(nil)

	// The failing sink only costs a log line
	worker.Fanout(context.Background(), env)
}

func Test_Fanout_Stops_On_Closed_Pipeline(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	events := make(chan domain.Envelope)
	close(events)

	worker := NewFanoutWorker(log, events, time.Second)
	req.NoError(worker.Run(context.Background()))
}
