package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	runs    atomic.Int64
	failFor int64
	panics  bool
}

func (w *countingWorker) Run(ctx context.Context) error {
	n := w.runs.Add(1)
	if n <= w.failFor {
		if w.panics {
			panic("worker blew up")
		}
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func Test_Supervisor_Restarts_Failing_Worker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	worker := &countingWorker{failFor: 2}

	supervisor := NewSupervisor(log)
	supervisor.Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(context.Background())
	}()

	// Two failures then a healthy run
	req.Eventually(func() bool {
		return worker.runs.Load() == 3
	}, 3*time.Second, 10*time.Millisecond)

	supervisor.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func Test_Supervisor_Recovers_Panics(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	worker := &countingWorker{failFor: 1, panics: true}

	supervisor := NewSupervisor(log)
	supervisor.Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(context.Background())
	}()

	req.Eventually(func() bool {
		return worker.runs.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	supervisor.Stop()
	<-done
}

func Test_Supervisor_Honors_Parent_Context(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	worker := &countingWorker{}

	supervisor := NewSupervisor(log)
	supervisor.Add(worker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor ignored parent cancellation")
	}
}
