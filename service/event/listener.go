package event

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/logging"
)

// Listener drains a publisher's queue on a goroutine and hands every event to
// handler.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger *zap.Logger) *Listener[T] {
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		logger:    logging.OrNop(logger),
	}
}

// Start launches the consume loop. Calling Start on a running listener is a
// no-op.
func (l *Listener[T]) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

func (l *Listener[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		event, err := l.publisher.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			l.logger.Warn("failed to consume event", zap.Error(err))
			continue
		}
		if event != nil {
			l.handler(event)
		}
	}
}

// Stop cancels the consume loop and waits for it to exit.
func (l *Listener[T]) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
