package event

import (
	"context"

	"github.com/viant/unchained/internal/clock"
	"github.com/viant/unchained/service/messaging"
)

// Publisher writes events onto a queue. A nil *Publisher is valid and drops
// everything, so components can publish unconditionally.
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps and enqueues event.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if p == nil || p.queue == nil || event == nil {
		return nil
	}
	event.CreatedAt = clock.Now().UnixMilli()
	return p.queue.Publish(ctx, event)
}

// Emit builds and publishes an event for sessionID/topic.
func (p *Publisher[T]) Emit(ctx context.Context, sessionID, topic string, data T) error {
	return p.Publish(ctx, NewEvent(&Context{SessionID: sessionID, Topic: topic}, data))
}

// Consume blocks for the next event and acknowledges it.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
