package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/viant/unchained/service/messaging/memory"
)

func TestListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	publisher := NewPublisher[any](memory.NewQueue[Event[any]](memory.DefaultConfig()))

	var mu sync.Mutex
	var received []*Event[any]
	got := make(chan struct{}, 2)
	listener := NewListener[any](publisher, func(e *Event[any]) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		got <- struct{}{}
	}, nil)
	listener.Start(context.Background())
	listener.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, publisher.Emit(ctx, "s1", TopicTurnAppended, "hello"))
	require.NoError(t, publisher.Emit(ctx, "s2", TopicRequestCreated, 42))

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	listener.Stop()
	listener.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "s1", received[0].SessionID())
	assert.Equal(t, TopicTurnAppended, received[0].Topic())
	assert.Equal(t, "hello", received[0].Data)
	assert.Equal(t, 42, received[1].Data)
}

func TestPublisher_Nil(t *testing.T) {
	var publisher *Publisher[any]
	assert.NoError(t, publisher.Emit(context.Background(), "s", TopicStateChanged, nil))

	var e *Event[any]
	assert.Equal(t, "", e.SessionID())
	assert.Equal(t, "", e.Topic())
}
