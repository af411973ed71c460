// Package event carries session notifications (turns, approval requests,
// decisions, executions) from the driver to whichever front end listens.
package event

import (
	"github.com/viant/unchained/internal/clock"
)

// Standard event topics.
const (
	TopicTurnAppended           = "turn.appended"
	TopicRequestCreated         = "request.created"
	TopicDecisionCreated        = "decision.created"
	TopicExecutionCompleted     = "execution.completed"
	TopicConversationTerminated = "conversation.terminated"
	TopicStateChanged           = "state.changed"
)

type Context struct {
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt int64                  `json:"createdAt"` // unix millis
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now().UnixMilli(),
		Data:      data,
	}
}

// SessionID returns the owning session or "" for a context-less event.
func (e *Event[T]) SessionID() string {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context.SessionID
}

// Topic returns the event topic or "".
func (e *Event[T]) Topic() string {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context.Topic
}
