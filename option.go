package unchained

import (
	"go.uber.org/zap"

	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/messaging"
	"github.com/viant/unchained/service/secret"
)

// Option customises the Service.
type Option func(s *Service)

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAssistant bypasses the configured model provider.
func WithAssistant(assistant agent.Assistant) Option {
	return func(s *Service) { s.assistant = assistant }
}

// WithExecutor replaces the snippet executor.
func WithExecutor(executor conversation.Executor) Option {
	return func(s *Service) { s.executor = executor }
}

// WithQueue sets the event queue
func WithQueue(queue messaging.Queue[event.Event[any]]) Option {
	return func(s *Service) { s.queue = queue }
}

func WithSecretService(secrets *secret.Service) Option {
	return func(s *Service) { s.secrets = secrets }
}
