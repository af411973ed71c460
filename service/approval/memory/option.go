package memory

import (
	"go.uber.org/zap"

	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/dao"
	"github.com/viant/unchained/service/event"
)

type Option func(*gate)

// WithPublisher publishes request.created and decision.created events.
func WithPublisher(publisher *event.Publisher[any]) Option {
	return func(g *gate) { g.publisher = publisher }
}

// WithDecisionStore replaces the in-memory decision audit store.
func WithDecisionStore(store dao.Service[string, approval.Decision]) Option {
	return func(g *gate) { g.decisions = store }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *gate) { g.logger = logger }
}
