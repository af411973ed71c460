// Package memory provides the in-process approval gate.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/clock"
	"github.com/viant/unchained/internal/idgen"
	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/dao"
	"github.com/viant/unchained/service/dao/store"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/extract"
)

type gate struct {
	mu        sync.Mutex
	pending   *approval.Request
	decisions dao.Service[string, approval.Decision]
	publisher *event.Publisher[any]
	logger    *zap.Logger
}

func decisionKey(d *approval.Decision) string { return d.ID }

// New creates an empty gate.
func New(options ...Option) approval.Gate {
	ret := &gate{
		decisions: store.NewMemoryStore[string, approval.Decision](decisionKey),
	}
	for _, option := range options {
		option(ret)
	}
	ret.logger = logging.OrNop(ret.logger)
	return ret
}

func (g *gate) Request(ctx context.Context, sessionID, prompt string) (*approval.Request, error) {
	request := &approval.Request{
		ID:        idgen.New(),
		SessionID: sessionID,
		Prompt:    prompt,
		CreatedAt: clock.Now(),
	}
	result := extract.Scan(prompt)
	switch result.Outcome {
	case extract.Found:
		request.Snippet = result.Block
	case extract.Malformed:
		request.ParseError = result.Err.Error()
	default:
		request.ParseError = approval.ErrNoCodeBlock.Error()
	}
	if request.ParseError != "" {
		g.logger.Warn("approval prompt could not be parsed",
			zap.String("session", sessionID),
			zap.String("request", request.ID),
			zap.String("error", request.ParseError))
	}

	g.mu.Lock()
	if previous := g.pending; previous != nil {
		g.logger.Warn("approval requested while another is pending; replacing",
			zap.String("session", sessionID),
			zap.String("replaced", previous.ID),
			zap.String("request", request.ID))
	}
	g.pending = request
	g.mu.Unlock()

	g.publish(ctx, sessionID, event.TopicRequestCreated, request)
	return request, nil
}

func (g *gate) Approve(ctx context.Context, reason string) (*approval.Resolution, error) {
	request := g.take()
	if request == nil {
		return nil, approval.ErrNoPendingApproval
	}
	return g.decide(ctx, request, approval.SignalApprove, reason)
}

func (g *gate) Deny(ctx context.Context, reason string) (*approval.Resolution, error) {
	request := g.take()
	if request == nil {
		return nil, nil
	}
	return g.decide(ctx, request, approval.SignalDeny, reason)
}

func (g *gate) Pending() *approval.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *gate) Decisions(ctx context.Context) ([]*approval.Decision, error) {
	return g.decisions.List(ctx)
}

func (g *gate) take() *approval.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	request := g.pending
	g.pending = nil
	return request
}

func (g *gate) decide(ctx context.Context, request *approval.Request, signal approval.Signal, reason string) (*approval.Resolution, error) {
	decision := &approval.Decision{
		ID:        idgen.New(),
		RequestID: request.ID,
		SessionID: request.SessionID,
		Signal:    signal,
		Reason:    reason,
		DecidedAt: clock.Now(),
	}
	if err := g.decisions.Save(ctx, decision); err != nil {
		// the slot is already cleared; losing the audit record must not
		// resurrect the request
		g.logger.Error("failed to record decision", zap.String("request", request.ID), zap.Error(err))
	}
	g.publish(ctx, request.SessionID, event.TopicDecisionCreated, decision)
	return &approval.Resolution{Signal: signal, Request: request, Decision: decision}, nil
}

func (g *gate) publish(ctx context.Context, sessionID, topic string, data any) {
	if err := g.publisher.Emit(ctx, sessionID, topic, data); err != nil {
		g.logger.Debug("event dropped", zap.String("topic", topic), zap.Error(err))
	}
}

var _ approval.Gate = (*gate)(nil)
