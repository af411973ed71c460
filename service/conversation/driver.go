// Package conversation implements the driver that moves a session between
// operator tasks, agent replies and the approval gate.
//
// Submit appends the operator's task and runs the agent until it either
// answers (an agent Turn is appended and the gate stays empty) or proposes
// code (the gate is populated and the session suspends in
// StateAwaitingApproval). Resume continues a suspended session with the
// operator's Signal: approve runs the snippet and lets the agent take its next
// step; deny ends the conversation without appending anything.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/clock"
	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/policy"
	"github.com/viant/unchained/progress"
	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/exec"
	"github.com/viant/unchained/service/extract"
	"github.com/viant/unchained/service/review"
	"github.com/viant/unchained/service/session"
	"github.com/viant/unchained/tracing"
)

// Executor runs approved snippets.
type Executor interface {
	Execute(ctx context.Context, input *exec.Input, output *exec.Output) error
}

// Outcome describes where a Submit or Resume left the session.
type Outcome struct {
	State session.State `json:"state"`
	// Turn is the agent answer appended by this step, if any.
	Turn *session.Turn `json:"turn,omitempty"`
	// Pending is the request now awaiting the operator, if any.
	Pending    *approval.Request          `json:"pending,omitempty"`
	Executions []*session.ExecutionRecord `json:"executions,omitempty"`
	Decision   *approval.Decision         `json:"decision,omitempty"`
}

type Driver struct {
	assistant    agent.Assistant
	executor     Executor
	policy       *policy.Policy
	systemPrompt string
	maxRounds    int
	publisher    *event.Publisher[any]
	logger       *zap.Logger
	env          map[string]string
	timeoutMs    int
	host         *exec.Host
}

func New(assistant agent.Assistant, executor Executor, options ...Option) *Driver {
	ret := &Driver{
		assistant:    assistant,
		executor:     executor,
		systemPrompt: agent.DefaultSystemPrompt,
		maxRounds:    defaultMaxRounds,
	}
	for _, option := range options {
		option(ret)
	}
	ret.logger = logging.OrNop(ret.logger)
	return ret
}

// Submit appends task as a user turn and advances the agent. It fails with
// ErrAwaitingApproval, leaving the session untouched, while an approval is
// pending.
func (d *Driver) Submit(ctx context.Context, aSession *session.Session, task string) (outcome *Outcome, err error) {
	if aSession == nil {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyTask
	}
	aSession.Lock()
	defer aSession.Unlock()

	ctx, span := tracing.StartSpan(ctx, "conversation.submit", tracing.KindInternal)
	span.WithAttributes(map[string]string{"session.id": aSession.ID})
	defer func() { tracing.EndSpan(span, err) }()
	ctx = progress.WithTracker(ctx, aSession.Progress())

	if aSession.State() == session.StateAwaitingApproval {
		return nil, ErrAwaitingApproval
	}
	if aSession.State() == session.StateTerminated || !aSession.HasConversation() {
		aSession.StartConversation(d.systemPrompt)
		aSession.SetState(session.StateIdle)
	}
	turn := aSession.AppendTurn(session.RoleUser, task)
	progress.UpdateCtx(ctx, progress.Delta{Turns: 1})
	d.emit(ctx, aSession.ID, event.TopicTurnAppended, turn)
	aSession.AppendHistory(agent.Message{Role: agent.RoleUser, Content: task})
	return d.advance(ctx, aSession, &Outcome{})
}

// Resume continues a suspended session. Approve fails with
// approval.ErrNoPendingApproval when nothing is pending; deny on an empty gate
// is a no-op.
func (d *Driver) Resume(ctx context.Context, aSession *session.Session, signal approval.Signal, reason string) (outcome *Outcome, err error) {
	if aSession == nil {
		return nil, ErrNoSession
	}
	aSession.Lock()
	defer aSession.Unlock()

	ctx, span := tracing.StartSpan(ctx, "conversation.resume", tracing.KindInternal)
	span.WithAttributes(map[string]string{"session.id": aSession.ID, "signal": string(signal)})
	defer func() { tracing.EndSpan(span, err) }()
	ctx = progress.WithTracker(ctx, aSession.Progress())

	resolution, err := approval.Resolve(ctx, aSession.Gate(), signal, reason)
	if err != nil {
		return nil, err
	}
	if resolution == nil {
		return &Outcome{State: aSession.State()}, nil
	}
	outcome = &Outcome{Decision: resolution.Decision}
	if resolution.Signal == approval.SignalDeny {
		progress.UpdateCtx(ctx, progress.Delta{Denied: 1})
		d.terminate(ctx, aSession, "denied by operator")
		outcome.State = aSession.State()
		return outcome, nil
	}

	progress.UpdateCtx(ctx, progress.Delta{Approved: 1})
	aSession.SetState(session.StateIdle)
	d.emitState(ctx, aSession)
	if record := d.execute(ctx, aSession, resolution.Request); record != nil {
		outcome.Executions = append(outcome.Executions, record)
	}
	return d.advance(ctx, aSession, outcome)
}

// advance asks the agent for replies until one is an answer or a proposal
// that needs the operator.
func (d *Driver) advance(ctx context.Context, aSession *session.Session, outcome *Outcome) (*Outcome, error) {
	for round := 0; ; round++ {
		if round >= d.maxRounds {
			d.terminate(ctx, aSession, "max rounds exceeded")
			outcome.State = aSession.State()
			return outcome, fmt.Errorf("%w: %d", ErrMaxRounds, d.maxRounds)
		}
		reply, err := d.reply(ctx, aSession)
		if err != nil {
			d.terminate(ctx, aSession, "agent failure")
			outcome.State = aSession.State()
			return outcome, err
		}
		aSession.AppendHistory(agent.Message{Role: agent.RoleAssistant, Content: reply})
		progress.UpdateCtx(ctx, progress.Delta{Rounds: 1})

		answer, terminated := agent.StripTermination(reply)
		if terminated || !extract.Scan(reply).HasFence() {
			turn := aSession.AppendTurn(session.RoleAgent, answer)
			progress.UpdateCtx(ctx, progress.Delta{Turns: 1})
			d.emit(ctx, aSession.ID, event.TopicTurnAppended, turn)
			if terminated {
				aSession.StartConversation(d.systemPrompt)
			}
			aSession.SetState(session.StateIdle)
			outcome.State = aSession.State()
			outcome.Turn = &turn
			return outcome, nil
		}

		request, err := d.request(ctx, aSession, reply)
		if err != nil {
			return outcome, err
		}
		verdict, reason := approval.Evaluate(d.policyFor(ctx), request)
		switch verdict {
		case approval.VerdictDeny:
			resolution, err := aSession.Gate().Deny(ctx, reason)
			if err != nil {
				return outcome, err
			}
			if resolution != nil {
				outcome.Decision = resolution.Decision
			}
			progress.UpdateCtx(ctx, progress.Delta{Denied: 1})
			d.terminate(ctx, aSession, reason)
			outcome.State = aSession.State()
			return outcome, nil
		case approval.VerdictApprove:
			resolution, err := aSession.Gate().Approve(ctx, reason)
			if err != nil {
				return outcome, err
			}
			outcome.Decision = resolution.Decision
			progress.UpdateCtx(ctx, progress.Delta{Approved: 1})
			if record := d.execute(ctx, aSession, resolution.Request); record != nil {
				outcome.Executions = append(outcome.Executions, record)
			}
			continue
		}
		aSession.SetState(session.StateAwaitingApproval)
		d.emitState(ctx, aSession)
		outcome.State = aSession.State()
		outcome.Pending = request
		return outcome, nil
	}
}

func (d *Driver) reply(ctx context.Context, aSession *session.Session) (reply string, err error) {
	ctx, span := tracing.StartSpan(ctx, "agent.reply", tracing.KindClient)
	defer func() { tracing.EndSpan(span, err) }()
	reply, err = d.assistant.Reply(ctx, aSession.History())
	if err != nil {
		d.logger.Error("agent reply failed", zap.String("session", aSession.ID), zap.Error(err))
		return "", fmt.Errorf("agent reply: %w", err)
	}
	return reply, nil
}

// request populates the gate and attaches the revision against the previous
// proposal of this conversation.
func (d *Driver) request(ctx context.Context, aSession *session.Session, reply string) (*approval.Request, error) {
	request, err := aSession.Gate().Request(ctx, aSession.ID, reply)
	if err != nil {
		return nil, err
	}
	progress.UpdateCtx(ctx, progress.Delta{Requests: 1})
	if !request.Executable() {
		return request, nil
	}
	number, previous := aSession.AddProposal(request.Snippet.Code)
	revision, err := review.Compare(previous, request.Snippet.Code, "snippet."+request.Language(), number)
	if err != nil {
		d.logger.Warn("failed to diff proposal", zap.String("session", aSession.ID), zap.Error(err))
	}
	request.Revision = revision
	return request, nil
}

// execute runs an approved request and feeds the report back to the agent.
// Requests without a code block are not executed; the agent is told so.
func (d *Driver) execute(ctx context.Context, aSession *session.Session, request *approval.Request) *session.ExecutionRecord {
	if !request.Executable() {
		aSession.AppendHistory(agent.Message{Role: agent.RoleUser, Content: noCodeMessage(request.ParseError)})
		return nil
	}
	input := &exec.Input{
		Language:  request.Snippet.Language,
		Code:      request.Snippet.Code,
		Workdir:   aSession.Workdir,
		Env:       d.env,
		TimeoutMs: d.timeoutMs,
		Host:      d.host,
	}
	output := &exec.Output{}
	ctx, span := tracing.StartSpan(ctx, "exec.run", tracing.KindClient)
	span.WithAttributes(map[string]string{"language": input.Language, "request.id": request.ID})
	err := d.executor.Execute(ctx, input, output)
	tracing.EndSpan(span, err)
	if err != nil {
		d.logger.Error("execution failed to start", zap.String("session", aSession.ID), zap.String("request", request.ID), zap.Error(err))
		output.Language = input.Language
		output.Status = 1
		output.Stderr = err.Error()
	}

	record := session.NewExecutionRecord(request.ID, input.Code, output, clock.Now())
	aSession.AddExecution(record)
	delta := progress.Delta{Executions: 1}
	if !output.Succeeded() {
		delta.Failed = 1
	}
	progress.UpdateCtx(ctx, delta)
	d.emit(ctx, aSession.ID, event.TopicExecutionCompleted, record)
	aSession.AppendHistory(agent.Message{Role: agent.RoleUser, Content: output.Report()})
	return record
}

// terminate ends the conversation. The transcript is left as is.
func (d *Driver) terminate(ctx context.Context, aSession *session.Session, reason string) {
	if pending := aSession.Gate().Pending(); pending != nil {
		_, _ = aSession.Gate().Deny(ctx, reason)
	}
	aSession.AppendHistory(agent.Message{Role: agent.RoleUser, Content: deniedFeedback})
	aSession.SetState(session.StateTerminated)
	d.logger.Info("conversation terminated", zap.String("session", aSession.ID), zap.String("reason", reason))
	d.emit(ctx, aSession.ID, event.TopicConversationTerminated, reason)
}

func (d *Driver) policyFor(ctx context.Context) *policy.Policy {
	if p := policy.FromContext(ctx); p != nil {
		return p
	}
	return d.policy
}

func (d *Driver) emitState(ctx context.Context, aSession *session.Session) {
	d.emit(ctx, aSession.ID, event.TopicStateChanged, aSession.State())
}

func (d *Driver) emit(ctx context.Context, sessionID, topic string, data any) {
	if err := d.publisher.Emit(ctx, sessionID, topic, data); err != nil {
		d.logger.Debug("event dropped", zap.String("topic", topic), zap.Error(err))
	}
}
