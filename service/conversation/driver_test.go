package conversation

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/unchained/policy"
	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/exec"
	"github.com/viant/unchained/service/session"
)

type fakeExecutor struct {
	mu     sync.Mutex
	inputs []*exec.Input
	status int
	stdout string
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, input *exec.Input, output *exec.Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return f.err
	}
	output.Language = input.Language
	output.Status = f.status
	if f.status == 0 {
		output.Stdout = f.stdout
	} else {
		output.Stderr = f.stdout
	}
	return nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

const listFilesReply = "To list the files I will run:\n```python\nimport os\nprint(os.listdir('.'))\n```\nPlease execute it."

func newSession(t *testing.T) *session.Session {
	registry := session.NewRegistry(session.WithBaseDir(t.TempDir()))
	aSession, err := registry.Create(context.Background())
	require.NoError(t, err)
	return aSession
}

func TestDriver_ApproveScenario(t *testing.T) {
	ctx := context.Background()
	script := agent.NewScripted(listFilesReply, "The directory contains a.txt and b.txt. TERMINATE")
	executor := &fakeExecutor{stdout: "['a.txt', 'b.txt']"}
	driver := New(script, executor)
	aSession := newSession(t)

	outcome, err := driver.Submit(ctx, aSession, "list files in current directory")
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingApproval, outcome.State)
	require.NotNil(t, outcome.Pending)
	assert.Nil(t, outcome.Turn)
	require.NotNil(t, outcome.Pending.Snippet)
	assert.Equal(t, "\nimport os\nprint(os.listdir('.'))\n", outcome.Pending.Snippet.Code)
	assert.Equal(t, listFilesReply, outcome.Pending.Prompt)
	assert.Nil(t, outcome.Pending.Revision)

	snapshot := aSession.Snapshot()
	assert.True(t, snapshot.AwaitingApproval())
	require.NotNil(t, snapshot.Pending)
	require.Len(t, snapshot.Transcript, 1)
	assert.Equal(t, session.RoleUser, snapshot.Transcript[0].Role)

	outcome, err = driver.Resume(ctx, aSession, approval.SignalApprove, "")
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, outcome.State)
	assert.Nil(t, outcome.Pending)
	require.NotNil(t, outcome.Turn)
	assert.Equal(t, "The directory contains a.txt and b.txt.", outcome.Turn.Content)
	require.Len(t, outcome.Executions, 1)
	assert.Equal(t, 0, outcome.Executions[0].Status)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, approval.SignalApprove, outcome.Decision.Signal)

	require.Equal(t, 1, executor.calls())
	assert.Equal(t, "python", executor.inputs[0].Language)
	assert.Equal(t, aSession.Workdir, executor.inputs[0].Workdir)

	history := script.Last()
	feedback := history[len(history)-1]
	assert.Equal(t, agent.RoleUser, feedback.Role)
	assert.Equal(t, "exitcode: 0 (execution succeeded)\nCode output: ['a.txt', 'b.txt']", feedback.Content)

	snapshot = aSession.Snapshot()
	assert.Nil(t, snapshot.Pending)
	require.Len(t, snapshot.Transcript, 2)
	assert.Equal(t, session.RoleAgent, snapshot.Transcript[1].Role)
	assert.Len(t, snapshot.Executions, 1)
	assert.Equal(t, 2, snapshot.Progress.Turns)
	assert.Equal(t, 1, snapshot.Progress.Approved)
	assert.Equal(t, 1, snapshot.Progress.Executions)
}

func TestDriver_DenyScenario(t *testing.T) {
	ctx := context.Background()
	script := agent.NewScripted(listFilesReply)
	executor := &fakeExecutor{}
	driver := New(script, executor)
	aSession := newSession(t)

	_, err := driver.Submit(ctx, aSession, "list files in current directory")
	require.NoError(t, err)
	before := aSession.Snapshot().Transcript

	outcome, err := driver.Resume(ctx, aSession, approval.SignalDeny, "")
	require.NoError(t, err)
	assert.Equal(t, session.StateTerminated, outcome.State)
	assert.Nil(t, outcome.Turn)
	assert.Nil(t, outcome.Pending)

	snapshot := aSession.Snapshot()
	assert.Equal(t, before, snapshot.Transcript)
	assert.Nil(t, snapshot.Pending)
	assert.Equal(t, 0, executor.calls())
	assert.Equal(t, 1, script.Calls())

	outcome, err = driver.Resume(ctx, aSession, approval.SignalDeny, "")
	require.NoError(t, err, "second deny is a no-op")
	assert.Equal(t, session.StateTerminated, outcome.State)
	assert.Equal(t, before, aSession.Snapshot().Transcript)

	_, err = driver.Resume(ctx, aSession, approval.SignalApprove, "")
	assert.ErrorIs(t, err, approval.ErrNoPendingApproval)

	decisions, err := aSession.Gate().Decisions(ctx)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestDriver_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("plain answer", func(t *testing.T) {
		driver := New(agent.NewScripted("Paris. TERMINATE"), &fakeExecutor{})
		aSession := newSession(t)
		outcome, err := driver.Submit(ctx, aSession, "capital of France?")
		require.NoError(t, err)
		assert.Equal(t, session.StateIdle, outcome.State)
		require.NotNil(t, outcome.Turn)
		assert.Equal(t, "Paris.", outcome.Turn.Content)
		assert.Nil(t, aSession.Snapshot().Pending)
	})

	t.Run("empty task", func(t *testing.T) {
		driver := New(agent.NewScripted(), &fakeExecutor{})
		_, err := driver.Submit(ctx, newSession(t), "  ")
		assert.ErrorIs(t, err, ErrEmptyTask)
		_, err = driver.Submit(ctx, nil, "task")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("awaiting approval", func(t *testing.T) {
		script := agent.NewScripted(listFilesReply)
		driver := New(script, &fakeExecutor{})
		aSession := newSession(t)
		_, err := driver.Submit(ctx, aSession, "list files")
		require.NoError(t, err)
		pending := aSession.Snapshot().Pending

		_, err = driver.Submit(ctx, aSession, "something else")
		assert.ErrorIs(t, err, ErrAwaitingApproval)
		snapshot := aSession.Snapshot()
		assert.Len(t, snapshot.Transcript, 1)
		assert.Equal(t, pending.ID, snapshot.Pending.ID)
		assert.Equal(t, 1, script.Calls())
	})

	t.Run("fresh conversation after termination", func(t *testing.T) {
		script := agent.NewScripted(listFilesReply, "Hello. TERMINATE")
		driver := New(script, &fakeExecutor{}, WithSystemPrompt("sys"))
		aSession := newSession(t)
		_, err := driver.Submit(ctx, aSession, "list files")
		require.NoError(t, err)
		_, err = driver.Resume(ctx, aSession, approval.SignalDeny, "")
		require.NoError(t, err)

		outcome, err := driver.Submit(ctx, aSession, "say hello")
		require.NoError(t, err)
		assert.Equal(t, session.StateIdle, outcome.State)
		assert.Equal(t, []agent.Message{
			{Role: agent.RoleSystem, Content: "sys"},
			{Role: agent.RoleUser, Content: "say hello"},
		}, script.Last())
		assert.Len(t, aSession.Snapshot().Transcript, 3)
	})

	t.Run("agent failure terminates", func(t *testing.T) {
		failing := agent.AssistantFunc(func(context.Context, []agent.Message) (string, error) {
			return "", errors.New("model unavailable")
		})
		driver := New(failing, &fakeExecutor{})
		aSession := newSession(t)
		outcome, err := driver.Submit(ctx, aSession, "anything")
		assert.Error(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, session.StateTerminated, outcome.State)
		assert.Nil(t, aSession.Snapshot().Pending)
	})
}

func TestDriver_MalformedRequest(t *testing.T) {
	ctx := context.Background()
	prompt := "Run this:\n```\nls -la\n```"
	script := agent.NewScripted(prompt, "Sorry, here is the final answer. TERMINATE")
	executor := &fakeExecutor{}
	driver := New(script, executor)
	aSession := newSession(t)

	outcome, err := driver.Submit(ctx, aSession, "list files")
	require.NoError(t, err)
	require.NotNil(t, outcome.Pending)
	assert.Nil(t, outcome.Pending.Snippet)
	assert.NotEmpty(t, outcome.Pending.ParseError)
	assert.Equal(t, prompt, outcome.Pending.Display())
	assert.Equal(t, session.StateAwaitingApproval, outcome.State)

	outcome, err = driver.Resume(ctx, aSession, approval.SignalApprove, "")
	require.NoError(t, err)
	assert.Equal(t, 0, executor.calls())
	assert.Empty(t, outcome.Executions)
	require.NotNil(t, outcome.Turn)
	history := script.Last()
	assert.True(t, strings.HasPrefix(history[len(history)-1].Content, "No code block was found"))
}

func TestDriver_Policy(t *testing.T) {
	ctx := context.Background()
	shellReply := "```sh\nls\n```"

	type testCase struct {
		name         string
		policy       *policy.Policy
		replies      []string
		fallback     string
		maxRounds    int
		expectState  session.State
		expectErr    error
		expectCalls  int
		expectTurns  int
		expectDenied int
	}

	tests := []testCase{
		{
			name:        "auto executes until answer",
			policy:      &policy.Policy{Mode: policy.ModeAuto},
			replies:     []string{shellReply, "```python\nprint(1)\n```", "done TERMINATE"},
			expectState: session.StateIdle,
			expectCalls: 2,
			expectTurns: 2,
		},
		{
			name:        "auto bounded by max rounds",
			policy:      &policy.Policy{Mode: policy.ModeAuto},
			fallback:    shellReply,
			maxRounds:   3,
			expectState: session.StateTerminated,
			expectErr:   ErrMaxRounds,
			expectCalls: 3,
			expectTurns: 1,
		},
		{
			name:         "deny mode terminates",
			policy:       &policy.Policy{Mode: policy.ModeDeny},
			replies:      []string{shellReply},
			expectState:  session.StateTerminated,
			expectTurns:  1,
			expectDenied: 1,
		},
		{
			name:         "blocked language terminates",
			policy:       &policy.Policy{Mode: policy.ModeAuto, BlockList: []string{"sh"}},
			replies:      []string{shellReply},
			expectState:  session.StateTerminated,
			expectTurns:  1,
			expectDenied: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			script := agent.NewScripted(tc.replies...)
			script.Fallback = tc.fallback
			executor := &fakeExecutor{stdout: "ok"}
			driver := New(script, executor, WithPolicy(tc.policy), WithMaxRounds(tc.maxRounds))
			aSession := newSession(t)

			outcome, err := driver.Submit(ctx, aSession, "do it")
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, outcome)
			assert.Equal(t, tc.expectState, outcome.State)
			assert.Nil(t, outcome.Pending)
			assert.Equal(t, tc.expectCalls, executor.calls())

			snapshot := aSession.Snapshot()
			assert.Nil(t, snapshot.Pending)
			assert.Len(t, snapshot.Transcript, tc.expectTurns)
			assert.Equal(t, tc.expectDenied, snapshot.Progress.Denied)
		})
	}

	t.Run("context policy overrides driver policy", func(t *testing.T) {
		executor := &fakeExecutor{}
		driver := New(agent.NewScripted(shellReply), executor, WithPolicy(&policy.Policy{Mode: policy.ModeAuto}))
		aSession := newSession(t)
		outcome, err := driver.Submit(policy.WithPolicy(ctx, &policy.Policy{Mode: policy.ModeAsk}), aSession, "do it")
		require.NoError(t, err)
		assert.Equal(t, session.StateAwaitingApproval, outcome.State)
		assert.Equal(t, 0, executor.calls())
	})
}

func TestDriver_Revision(t *testing.T) {
	ctx := context.Background()
	script := agent.NewScripted(
		"```python\nprint(os.listdir('.'))\n```",
		"I forgot the import:\n```python\nimport os\nprint(os.listdir('.'))\n```",
	)
	executor := &fakeExecutor{status: 1, stdout: "NameError: name 'os' is not defined"}
	driver := New(script, executor)
	aSession := newSession(t)

	_, err := driver.Submit(ctx, aSession, "list files")
	require.NoError(t, err)
	outcome, err := driver.Resume(ctx, aSession, approval.SignalApprove, "")
	require.NoError(t, err)

	require.NotNil(t, outcome.Pending, "approve yields a new pending request")
	assert.Nil(t, outcome.Turn)
	require.Len(t, outcome.Executions, 1)
	assert.Equal(t, 1, outcome.Executions[0].Status)
	require.NotNil(t, outcome.Pending.Revision)
	assert.Equal(t, 2, outcome.Pending.Revision.Number)
	assert.Equal(t, 1, outcome.Pending.Revision.Stats.Added)
	assert.Contains(t, outcome.Pending.Revision.Diff, "+import os")

	history := script.Last()
	assert.Equal(t, "exitcode: 1 (execution failed)\nCode output: NameError: name 'os' is not defined", history[len(history)-1].Content)
	assert.Equal(t, 1, aSession.Snapshot().Progress.Failed)
}

// TestDriver_Invariants drives random submit/approve/deny sequences and checks
// that a pending request exists exactly when the session awaits approval, that
// approve produces exactly one of answer or new request, and that deny never
// appends a turn.
func TestDriver_Invariants(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 20; seed++ {
		rnd := rand.New(rand.NewSource(seed))
		assistant := agent.AssistantFunc(func(context.Context, []agent.Message) (string, error) {
			if rnd.Intn(2) == 0 {
				return "```sh\necho hi\n```", nil
			}
			return "All done. TERMINATE", nil
		})
		driver := New(assistant, &fakeExecutor{stdout: "hi"})
		aSession := newSession(t)

		for step := 0; step < 30; step++ {
			before := aSession.Snapshot()
			switch rnd.Intn(3) {
			case 0:
				outcome, err := driver.Submit(ctx, aSession, "task")
				if before.AwaitingApproval() {
					assert.ErrorIs(t, err, ErrAwaitingApproval)
					assert.Equal(t, len(before.Transcript), len(aSession.Snapshot().Transcript))
					break
				}
				require.NoError(t, err)
				assert.True(t, (outcome.Turn == nil) != (outcome.Pending == nil))
			case 1:
				outcome, err := driver.Resume(ctx, aSession, approval.SignalApprove, "")
				if !before.AwaitingApproval() {
					assert.ErrorIs(t, err, approval.ErrNoPendingApproval)
					break
				}
				require.NoError(t, err)
				assert.True(t, (outcome.Turn == nil) != (outcome.Pending == nil), "seed %d step %d", seed, step)
			case 2:
				_, err := driver.Resume(ctx, aSession, approval.SignalDeny, "")
				require.NoError(t, err)
				after := aSession.Snapshot()
				assert.Nil(t, after.Pending)
				assert.Equal(t, len(before.Transcript), len(after.Transcript))
				if before.AwaitingApproval() {
					assert.Equal(t, session.StateTerminated, after.State)
				}
			}
			after := aSession.Snapshot()
			assert.Equal(t, after.AwaitingApproval(), after.Pending != nil, "seed %d step %d", seed, step)
		}
	}
}
