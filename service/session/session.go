// Package session holds the per-operator conversation state: transcript,
// approval gate, agent history and execution records.
//
// A Session is an explicit object passed to the conversation driver; there is
// no package-level state. Mutating methods expect the caller to hold the
// session lock (Lock/Unlock), which serialises every submit, approve and deny
// for that session.
package session

import (
	"sync"
	"time"

	"github.com/viant/unchained/internal/clock"
	"github.com/viant/unchained/progress"
	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/approval"
)

type Session struct {
	ID        string
	Workdir   string
	CreatedAt time.Time

	sync.Mutex
	transcript []Turn
	state      State
	gate       approval.Gate
	history    []agent.Message
	executions []*ExecutionRecord
	progress   *progress.Progress
	proposals  []string
}

// New creates an idle session.
func New(id, workdir string, gate approval.Gate) *Session {
	return &Session{
		ID:        id,
		Workdir:   workdir,
		CreatedAt: clock.Now(),
		state:     StateIdle,
		gate:      gate,
		progress:  progress.New(id, nil),
	}
}

func (s *Session) Gate() approval.Gate { return s.gate }

func (s *Session) Progress() *progress.Progress { return s.progress }

func (s *Session) State() State { return s.state }

func (s *Session) SetState(state State) { s.state = state }

// AppendTurn appends an immutable turn to the transcript.
func (s *Session) AppendTurn(role Role, content string) Turn {
	turn := Turn{Role: role, Content: content, CreatedAt: clock.Now()}
	s.transcript = append(s.transcript, turn)
	return turn
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []Turn {
	return append([]Turn(nil), s.transcript...)
}

// History returns the agent conversation (including the system prompt).
func (s *Session) History() []agent.Message {
	return append([]agent.Message(nil), s.history...)
}

func (s *Session) AppendHistory(messages ...agent.Message) {
	s.history = append(s.history, messages...)
}

// StartConversation discards the agent history and proposal trail and seeds
// a new history with systemPrompt. The transcript is kept.
func (s *Session) StartConversation(systemPrompt string) {
	s.history = s.history[:0]
	if systemPrompt != "" {
		s.history = append(s.history, agent.Message{Role: agent.RoleSystem, Content: systemPrompt})
	}
	s.proposals = nil
}

func (s *Session) HasConversation() bool { return len(s.history) > 0 }

func (s *Session) AddExecution(record *ExecutionRecord) {
	s.executions = append(s.executions, record)
}

func (s *Session) Executions() []*ExecutionRecord {
	return append([]*ExecutionRecord(nil), s.executions...)
}

// AddProposal records proposed code and returns its 1-based number together
// with the previous proposal, if any.
func (s *Session) AddProposal(code string) (number int, previous string) {
	if n := len(s.proposals); n > 0 {
		previous = s.proposals[n-1]
	}
	s.proposals = append(s.proposals, code)
	return len(s.proposals), previous
}

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	ID         string             `json:"id"`
	State      State              `json:"state"`
	Workdir    string             `json:"workdir"`
	Transcript []Turn             `json:"transcript"`
	Pending    *approval.Request  `json:"pending,omitempty"`
	Executions []*ExecutionRecord `json:"executions,omitempty"`
	Progress   progress.Progress  `json:"progress"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// Snapshot locks the session and copies its state.
func (s *Session) Snapshot() *Snapshot {
	s.Lock()
	defer s.Unlock()
	ret := &Snapshot{
		ID:         s.ID,
		State:      s.state,
		Workdir:    s.Workdir,
		Transcript: s.Transcript(),
		Executions: s.Executions(),
		Progress:   s.progress.Snapshot(),
		CreatedAt:  s.CreatedAt,
	}
	if s.gate != nil {
		if pending := s.gate.Pending(); pending != nil {
			copied := *pending
			ret.Pending = &copied
		}
	}
	return ret
}

// AwaitingApproval reports whether the session is suspended on the gate.
func (s *Snapshot) AwaitingApproval() bool {
	return s.State == StateAwaitingApproval
}
