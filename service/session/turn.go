package session

import (
	"time"

	"github.com/viant/unchained/service/exec"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one transcript message. Turns are never modified once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type State string

const (
	StateIdle             State = "idle"
	StateAwaitingApproval State = "awaiting_approval"
	StateTerminated       State = "terminated"
)

// ExecutionRecord keeps the result of running an approved snippet. It is fed
// back to the agent, not appended to the transcript.
type ExecutionRecord struct {
	RequestID string        `json:"requestId"`
	Language  string        `json:"language"`
	Code      string        `json:"code"`
	File      string        `json:"file,omitempty"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// NewExecutionRecord captures output for requestID.
func NewExecutionRecord(requestID, code string, output *exec.Output, createdAt time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		RequestID: requestID,
		Language:  output.Language,
		Code:      code,
		File:      output.File,
		Stdout:    output.Stdout,
		Stderr:    output.Stderr,
		Status:    output.Status,
		Duration:  output.Duration,
		CreatedAt: createdAt,
	}
}
