package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/unchained/service/extract"
	"github.com/viant/unchained/service/review"
)

// Signal is the resume signal handed back to the conversation driver.
type Signal string

const (
	SignalApprove Signal = "approve"
	SignalDeny    Signal = "deny"
)

// ParseSignal converts operator input into a Signal.
func ParseSignal(value string) (Signal, error) {
	switch Signal(strings.ToLower(strings.TrimSpace(value))) {
	case SignalApprove:
		return SignalApprove, nil
	case SignalDeny:
		return SignalDeny, nil
	}
	return "", fmt.Errorf("approval: unsupported signal %q", value)
}

// Request is the pending execution request held by a gate.
type Request struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	// Prompt is the raw agent reply that asked for execution.
	Prompt string `json:"prompt"`
	// Snippet is the extracted code block; nil when the prompt could not be
	// parsed.
	Snippet *extract.Block `json:"snippet,omitempty"`
	// ParseError explains why Snippet is nil.
	ParseError string            `json:"parseError,omitempty"`
	Revision   *review.Revision  `json:"revision,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Executable reports whether the request carries a code block.
func (r *Request) Executable() bool {
	return r != nil && r.Snippet != nil
}

// Display returns the text to show the operator: the extracted code, or the
// raw prompt when nothing could be extracted.
func (r *Request) Display() string {
	if r == nil {
		return ""
	}
	if r.Snippet != nil {
		return r.Snippet.Code
	}
	return r.Prompt
}

// Language returns the snippet language or "".
func (r *Request) Language() string {
	if r == nil {
		return ""
	}
	return r.Snippet.Lang()
}

// Decision is the audit record of an operator (or policy) verdict.
type Decision struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	SessionID string    `json:"sessionId"`
	Signal    Signal    `json:"signal"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Resolution is what Approve and Deny hand back to the driver.
type Resolution struct {
	Signal   Signal
	Request  *Request
	Decision *Decision
}
