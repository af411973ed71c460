// Package agent defines the planning agent collaborator: something that reads
// the conversation so far and replies with either a final answer or a code
// block it wants executed.
package agent

import (
	"context"
	"errors"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TerminateMarker ends a reply that is a final answer.
const TerminateMarker = "TERMINATE"

// ErrEmptyReply is returned by backends that received no content.
var ErrEmptyReply = errors.New("agent: empty reply")

// DefaultSystemPrompt instructs the model on the code proposal convention.
const DefaultSystemPrompt = `You are a helpful AI assistant that solves tasks by writing code a human operator will review and run for you.
Solve tasks step by step. When you need to collect information or perform an action, reply with exactly one code block in a fence tagged with its language, for example:
` + "```python\nprint('hello')\n```" + `
Supported languages are python, sh and go. Put everything needed into a single block; the operator runs it in a working directory and sends you back the exit code and output.
Check the output. If it failed, fix the code and propose the corrected block.
When the task is complete, reply with the final answer and end the message with the word TERMINATE.`

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Assistant produces the next agent reply for a conversation.
type Assistant interface {
	Reply(ctx context.Context, messages []Message) (string, error)
}

// AssistantFunc adapts a function to Assistant.
type AssistantFunc func(ctx context.Context, messages []Message) (string, error)

func (f AssistantFunc) Reply(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// StripTermination removes a trailing TerminateMarker. It reports whether the
// marker was present.
func StripTermination(reply string) (string, bool) {
	trimmed := strings.TrimRight(reply, " \t\r\n.")
	if !strings.HasSuffix(trimmed, TerminateMarker) {
		return reply, false
	}
	return strings.TrimSpace(strings.TrimSuffix(trimmed, TerminateMarker)), true
}

// SystemPrompt returns the first system message content, or "".
func SystemPrompt(messages []Message) string {
	for _, message := range messages {
		if message.Role == RoleSystem {
			return message.Content
		}
	}
	return ""
}
