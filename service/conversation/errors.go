package conversation

import "errors"

var (
	// ErrAwaitingApproval is returned by Submit while an approval is pending.
	ErrAwaitingApproval = errors.New("conversation: awaiting approval")
	// ErrMaxRounds is returned when the agent keeps requesting executions past
	// the configured round limit.
	ErrMaxRounds = errors.New("conversation: max rounds exceeded")
	ErrEmptyTask = errors.New("conversation: task was empty")
	ErrNoSession = errors.New("conversation: session was nil")
)
