package approval

import (
	"context"
	"errors"
)

var (
	// ErrNoPendingApproval is returned by Approve on an empty gate.
	ErrNoPendingApproval = errors.New("approval: no pending request")
	// ErrNoCodeBlock is recorded on requests whose prompt has no fence at all.
	ErrNoCodeBlock = errors.New("approval: prompt contains no code block")
)

// Gate holds at most one pending request.
type Gate interface {
	// Request stores prompt as the pending request. A request that cannot be
	// parsed is still stored, with ParseError set. Issuing a second request
	// while one is pending replaces it.
	Request(ctx context.Context, sessionID, prompt string) (*Request, error)

	// Approve clears the slot and returns SignalApprove. It fails with
	// ErrNoPendingApproval when the slot is empty.
	Approve(ctx context.Context, reason string) (*Resolution, error)

	// Deny clears the slot and returns SignalDeny. On an empty gate it returns
	// (nil, nil).
	Deny(ctx context.Context, reason string) (*Resolution, error)

	// Pending returns the outstanding request or nil.
	Pending() *Request

	// Decisions lists recorded decisions, oldest first.
	Decisions(ctx context.Context) ([]*Decision, error)
}
