package approval

import (
	"context"
	"fmt"

	"github.com/viant/unchained/policy"
)

// Verdict is the action a policy prescribes for a request.
type Verdict int

const (
	VerdictAsk Verdict = iota
	VerdictApprove
	VerdictDeny
)

func (v Verdict) String() string {
	switch v {
	case VerdictApprove:
		return "approve"
	case VerdictDeny:
		return "deny"
	default:
		return "ask"
	}
}

// Evaluate maps an execution policy onto a request. Requests without a code
// block always go to the operator so the parse failure is surfaced.
func Evaluate(p *policy.Policy, r *Request) (Verdict, string) {
	if !r.Executable() {
		return VerdictAsk, ""
	}
	mode := p.EffectiveMode()
	if mode == policy.ModeDeny {
		return VerdictDeny, "execution disabled by policy"
	}
	if !p.IsAllowed(r.Language()) {
		return VerdictDeny, fmt.Sprintf("language %q not allowed by policy", r.Snippet.Language)
	}
	if mode == policy.ModeAuto {
		return VerdictApprove, "auto-approved by policy"
	}
	return VerdictAsk, ""
}

// Resolve applies signal to gate.
func Resolve(ctx context.Context, gate Gate, signal Signal, reason string) (*Resolution, error) {
	switch signal {
	case SignalApprove:
		return gate.Approve(ctx, reason)
	case SignalDeny:
		return gate.Deny(ctx, reason)
	}
	return nil, fmt.Errorf("approval: unsupported signal %q", signal)
}
