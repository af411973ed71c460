// Package approval implements the single-slot human-in-the-loop gate that
// holds an agent's pending code-execution request until the operator approves
// or denies it.
//
// A gate belongs to exactly one session. Request populates the slot (parsing
// the proposed code block out of the agent's prompt), Approve and Deny clear it
// and return the resume Signal the conversation driver acts on. Every decision
// is recorded for audit.
package approval
