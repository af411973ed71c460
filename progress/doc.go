// Package progress keeps aggregated per-session counters (turns, approval
// requests, decisions, executions) and makes them reachable through the
// context so any component handling a session step can update them.
package progress
