// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Session, request and snippet file identifiers are all produced here; callers
// treat them as opaque strings.
package idgen
