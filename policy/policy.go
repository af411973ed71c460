package policy

import (
	"context"
	"fmt"
	"strings"
)

// Execution modes recognised by the driver.
const (
	ModeAsk  = "ask"  // ask the operator before every block (default)
	ModeAuto = "auto" // execute allowed blocks without asking
	ModeDeny = "deny" // never execute
)

// Policy represents the approval settings for a conversation.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList filter by snippet language regardless of Mode.
//
// A nil *Policy means "ask for everything".
type Policy struct {
	Mode      string   // ask / auto / deny      (default = ask)
	AllowList []string // languages allowed to run (empty => all)
	BlockList []string // languages never allowed to run
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// Validate checks the mode value.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch strings.ToLower(c.Mode) {
	case "", ModeAsk, ModeAuto, ModeDeny:
		return nil
	}
	return fmt.Errorf("policy.mode: unsupported value %q", c.Mode)
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// EffectiveMode returns the normalised mode, defaulting to ModeAsk.
func (p *Policy) EffectiveMode() string {
	if p == nil {
		return ModeAsk
	}
	switch mode := strings.ToLower(strings.TrimSpace(p.Mode)); mode {
	case ModeAuto, ModeDeny:
		return mode
	default:
		return ModeAsk
	}
}

// IsAllowed evaluates AllowList / BlockList against a snippet language.
// Both lists match by case-insensitive exact comparison.
func (p *Policy) IsAllowed(language string) bool {
	if p == nil {
		return true
	}

	normalized := strings.ToLower(language)

	// BlockList has priority.
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}

	if len(p.AllowList) == 0 {
		return true
	}

	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}

	return false
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy embedded by WithPolicy, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
