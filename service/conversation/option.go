package conversation

import (
	"go.uber.org/zap"

	"github.com/viant/unchained/policy"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/exec"
)

const defaultMaxRounds = 10

type Option func(*Driver)

// WithPolicy sets the default execution policy; a policy carried by the
// request context takes precedence.
func WithPolicy(p *policy.Policy) Option {
	return func(d *Driver) { d.policy = p }
}

// WithSystemPrompt replaces agent.DefaultSystemPrompt; empty keeps the default.
func WithSystemPrompt(prompt string) Option {
	return func(d *Driver) {
		if prompt != "" {
			d.systemPrompt = prompt
		}
	}
}

// WithMaxRounds bounds agent replies per Submit or Resume.
func WithMaxRounds(rounds int) Option {
	return func(d *Driver) {
		if rounds > 0 {
			d.maxRounds = rounds
		}
	}
}

func WithPublisher(publisher *event.Publisher[any]) Option {
	return func(d *Driver) { d.publisher = publisher }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithExecution sets the environment, timeout and host snippets run with.
func WithExecution(env map[string]string, timeoutMs int, host *exec.Host) Option {
	return func(d *Driver) {
		d.env = env
		d.timeoutMs = timeoutMs
		d.host = host
	}
}
