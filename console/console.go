// Package console runs a session over a terminal: tasks are read from the
// input stream and pending code is approved or denied with a radio-style
// prompt.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/session"
)

const (
	taskPrompt = "What task should I perform?"
	banner     = "Legacy Unchained\nAn experimental AI agent for task automation. I can write and execute code to help with your tasks. Please review and approve all actions.\n"
)

var choices = []string{string(approval.SignalApprove), string(approval.SignalDeny)}

type Console struct {
	in       *bufio.Reader
	out      io.Writer
	driver   *conversation.Driver
	registry *session.Registry
	logger   *zap.Logger
}

// New returns a Console that reads from stdin and writes to stdout.
func New(driver *conversation.Driver, registry *session.Registry, logger *zap.Logger) *Console {
	return NewWithIO(os.Stdin, os.Stdout, driver, registry, logger)
}

// NewWithIO lets callers override the input/output streams.
func NewWithIO(in io.Reader, out io.Writer, driver *conversation.Driver, registry *session.Registry, logger *zap.Logger) *Console {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		driver:   driver,
		registry: registry,
		logger:   logging.OrNop(logger),
	}
}

// Run serves one session until the input ends or the operator types exit.
func (c *Console) Run(ctx context.Context) error {
	aSession, err := c.registry.Create(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, banner)
	for {
		task, err := c.ask(taskPrompt, "")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch strings.ToLower(task) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		outcome, err := c.driver.Submit(ctx, aSession, task)
		if err = c.render(outcome, err); err != nil {
			return err
		}
		for outcome != nil && outcome.Pending != nil {
			signal, err := c.decide(outcome.Pending)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			outcome, err = c.driver.Resume(ctx, aSession, signal, "")
			if err = c.render(outcome, err); err != nil {
				return err
			}
		}
	}
}

// render prints an outcome. Conversation errors are shown and swallowed so
// the operator can continue; only output failures are returned.
func (c *Console) render(outcome *conversation.Outcome, err error) error {
	if err != nil {
		c.logger.Debug("step failed", zap.Error(err))
		_, werr := fmt.Fprintf(c.out, "error: %v\n", err)
		if outcome == nil {
			return werr
		}
	}
	if outcome == nil {
		return nil
	}
	for _, record := range outcome.Executions {
		fmt.Fprintf(c.out, "[exit %d]\n", record.Status)
		if output := strings.TrimSpace(record.Stdout + "\n" + record.Stderr); output != "" {
			fmt.Fprintln(c.out, output)
		}
	}
	if outcome.Turn != nil {
		fmt.Fprintf(c.out, "agent: %s\n", outcome.Turn.Content)
	}
	if outcome.State == session.StateTerminated && outcome.Pending == nil && outcome.Turn == nil {
		_, err = fmt.Fprintln(c.out, "Conversation ended.")
		return err
	}
	return nil
}

func (c *Console) decide(request *approval.Request) (approval.Signal, error) {
	fmt.Fprintln(c.out, "The agent wants to run the following code. Please review carefully.")
	if request.ParseError != "" {
		fmt.Fprintf(c.out, "Could not extract a code block (%s); raw request:\n", request.ParseError)
	}
	fmt.Fprintf(c.out, "----- %s\n%s\n-----\n", request.Language(), strings.Trim(request.Display(), "\n"))
	if request.Revision != nil {
		fmt.Fprintf(c.out, "changes since previous proposal (+%d -%d):\n%s", request.Revision.Stats.Added, request.Revision.Stats.Removed, request.Revision.Diff)
	}
	for {
		answer, err := c.choose("Run it?", choices, "")
		if err != nil {
			return "", err
		}
		if signal, err := approval.ParseSignal(answer); err == nil {
			return signal, nil
		}
		fmt.Fprintln(c.out, "please answer 1 (approve) or 2 (deny)")
	}
}

// ask prints message and reads one line, falling back to defaultValue on an
// empty line. io.EOF is returned only when nothing was read.
func (c *Console) ask(message, defaultValue string) (string, error) {
	prompt := strings.TrimSpace(message)
	if prompt == "" {
		prompt = "?"
	}
	fmt.Fprint(c.out, prompt+" ")
	response, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && response != "") {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		response = defaultValue
	}
	return response, nil
}

// choose renders a single-choice prompt. The operator may answer with the
// 1-based option index or the option value (case-insensitive).
func (c *Console) choose(label string, options []string, defaultValue string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(label)
	for i, opt := range options {
		if i == 0 {
			prompt.WriteString(" (")
		} else {
			prompt.WriteString(", ")
		}
		prompt.WriteString(fmt.Sprintf("%d:%s", i+1, opt))
	}
	if len(options) > 0 {
		prompt.WriteString(")")
	}
	prompt.WriteString(":")
	response, err := c.ask(prompt.String(), defaultValue)
	if err != nil {
		return "", err
	}
	if idx, ok := parseIndex(response, len(options)); ok {
		return options[idx], nil
	}
	for _, opt := range options {
		if strings.EqualFold(opt, response) {
			return opt, nil
		}
	}
	return response, nil
}

// parseIndex maps a 1-based answer to an option index. Signs and values
// outside the int range are rejected.
func parseIndex(s string, n int) (int, bool) {
	s = strings.TrimSpace(s)
	if n == 0 || s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 1 || idx > n {
		return 0, false
	}
	return idx - 1, true
}
