package exec

import (
	"fmt"
	"strings"
	"time"
)

// Output represents the result of running a snippet. A non-zero Status is a
// result, not an error.
type Output struct {
	Language string        `json:"language,omitempty"`
	File     string        `json:"file,omitempty"`    // script written to the workdir, if any
	Command  string        `json:"command,omitempty"` // shell command that ran it
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports a zero exit status.
func (o *Output) Succeeded() bool {
	return o != nil && o.Status == 0
}

// Combined returns stdout followed by stderr.
func (o *Output) Combined() string {
	if o == nil {
		return ""
	}
	switch {
	case o.Stdout == "":
		return o.Stderr
	case o.Stderr == "":
		return o.Stdout
	}
	return o.Stdout + "\n" + o.Stderr
}

// Report renders the output the way the planning agent expects to read it
// back.
func (o *Output) Report() string {
	if o == nil {
		return ""
	}
	state := "succeeded"
	if !o.Succeeded() {
		state = "failed"
	}
	return fmt.Sprintf("exitcode: %d (execution %s)\nCode output: %s", o.Status, state, strings.TrimSpace(o.Combined()))
}
