package exec

import (
	"strings"
	"time"
)

const (
	defaultHostURL   = "bash://localhost/"
	defaultTimeoutMs = 60000
)

// Host identifies where code runs. Anything other than localhost is reached
// over ssh with credentials resolved by name through scy.
type Host struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Input represents a single approved snippet to run.
type Input struct {
	Language  string            `json:"language"`
	Code      string            `json:"code"`
	Workdir   string            `json:"workdir,omitempty"` // created when missing
	Env       map[string]string `json:"env,omitempty"`
	TimeoutMs int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Host      *Host             `json:"host,omitempty"`
}

func (i *Input) Init() {
	if i.Host == nil {
		i.Host = &Host{}
	}
	if i.Host.URL == "" {
		i.Host.URL = defaultHostURL
	}
	if i.TimeoutMs <= 0 {
		i.TimeoutMs = defaultTimeoutMs
	}
	i.Language = normalize(i.Language)
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func durationMs(ms int) time.Duration {
	if ms <= 0 {
		ms = defaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
