package unchained

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/unchained/internal/expand"
	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/policy"
	"github.com/viant/unchained/service/agent/genai"
	"github.com/viant/unchained/service/agent/openai"
	"github.com/viant/unchained/service/exec"
	"github.com/viant/unchained/service/secret"
	"github.com/viant/unchained/service/session"
	"github.com/viant/unchained/tracing"
)

const defaultPingTimeout = 10 * time.Second

// Model providers.
const (
	ProviderGenAI    = "genai"
	ProviderOpenAI   = "openai"
	ProviderScripted = "scripted"
)

// Config is a serialisable representation of the service configuration. It
// is usually loaded from YAML; zero values fall back to DefaultConfig.
type Config struct {
	Model    ModelConfig    `json:"model" yaml:"model"`
	Executor ExecutorConfig `json:"executor" yaml:"executor"`
	Policy   policy.Config  `json:"policy" yaml:"policy"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Logging  logging.Config `json:"logging" yaml:"logging"`
	Tracing  tracing.Config `json:"tracing" yaml:"tracing"`
}

// ModelConfig selects the planning agent backend.
type ModelConfig struct {
	Provider    string      `json:"provider" yaml:"provider"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	BaseURL     string      `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	APIKey      *secret.Ref `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	Temperature *float32    `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int         `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	TimeoutMs   int         `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	MaxRetries  int         `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	// Replies feeds the scripted provider.
	Replies []string `json:"replies,omitempty" yaml:"replies,omitempty"`
}

type ExecutorConfig struct {
	TimeoutMs int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Host      *exec.Host        `json:"host,omitempty" yaml:"host,omitempty"`
}

type SessionConfig struct {
	MaxRounds    int    `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Workdir      string `json:"workdir,omitempty" yaml:"workdir,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// DefaultConfig returns a Config talking to a local OpenAI-compatible model
// server, asking before every execution. Model name and endpoint are left to
// the backend defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:   ProviderOpenAI,
			TimeoutMs:  120000,
			MaxRetries: 2,
		},
		Executor: ExecutorConfig{TimeoutMs: 60000},
		Policy:   policy.Config{Mode: policy.ModeAsk},
		Session: SessionConfig{
			MaxRounds: 10,
			Workdir:   session.DefaultWorkdir,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: logging.DefaultConfig(),
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch strings.ToLower(c.Model.Provider) {
	case ProviderGenAI:
		if c.Model.APIKey.IsZero() {
			errs = append(errs, fmt.Errorf("model.apiKey is required for provider %q", ProviderGenAI))
		}
	case ProviderOpenAI:
	case ProviderScripted:
		if len(c.Model.Replies) == 0 {
			errs = append(errs, fmt.Errorf("model.replies is required for provider %q", ProviderScripted))
		}
	default:
		errs = append(errs, fmt.Errorf("model.provider: unsupported value %q", c.Model.Provider))
	}
	if c.Executor.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("executor.timeoutMs must be >= 0"))
	}
	if c.Session.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("session.maxRounds must be > 0"))
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML document from any afs supported location, expands
// ${env.KEY} references and overlays it on DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML data on top of DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expand.Env(string(data), nil)), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ModelConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// pingTimeout bounds the startup endpoint check.
func (c *ModelConfig) pingTimeout() time.Duration {
	if timeout := c.timeout(); timeout > 0 && timeout < defaultPingTimeout {
		return timeout
	}
	return defaultPingTimeout
}

func (c *ModelConfig) genaiConfig(apiKey string) genai.Config {
	return genai.Config{APIKey: apiKey, Model: c.Name, BaseURL: c.BaseURL, Temperature: c.Temperature}
}

func (c *ModelConfig) openaiConfig(apiKey string) openai.Config {
	ret := openai.Config{
		BaseURL:    c.BaseURL,
		APIKey:     apiKey,
		Model:      c.Name,
		MaxTokens:  c.MaxTokens,
		Timeout:    c.timeout(),
		MaxRetries: c.MaxRetries,
	}
	if c.Temperature != nil {
		ret.Temperature = float64(*c.Temperature)
	}
	return ret
}
