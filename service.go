package unchained

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/viant/unchained/console"
	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/policy"
	"github.com/viant/unchained/server"
	"github.com/viant/unchained/service/agent"
	"github.com/viant/unchained/service/agent/genai"
	"github.com/viant/unchained/service/agent/openai"
	"github.com/viant/unchained/service/approval"
	amemory "github.com/viant/unchained/service/approval/memory"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/exec"
	"github.com/viant/unchained/service/messaging"
	mmemory "github.com/viant/unchained/service/messaging/memory"
	"github.com/viant/unchained/service/secret"
	"github.com/viant/unchained/service/session"
	"github.com/viant/unchained/tracing"
)

const serviceName = "unchained"

// Version is set at build time.
var Version = "dev"

// Service assembles the agent backend, the executor, the session registry,
// the conversation driver and both front ends.
type Service struct {
	config    *Config
	logger    *zap.Logger
	assistant agent.Assistant
	executor  conversation.Executor
	secrets   *secret.Service
	queue     messaging.Queue[event.Event[any]]
	publisher *event.Publisher[any]
	registry  *session.Registry
	driver    *conversation.Driver
	server    *server.Server
	closers   []func(ctx context.Context) error
}

// New validates cfg and builds a Service. A nil cfg uses DefaultConfig. It
// fails when the planning agent cannot be initialised.
func New(ctx context.Context, cfg *Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ret := &Service{config: cfg}
	for _, option := range options {
		option(ret)
	}
	if ret.assistant == nil {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.Close(ctx)
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	cfg := s.config
	if s.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		s.logger = logger
	}
	if cfg.Tracing.Enabled {
		if err := tracing.Init(serviceName, Version, cfg.Tracing.Output); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		s.closers = append(s.closers, tracing.Shutdown)
	}
	if s.secrets == nil {
		s.secrets = secret.New()
	}
	if s.assistant == nil {
		assistant, err := s.newAssistant(ctx)
		if err != nil {
			return err
		}
		s.assistant = assistant
	}
	if s.executor == nil {
		executor := exec.New(exec.WithLogger(s.logger))
		s.closers = append(s.closers, executor.Close)
		s.executor = executor
	}
	if s.queue == nil {
		queueConfig := mmemory.DefaultConfig()
		queueConfig.DropWhenFull = true
		s.queue = mmemory.NewQueue[event.Event[any]](queueConfig)
	}
	s.publisher = event.NewPublisher[any](s.queue)

	logger, publisher := s.logger, s.publisher
	s.registry = session.NewRegistry(
		session.WithBaseDir(cfg.Session.Workdir),
		session.WithLogger(logger),
		session.WithGateFactory(func(string) approval.Gate {
			return amemory.New(amemory.WithPublisher(publisher), amemory.WithLogger(logger))
		}),
	)
	s.driver = conversation.New(s.assistant, s.executor,
		conversation.WithPolicy(policy.FromConfig(&cfg.Policy)),
		conversation.WithSystemPrompt(cfg.Session.SystemPrompt),
		conversation.WithMaxRounds(cfg.Session.MaxRounds),
		conversation.WithExecution(cfg.Executor.Env, cfg.Executor.TimeoutMs, cfg.Executor.Host),
		conversation.WithPublisher(publisher),
		conversation.WithLogger(logger),
	)
	s.server = server.New(s.registry, s.driver, server.WithLogger(logger), server.WithPublisher(publisher))
	return nil
}

func (s *Service) newAssistant(ctx context.Context) (agent.Assistant, error) {
	model := &s.config.Model
	switch strings.ToLower(model.Provider) {
	case ProviderScripted:
		return agent.NewScripted(model.Replies...), nil
	case ProviderGenAI:
		apiKey, err := s.secrets.Resolve(ctx, model.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %v api key: %w", model.Provider, err)
		}
		client, err := genai.New(ctx, model.genaiConfig(apiKey), s.logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		apiKey, err := s.secrets.Resolve(ctx, model.APIKey)
		if err != nil && !errors.Is(err, secret.ErrNotConfigured) {
			return nil, fmt.Errorf("failed to resolve %v api key: %w", model.Provider, err)
		}
		client := openai.New(model.openaiConfig(apiKey), s.logger)
		pingCtx, cancel := context.WithTimeout(ctx, model.pingTimeout())
		defer cancel()
		if err = client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("failed to init %v model: %w", model.Provider, err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unsupported model provider: %q", model.Provider)
}

func (s *Service) Config() *Config { return s.config }

func (s *Service) Logger() *zap.Logger { return s.logger }

func (s *Service) Driver() *conversation.Driver { return s.driver }

func (s *Service) Registry() *session.Registry { return s.registry }

// Server returns the web front end.
func (s *Service) Server() *server.Server { return s.server }

// Console returns a terminal front end reading from in and writing to out.
func (s *Service) Console(in io.Reader, out io.Writer) *console.Console {
	return console.NewWithIO(in, out, s.driver, s.registry, s.logger)
}

// Close releases remote shell sessions and flushes traces.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return errors.Join(errs...)
}
