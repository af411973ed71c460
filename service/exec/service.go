// Package exec runs approved code snippets in a session working directory.
//
// Snippets are written to a script file in the working directory and run
// through a persistent gosh shell session per host. Go snippets use `go run`;
// when the local host has no go toolchain they are interpreted in-process
// with yaegi, restricted to packages that cannot reach the filesystem.
package exec

import (
	"context"
	"fmt"
	osexec "os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/viant/unchained/internal/idgen"
	"github.com/viant/unchained/internal/logging"
)

// Service executes snippets.
type Service struct {
	fs       afs.Service
	logger   *zap.Logger
	sessions map[string]*sessionInfo
	mux      sync.Mutex
	lookPath func(file string) (string, error)
}

type sessionInfo struct {
	service *gosh.Service
	local   bool
	mux     sync.Mutex // one command at a time per shell
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// New creates a new Service instance
func New(options ...Option) *Service {
	ret := &Service{
		fs:       afs.New(),
		sessions: make(map[string]*sessionInfo),
		lookPath: osexec.LookPath,
	}
	for _, option := range options {
		option(ret)
	}
	ret.logger = logging.OrNop(ret.logger)
	return ret
}

// Execute runs input.Code according to input.Language. Errors are returned
// only when the snippet could not be started; failures inside the snippet
// are reported through output.Status and output.Stderr.
func (s *Service) Execute(ctx context.Context, input *Input, output *Output) error {
	input.Init()
	output.Language = input.Language
	started := time.Now()
	defer func() { output.Duration = time.Since(started) }()

	rt, ok := lookupRuntime(input.Language)
	if !ok {
		output.Status = 1
		output.Stderr = fmt.Sprintf("unsupported language: %q", input.Language)
		return nil
	}
	if rt == goRuntime && !s.hasGoToolchain(input.Host) {
		return s.interpret(ctx, input, output)
	}
	return s.runScript(ctx, rt, input, output)
}

func (s *Service) runScript(ctx context.Context, rt *runtime, input *Input, output *Output) error {
	session, err := s.getSession(ctx, input.Host, input.Env)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	session.mux.Lock()
	defer session.mux.Unlock()

	name := "snippet_" + idgen.Short() + rt.extension
	var command string
	if session.local {
		if input.Workdir == "" {
			return fmt.Errorf("workdir was empty")
		}
		location := path.Join(input.Workdir, name)
		if err = s.writeScript(ctx, input.Workdir, location, input.Code); err != nil {
			return err
		}
		output.File = location
		command = fmt.Sprintf("cd %s && %s %s", shellQuote(input.Workdir), rt.interpreter, shellQuote(name))
	} else {
		command = remoteCommand(rt.interpreter, input.Workdir, name, input.Code)
	}
	output.Command = command

	stdout, status, err := session.service.Run(ctx, command, runner.WithTimeout(input.TimeoutMs))
	s.logger.Debug("snippet executed",
		zap.String("language", input.Language),
		zap.String("host", input.Host.URL),
		zap.Int("status", status),
		zap.Error(err))
	if status == 0 && err == nil {
		output.Stdout = strings.TrimSpace(stdout)
		return nil
	}
	if status == 0 {
		status = 1
	}
	output.Status = status
	output.Stderr = strings.TrimSpace(stdout)
	if output.Stderr == "" && err != nil {
		output.Stderr = err.Error()
	}
	return nil
}

// hasGoToolchain reports whether go run is available. Remote hosts are
// assumed to have it.
func (s *Service) hasGoToolchain(host *Host) bool {
	if url.Host(host.URL) != "localhost" {
		return true
	}
	_, err := s.lookPath("go")
	return err == nil
}

func (s *Service) writeScript(ctx context.Context, workdir, location, code string) error {
	dirURL := url.Normalize(workdir, file.Scheme)
	exists, err := s.fs.Exists(ctx, dirURL)
	if err != nil {
		return fmt.Errorf("failed to check workdir %v: %w", workdir, err)
	}
	if !exists {
		if err = s.fs.Create(ctx, dirURL, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create workdir %v: %w", workdir, err)
		}
	}
	if err = s.fs.Upload(ctx, url.Normalize(location, file.Scheme), file.DefaultFileOsMode, strings.NewReader(code)); err != nil {
		return fmt.Errorf("failed to write script %v: %w", location, err)
	}
	return nil
}

// remoteCommand ships code through a quoted heredoc so the snippet never has
// to be copied to the remote host separately.
func remoteCommand(interpreter, workdir, name, code string) string {
	const marker = "UNCHAINED_SNIPPET_EOF"
	builder := strings.Builder{}
	if workdir != "" {
		builder.WriteString(fmt.Sprintf("mkdir -p %s && cd %s && ", shellQuote(workdir), shellQuote(workdir)))
	}
	builder.WriteString(fmt.Sprintf("cat > %s <<'%s'\n", shellQuote(name), marker))
	builder.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		builder.WriteByte('\n')
	}
	builder.WriteString(marker + "\n")
	builder.WriteString(fmt.Sprintf("%s %s", interpreter, shellQuote(name)))
	return builder.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// getSession retrieves an existing session or creates a new one
func (s *Service) getSession(ctx context.Context, host *Host, env map[string]string) (*sessionInfo, error) {
	sessionID := host.URL

	s.mux.Lock()
	defer s.mux.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		return session, nil
	}

	var envOptions []runner.Option
	if len(env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(env))
	}

	var service *gosh.Service
	var err error
	isLocal := url.Host(host.URL) == "localhost"
	if isLocal {
		service, err = gosh.New(ctx, local.New(envOptions...))
	} else {
		var config *ssh.ClientConfig
		if config, err = s.getSSHConfig(ctx, host); err != nil {
			return nil, fmt.Errorf("failed to get SSH config: %w", err)
		}
		sshHost := url.Host(host.URL)
		if !strings.Contains(sshHost, ":") {
			sshHost += ":22"
		}
		service, err = gosh.New(ctx, rssh.New(sshHost, config, envOptions...))
	}
	if err != nil {
		return nil, err
	}
	session := &sessionInfo{service: service, local: isLocal}
	s.sessions[sessionID] = session
	return session, nil
}

// getSSHConfig creates an SSH config from the host's secrets
func (s *Service) getSSHConfig(ctx context.Context, host *Host) (*ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// Close releases all shell sessions.
func (s *Service) Close(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for id, session := range s.sessions {
		if err := session.service.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", id, err))
		}
	}
	s.sessions = make(map[string]*sessionInfo)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}
