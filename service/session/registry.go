package session

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/idgen"
	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/approval"
	"github.com/viant/unchained/service/approval/memory"
	"github.com/viant/unchained/service/dao"
	"github.com/viant/unchained/service/dao/store"
)

// DefaultWorkdir is the base directory session working directories are
// created under.
const DefaultWorkdir = "coding"

// StateParameter filters List by session State.
const StateParameter = "State"

// Registry keeps live sessions. Sessions never share state.
type Registry struct {
	store       dao.Service[string, Session]
	baseDir     string
	gateFactory func(sessionID string) approval.Gate
	logger      *zap.Logger
}

type RegistryOption func(*Registry)

// WithBaseDir sets the directory under which each session gets its own
// working directory.
func WithBaseDir(dir string) RegistryOption {
	return func(r *Registry) { r.baseDir = dir }
}

// WithGateFactory overrides how a session's approval gate is built.
func WithGateFactory(factory func(sessionID string) approval.Gate) RegistryOption {
	return func(r *Registry) { r.gateFactory = factory }
}

func WithStore(s dao.Service[string, Session]) RegistryOption {
	return func(r *Registry) { r.store = s }
}

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func sessionKey(s *Session) string { return s.ID }

func NewRegistry(options ...RegistryOption) *Registry {
	ret := &Registry{
		store:   store.NewMemoryStore[string, Session](sessionKey),
		baseDir: DefaultWorkdir,
	}
	for _, option := range options {
		option(ret)
	}
	ret.logger = logging.OrNop(ret.logger)
	if ret.gateFactory == nil {
		logger := ret.logger
		ret.gateFactory = func(string) approval.Gate { return memory.New(memory.WithLogger(logger)) }
	}
	return ret
}

// Create registers a new idle session.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	id := idgen.New()
	workdir, err := filepath.Abs(filepath.Join(r.baseDir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workdir: %w", err)
	}
	aSession := New(id, workdir, r.gateFactory(id))
	if err = r.store.Save(ctx, aSession); err != nil {
		return nil, err
	}
	r.logger.Info("session created", zap.String("session", id), zap.String("workdir", workdir))
	return aSession, nil
}

// Load returns dao.ErrNotFound for unknown ids.
func (r *Registry) Load(ctx context.Context, id string) (*Session, error) {
	return r.store.Load(ctx, id)
}

// LoadOrCreate returns the session for id, creating a new one when id is
// empty or unknown.
func (r *Registry) LoadOrCreate(ctx context.Context, id string) (*Session, bool, error) {
	if id != "" {
		aSession, err := r.store.Load(ctx, id)
		if err == nil {
			return aSession, false, nil
		}
		if !dao.IsNotFound(err) {
			return nil, false, err
		}
	}
	aSession, err := r.Create(ctx)
	return aSession, true, err
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

// List returns live sessions, optionally filtered with
// dao.NewParameter(StateParameter, ...).
func (r *Registry) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Session, error) {
	sessions, err := r.store.List(ctx, parameters...)
	if err != nil || dao.Lookup(StateParameter, parameters) == nil {
		return sessions, err
	}
	var ret []*Session
	for _, aSession := range sessions {
		aSession.Lock()
		state := aSession.State()
		aSession.Unlock()
		if dao.Matches(StateParameter, string(state), parameters) {
			ret = append(ret, aSession)
		}
	}
	return ret, nil
}
