package db

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/ps"
	"github.com/nickyhof/storeadapter/sql"
	"github.com/nickyhof/storeadapter/store"
)

// Driver opens local stores:
//
//	memory://<name>                        named in-memory store, shared by every session using the name
//	file:///<dir>                          git repository in dir
//	file:///<dir>?remote=<url>&push=true   cloned from remote when dir is empty; pushed on session close
//
// The session token authenticates against the remote.
type Driver struct {
	mu     sync.Mutex
	stores map[string]*ps.Persistence
	logger *zap.Logger
}

type DriverOption func(*Driver)

func WithDriverLogger(logger *zap.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		stores: make(map[string]*ps.Persistence),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type remoteSync struct {
	auth *ps.RemoteAuth
	push bool
}

func (d *Driver) Open(rawURL string, creds store.Credentials) (store.Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	persistence, remote, err := d.persistence(u, creds)
	if err != nil {
		return nil, err
	}

	identity := creds.Identity
	if identity.Name == "" {
		identity.Name = creds.Username
	}
	if identity.Name == "" {
		identity.Name = "storeadapter"
	}

	session := NewSession(persistence, identity, d.logger)
	session.remote = remote
	return session, nil
}

func (d *Driver) persistence(u *url.URL, creds store.Credentials) (*ps.Persistence, *remoteSync, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch u.Scheme {
	case "memory":
		name := u.Host + u.Path
		if name == "" {
			name = u.Opaque
		}
		key := "memory:" + name
		if existing, ok := d.stores[key]; ok {
			return existing, nil, nil
		}
		persistence, err := ps.NewMemoryPersistence()
		if err != nil {
			return nil, nil, err
		}
		d.stores[key] = persistence
		return persistence, nil, nil

	case "file":
		dir := filepath.Clean(filepath.FromSlash(u.Host + u.Path))
		query := u.Query()

		var remote *remoteSync
		var clone *ps.CloneOptions
		if remoteURL := query.Get("remote"); remoteURL != "" {
			push, _ := strconv.ParseBool(query.Get("push"))
			remote = &remoteSync{auth: ps.TokenAuth(creds.Token), push: push}
			clone = &ps.CloneOptions{URL: remoteURL, Auth: remote.auth}
		}

		key := "file:" + dir
		if existing, ok := d.stores[key]; ok {
			return existing, remote, nil
		}

		persistence, err := ps.NewFilePersistence(dir, clone)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", store.ErrUnreachable, err)
		}
		d.stores[key] = persistence
		d.logger.Info("opened file store", zap.String("dir", dir), zap.Bool("remote", remote != nil))
		return persistence, remote, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", store.ErrUnknownScheme, u.Scheme)
}

// Session is a session on a local store.
type Session struct {
	persistence *ps.Persistence
	identity    core.Identity
	logger      *zap.Logger
	remote      *remoteSync
	closed      atomic.Bool
}

func NewSession(persistence *ps.Persistence, identity core.Identity, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{persistence: persistence, identity: identity, logger: logger}
}

// Perspective binds the session to a stored perspective. A store without
// any perspective definitions exposes one implicit perspective per name,
// covering the database of the same name.
func (s *Session) Perspective(name string) (store.Perspective, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	s.persistence.RLock()
	defined, err := s.persistence.GetPerspective(name)
	anyDefined := len(s.persistence.ListPerspectives()) > 0
	s.persistence.RUnlock()

	var perspective core.Perspective
	switch {
	case err == nil:
		perspective = *defined
	case !anyDefined && name != "":
		perspective = core.Perspective{Name: name, Database: name}
	default:
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownPerspective, name)
	}

	engine := NewEngine(s.persistence, s.identity, WithPerspective(perspective), WithLogger(s.logger))
	return &Perspective{session: s, perspective: perspective, engine: engine}, nil
}

// Close ends the session, pushing to the remote when configured to.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.remote == nil || !s.remote.push {
		return nil
	}

	s.persistence.Lock()
	defer s.persistence.Unlock()
	if err := s.persistence.Push(ps.DefaultRemote, s.remote.auth); err != nil {
		return err
	}
	s.logger.Info("pushed store to remote")
	return nil
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

type Perspective struct {
	session     *Session
	perspective core.Perspective
	engine      *Engine
}

func (p *Perspective) Name() string {
	return p.perspective.Name
}

// Engine exposes the engine statements of this perspective execute on.
func (p *Perspective) Engine() *Engine {
	return p.engine
}

func (p *Perspective) Prepare(query string) (store.Statement, error) {
	if p.session.Closed() {
		return nil, store.ErrClosed
	}

	parsed, params, err := sql.Parse(query)
	if err != nil {
		return nil, err
	}
	columns, err := p.engine.Columns(parsed)
	if err != nil {
		return nil, err
	}

	return &Statement{
		perspective: p,
		sql:         query,
		parsed:      parsed,
		params:      params,
		columns:     columns,
	}, nil
}

type Statement struct {
	perspective *Perspective
	sql         string
	parsed      sql.Statement
	params      int
	columns     []string
	closed      atomic.Bool
}

func (s *Statement) SQL() string {
	return s.sql
}

func (s *Statement) Params() int {
	return s.params
}

func (s *Statement) Columns() ([]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	return append([]string(nil), s.columns...), nil
}

func (s *Statement) Execute(binds map[int]any) (store.Result, error) {
	if s.closed.Load() || s.perspective.session.Closed() {
		return nil, store.ErrClosed
	}
	for i := 0; i < s.params; i++ {
		if _, ok := binds[i]; !ok {
			return nil, fmt.Errorf("%w at position %d", ErrMissingBind, i)
		}
	}

	result, err := s.perspective.engine.ExecuteStatement(s.parsed, binds)
	if err != nil {
		return nil, err
	}
	return NewResultSet(result), nil
}

func (s *Statement) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Statement) Closed() bool {
	return s.closed.Load()
}

// ResultSet holds the materialized outcome of one execution.
type ResultSet struct {
	columns  []string
	rows     [][]any
	affected int64
	lastID   any
	closed   atomic.Bool
}

func NewResultSet(result Result) *ResultSet {
	rs := &ResultSet{
		columns:  result.Columns(),
		rows:     result.Rows(),
		affected: result.AffectedCount(),
	}
	if commit, ok := result.(CommitResult); ok {
		rs.lastID = commit.LastInsertedID
	}
	return rs
}

func (r *ResultSet) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *ResultSet) Rows() ([][]any, error) {
	if r.closed.Load() {
		return nil, store.ErrClosed
	}
	rows := make([][]any, len(r.rows))
	for i, row := range r.rows {
		rows[i] = append([]any(nil), row...)
	}
	return rows, nil
}

func (r *ResultSet) AffectedCount() int64 {
	return r.affected
}

func (r *ResultSet) LastInsertedID() (any, bool) {
	return r.lastID, r.lastID != nil
}

func (r *ResultSet) Close() error {
	r.closed.Store(true)
	r.rows = nil
	return nil
}

func (r *ResultSet) Closed() bool {
	return r.closed.Load()
}
