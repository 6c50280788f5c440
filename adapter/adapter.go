package adapter

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nickyhof/storeadapter/store"
)

// Adapter connects an ORM to a store through one session and one
// perspective. It is not safe for concurrent use.
type Adapter struct {
	config   Config
	registry *store.Registry
	types    *TypeRegistry
	pool     *StatementPool
	worker   WorkerIdentity
	logger   *zap.Logger

	session     store.Session
	perspective store.Perspective
	// current is the result of the last execution. It is disposed before
	// the next one runs.
	current store.Result
}

type Option func(*Adapter)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithWorkerIdentity sets the function partitioning the statement pool.
func WithWorkerIdentity(worker WorkerIdentity) Option {
	return func(a *Adapter) {
		a.worker = worker
	}
}

func WithTypeRegistry(types *TypeRegistry) Option {
	return func(a *Adapter) {
		a.types = types
	}
}

// New validates config and returns a disconnected Adapter resolving
// drivers from registry. Build config from DefaultConfig or LoadConfig: the
// zero Config turns off prepared statements and the statement pool.
func New(config Config, registry *store.Registry, opts ...Option) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, &ConfigurationError{Param: "registry"}
	}

	a := &Adapter{
		config:   config,
		registry: registry,
		worker:   ProcessIdentity,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.types == nil {
		a.types = NewTypeRegistry()
	}
	a.pool = NewStatementPool(config.StatementLimit, a.worker, a.logger)
	return a, nil
}

func (a *Adapter) Config() Config {
	return a.config
}

func (a *Adapter) Types() *TypeRegistry {
	return a.types
}

func (a *Adapter) Pool() *StatementPool {
	return a.pool
}

// Connect opens a session and binds it to the configured app perspective.
// It does nothing when a session is already open.
func (a *Adapter) Connect() error {
	if a.session != nil {
		return nil
	}

	creds, err := a.config.Credentials(context.Background())
	if err != nil {
		return &ConnectionError{URL: a.config.URL, Err: err}
	}

	session, err := a.registry.Open(a.config.URL, creds)
	if err != nil {
		return &ConnectionError{URL: a.config.URL, Err: err}
	}

	perspective, err := session.Perspective(a.config.App)
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			a.logger.Warn("failed to close session", zap.Error(closeErr))
		}
		return &ConnectionError{URL: a.config.URL, Err: err}
	}

	a.session, a.perspective = session, perspective
	a.logger.Info("connected",
		zap.String("url", a.config.URL),
		zap.String("app", a.config.App),
		zap.String("username", creds.Username))
	return nil
}

// Disconnect clears the statement pool, disposes the current result and
// closes the session. Failures are logged, never returned.
func (a *Adapter) Disconnect() {
	a.pool.Clear()
	a.disposeCurrent()

	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
		a.logger.Warn("failed to close session", zap.Error(err))
	}
	a.session, a.perspective = nil, nil
	a.logger.Info("disconnected", zap.String("url", a.config.URL))
}

func (a *Adapter) Reconnect() error {
	a.Disconnect()
	return a.Connect()
}

// Active reports whether the session is usable. Remote sessions are
// probed.
func (a *Adapter) Active() bool {
	return a.session != nil && !a.session.Closed()
}

// ClearCache disposes the cached statements of the current worker.
func (a *Adapter) ClearCache() {
	a.pool.Clear()
}

func (a *Adapter) disposeCurrent() {
	if a.current == nil {
		return
	}
	dispose(a.current, a.logger)
	a.current = nil
}
